package research

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fleveque/fundamentals-analyzer/internal/model"
)

const defaultIndustry = "technology"

// industryRunes caps the industry phrase taken from a search snippet.
const industryRunes = 50

// Enhancer memoizes research per section for one company. It is safe for
// concurrent use; each section is researched at most once.
type Enhancer struct {
	company  string
	searcher Searcher
	logger   *zap.Logger

	mu       sync.Mutex
	cache    map[model.SectionKey]string
	industry string
	flights  singleflight.Group
}

// NewEnhancer creates an Enhancer bound to company.
func NewEnhancer(company string, searcher Searcher, logger *zap.Logger) *Enhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enhancer{
		company:  company,
		searcher: searcher,
		logger:   logger,
		cache:    make(map[model.SectionKey]string),
	}
}

// Company returns the company the research is about.
func (e *Enhancer) Company() string { return e.company }

// Enhance appends a web research block to prompt. With no research for the
// section the prompt is returned unchanged.
func (e *Enhancer) Enhance(ctx context.Context, prompt string, section model.SectionKey) string {
	research := e.Research(ctx, section)
	if research == "" {
		return prompt
	}
	return prompt + "\n\n## Additional Context from Web Research:\n" + research +
		"\n\nPlease incorporate insights from both the annual report AND the web research above to provide a comprehensive analysis. Cite specific findings from web research where relevant."
}

// Research returns the (memoized) research block for section, or "".
func (e *Enhancer) Research(ctx context.Context, section model.SectionKey) string {
	e.mu.Lock()
	if r, ok := e.cache[section]; ok {
		e.mu.Unlock()
		return r
	}
	e.mu.Unlock()

	v, _, _ := e.flights.Do(string(section), func() (any, error) {
		e.mu.Lock()
		if r, ok := e.cache[section]; ok {
			e.mu.Unlock()
			return r, nil
		}
		e.mu.Unlock()

		r := e.gather(ctx, section)

		e.mu.Lock()
		e.cache[section] = r
		e.mu.Unlock()
		return r, nil
	})
	return v.(string)
}

func (e *Enhancer) gather(ctx context.Context, section model.SectionKey) string {
	c := e.company
	switch section {
	case model.SectionQuickStats:
		var lines []string
		for _, r := range e.search(ctx, c+" market cap sector industry", 3) {
			if r.Snippet != "" {
				lines = append(lines, "- "+r.Snippet)
			}
		}
		return strings.Join(lines, "\n")

	case model.SectionBusinessOverview:
		queries := []string{
			c + " company overview business model",
			c + " competitors market share",
			c + " recent news developments 2024",
			c + " industry trends outlook",
		}
		var blocks []string
		for _, q := range queries {
			results := e.search(ctx, q, 3)
			if len(results) == 0 {
				continue
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "\n### Search: %s\n", q)
			for _, r := range results {
				fmt.Fprintf(&sb, "- **%s**: %s\n", r.Title, r.Snippet)
			}
			blocks = append(blocks, sb.String())
		}
		return strings.Join(blocks, "\n")

	case model.SectionEcosystem:
		return withHeader("### Competitor Research:\n", bullets(e.search(ctx, c+" main competitors comparison", 5)))

	case model.SectionIndustryDeepDive:
		industry := e.discoverIndustry(ctx)
		var results []Result
		for _, q := range []string{
			industry + " industry analysis 2024",
			industry + " market trends forecast",
			industry + " major players competition",
		} {
			results = append(results, e.search(ctx, q, 3)...)
		}
		return bullets(results)

	case model.SectionRiskAnalysis:
		subject := e.knownIndustry()
		if subject == "" {
			subject = c
		}
		var results []Result
		results = append(results, e.search(ctx, c+" risks challenges concerns", 3)...)
		results = append(results, e.search(ctx, subject+" industry risks regulatory", 3)...)
		return bullets(results)

	case model.SectionBullBearCases:
		return withHeader("### Recent News & Developments:\n", bullets(e.search(ctx, c+" news 2024", 5)))

	default:
		return ""
	}
}

// discoverIndustry guesses the industry from the first snippet of a quick
// search and remembers it for later sections.
func (e *Enhancer) discoverIndustry(ctx context.Context) string {
	if known := e.knownIndustry(); known != "" {
		return known
	}
	industry := defaultIndustry
	if results := e.search(ctx, e.company+" industry sector", 1); len(results) > 0 && results[0].Snippet != "" {
		r := []rune(results[0].Snippet)
		if len(r) > industryRunes {
			r = r[:industryRunes]
		}
		industry = strings.TrimSpace(string(r))
	}
	e.mu.Lock()
	e.industry = industry
	e.mu.Unlock()
	return industry
}

func (e *Enhancer) knownIndustry() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.industry
}

// search never fails: errors are logged and read as no results.
func (e *Enhancer) search(ctx context.Context, query string, limit int) []Result {
	results, err := e.searcher.Search(ctx, query, limit)
	if err != nil {
		e.logger.Warn("web search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return results
}

func bullets(results []Result) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Title, r.Snippet))
	}
	return strings.Join(lines, "\n")
}

func withHeader(header, body string) string {
	if body == "" {
		return ""
	}
	return header + body
}
