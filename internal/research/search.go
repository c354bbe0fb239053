// Package research enriches section prompts with web search snippets.
package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/config"
)

// Result is one search hit. Its content comes from a third-party page and
// is treated as untrusted text.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web query and returns at most limit results.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// DuckDuckGo scrapes the keyless HTML results page. No retries, no pagination.
type DuckDuckGo struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    *zap.Logger
}

// NewDuckDuckGo creates a searcher from config.
func NewDuckDuckGo(cfg config.ResearchConfig, logger *zap.Logger) *DuckDuckGo {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DuckDuckGo{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Search fetches the results page for query. Zero matches is an empty
// slice, not an error.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}

	endpoint := d.baseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	results, err := parseResults(resp.Body, limit)
	if err != nil {
		return nil, fmt.Errorf("parsing results for %q: %w", query, err)
	}
	d.logger.Debug("search complete", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// parseResults pairs each result anchor with the snippet at the same
// position, like the results page lays them out.
func parseResults(r io.Reader, limit int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var snippets []string
	doc.Find(".result__snippet").Each(func(_ int, s *goquery.Selection) {
		snippets = append(snippets, cleanText(s.Text()))
	})

	results := []Result{}
	doc.Find("a.result__a").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}
		title := cleanText(s.Text())
		if title == "" {
			return true
		}
		href, _ := s.Attr("href")
		res := Result{Title: title, Link: resolveLink(href)}
		if i < len(snippets) {
			res.Snippet = snippets[i]
		}
		results = append(results, res)
		return true
	})
	return results, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveLink unwraps DuckDuckGo's redirect links ("//duckduckgo.com/l/?uddg=…")
// into the destination URL.
func resolveLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
