package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/config"
	"github.com/fleveque/fundamentals-analyzer/internal/llm"
	"github.com/fleveque/fundamentals-analyzer/internal/model"
)

// ErrNoDocument is returned when a section is requested before any upload.
var ErrNoDocument = errors.New("no annual report uploaded")

// ErrUnknownSection is returned for keys outside the fixed section set.
var ErrUnknownSection = errors.New("unknown section")

// ErrResearchDisabled is returned by EnableResearch when no searcher is configured.
var ErrResearchDisabled = errors.New("web research is disabled")

// UnknownCompany is used when the company name cannot be extracted.
const UnknownCompany = "Unknown Company"

const (
	companyNamePrompt = `Extract ONLY the company name from this annual report. Return just the company name, nothing else. Example: "Apple Inc." or "Microsoft Corporation"`
	companyNameWindow = 5000
)

// ProviderFactory builds providers; *llm.Factory satisfies it.
type ProviderFactory interface {
	Create(ctx context.Context, identity, secret string) (*llm.Provider, error)
}

// SessionRecorder persists session metadata; storage.SessionRepository satisfies it.
type SessionRecorder interface {
	Create(ctx context.Context, s *model.SessionInfo) error
	SetCompanyName(ctx context.Context, id, company string) error
}

// EnhancerFactory builds a research enhancer bound to one company.
type EnhancerFactory func(company string) Enhancer

// Workspace is the explicit session context the front-ends operate on: the
// active provider plus the current document session. Replacing either is an
// explicit operation; nothing is carried across documents.
type Workspace struct {
	factory  ProviderFactory
	secrets  *config.SecretStore
	prompts  *Prompts
	analyzer *Analyzer
	sessions SessionRecorder
	research EnhancerFactory
	logger   *zap.Logger

	mu       sync.RWMutex
	provider *llm.Provider
	session  *Session
}

// WorkspaceDeps bundles the collaborators of a Workspace.
// SessionRecorder and Research are optional.
type WorkspaceDeps struct {
	Factory  ProviderFactory
	Secrets  *config.SecretStore
	Prompts  *Prompts
	Analyzer *Analyzer
	Sessions SessionRecorder
	Research EnhancerFactory
	Logger   *zap.Logger
}

// NewWorkspace creates a Workspace with no provider and no document.
func NewWorkspace(deps WorkspaceDeps) *Workspace {
	w := &Workspace{
		factory:  deps.Factory,
		secrets:  deps.Secrets,
		prompts:  deps.Prompts,
		analyzer: deps.Analyzer,
		sessions: deps.Sessions,
		research: deps.Research,
		logger:   deps.Logger,
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	if w.prompts == nil {
		w.prompts = DefaultPrompts()
	}
	if w.analyzer == nil {
		w.analyzer = NewAnalyzer(w.logger)
	}
	if w.secrets == nil {
		w.secrets = config.NewSecretStoreFromMap(nil)
	}
	return w
}

// Prompts returns the section catalog.
func (w *Workspace) Prompts() *Prompts { return w.prompts }

// Connect creates the provider for identity and makes it active when it is
// available. An explicit apiKey wins over the secret store; when it is empty
// the descriptor's key variable is resolved.
//
// On failure the previously active provider stays in place. An unavailable
// provider is returned together with a KindBackendUnavailable error so the
// caller can show its diagnostic.
func (w *Workspace) Connect(ctx context.Context, identity, apiKey string) (*llm.Provider, error) {
	d, ok := llm.Lookup(identity)
	if !ok {
		return nil, &llm.Error{Kind: llm.KindConfiguration, Provider: identity, Message: "not in catalog", Cause: llm.ErrUnknownProvider}
	}

	secret := strings.TrimSpace(apiKey)
	if secret == "" && d.KeyEnvVar != "" {
		secret = w.secrets.Resolve(d.KeyEnvVar)
	} else if secret != "" && d.KeyEnvVar != "" {
		// Remember a key typed into the UI for later reconnects.
		w.secrets.Set(d.KeyEnvVar, secret)
	}

	p, err := w.factory.Create(ctx, d.ID, secret)
	if err != nil {
		return nil, err
	}
	if !p.Available() {
		return p, &llm.Error{Kind: llm.KindBackendUnavailable, Provider: p.Name(), Message: p.Diagnostic()}
	}

	w.mu.Lock()
	w.provider = p
	w.mu.Unlock()

	w.logger.Info("provider connected", zap.String("provider", p.ID()), zap.String("model", p.ModelName()))
	return p, nil
}

// Provider returns the active provider, or nil.
func (w *Workspace) Provider() *llm.Provider {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.provider
}

// completer converts the active provider into an interface value, keeping a
// nil *Provider from turning into a non-nil interface.
func (w *Workspace) completer() llm.Completer {
	if p := w.Provider(); p != nil {
		return p
	}
	return nil
}

// NewDocument replaces the current session with a fresh one for text. The
// previous session's cache and research are discarded. No provider is needed.
func (w *Workspace) NewDocument(ctx context.Context, filename, text string, pages int) *Session {
	s := NewSession(filename, text, pages)

	w.mu.Lock()
	prev := w.session
	w.session = s
	w.mu.Unlock()

	if prev != nil {
		w.logger.Info("session replaced", zap.String("previous", prev.ID()), zap.String("session", s.ID()))
	}
	if w.sessions != nil {
		info := s.Info()
		if err := w.sessions.Create(ctx, &info); err != nil {
			w.logger.Warn("recording session", zap.String("session", s.ID()), zap.Error(err))
		}
	}
	return s
}

// Session returns the current document session.
func (w *Workspace) Session() (*Session, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.session == nil {
		return nil, ErrNoDocument
	}
	return w.session, nil
}

// AnalyzeSection produces the text for a section of the current document
// using its catalog prompt.
func (w *Workspace) AnalyzeSection(ctx context.Context, key model.SectionKey) (string, error) {
	sp, ok := w.prompts.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSection, key)
	}
	s, err := w.Session()
	if err != nil {
		return "", err
	}
	return w.analyzer.Analyze(ctx, s, key, sp.Prompt, w.completer())
}

// ExtractCompanyName asks the active provider for the company name, caching
// it on the session. Any failure yields UnknownCompany, which is not cached,
// so a later call with a working provider asks again.
func (w *Workspace) ExtractCompanyName(ctx context.Context) (string, error) {
	s, err := w.Session()
	if err != nil {
		return "", err
	}
	if name := s.CompanyName(); name != "" {
		return name, nil
	}

	p := w.completer()
	if p == nil {
		return UnknownCompany, nil
	}
	text, err := p.Complete(ctx, companyNamePrompt, llm.Truncate(s.Text(), companyNameWindow))
	if err != nil {
		w.logger.Warn("extracting company name", zap.Error(err))
		return UnknownCompany, nil
	}
	name := cleanCompanyName(text)
	if name == "" {
		return UnknownCompany, nil
	}
	w.setCompany(ctx, s, name)
	return name, nil
}

func (w *Workspace) setCompany(ctx context.Context, s *Session, name string) {
	s.setCompanyName(name)
	if w.sessions != nil {
		if err := w.sessions.SetCompanyName(ctx, s.ID(), name); err != nil {
			w.logger.Warn("recording company name", zap.String("session", s.ID()), zap.Error(err))
		}
	}
}

func cleanCompanyName(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// EnableResearch attaches web research to the current session. When company
// is empty it is extracted from the document first. Sections already cached
// keep their text.
func (w *Workspace) EnableResearch(ctx context.Context, company string) (string, error) {
	if w.research == nil {
		return "", ErrResearchDisabled
	}
	s, err := w.Session()
	if err != nil {
		return "", err
	}

	company = strings.TrimSpace(company)
	if company == "" {
		if company, err = w.ExtractCompanyName(ctx); err != nil {
			return "", err
		}
	} else {
		w.setCompany(ctx, s, company)
	}

	s.SetEnhancer(w.research(company))
	w.logger.Info("web research enabled", zap.String("session", s.ID()), zap.String("company", company))
	return company, nil
}
