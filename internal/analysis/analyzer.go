// Package analysis runs section prompts against the active provider and
// caches the results for the lifetime of a document session.
package analysis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/llm"
	"github.com/fleveque/fundamentals-analyzer/internal/model"
)

// NotConfiguredMessage is shown when a section is requested with no provider.
const NotConfiguredMessage = "AI provider not configured. Please connect to an AI provider in the sidebar to continue."

// CallRecorder persists one row per provider invocation.
// storage.LLMCallRepository satisfies it.
type CallRecorder interface {
	Create(ctx context.Context, call *model.LLMCall) error
}

// DefaultCallTimeout bounds one shared provider invocation.
const DefaultCallTimeout = 5 * time.Minute

// Analyzer implements the look-up, compute, store sequence for sections.
type Analyzer struct {
	cacheFailures bool
	callTimeout   time.Duration
	recorder      CallRecorder
	logger        *zap.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithCacheFailures makes failed completions stick in the cache like
// successful ones, so a section is never re-requested within a session.
func WithCacheFailures(enabled bool) AnalyzerOption {
	return func(a *Analyzer) { a.cacheFailures = enabled }
}

// WithCallTimeout bounds each provider invocation. Non-positive values keep
// DefaultCallTimeout.
func WithCallTimeout(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if d > 0 {
			a.callTimeout = d
		}
	}
}

// WithRecorder sets where provider calls are recorded.
func WithRecorder(r CallRecorder) AnalyzerOption {
	return func(a *Analyzer) { a.recorder = r }
}

// NewAnalyzer creates an Analyzer. By default failures are not cached.
func NewAnalyzer(logger *zap.Logger, opts ...AnalyzerOption) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analyzer{callTimeout: DefaultCallTimeout, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type outcome struct {
	text string
	err  error
}

// Analyze returns the text for section key. A cached value is returned
// without touching the provider. With a nil provider the not-configured
// message comes back (uncached) with a KindConfiguration error.
//
// Concurrent calls for the same key share a single provider invocation.
// That invocation is detached from the cancellation of whichever caller
// started it and is bounded by the call timeout instead, so one caller
// going away does not fail the others. The returned text is always renderable; err reports whether it is a
// failure message.
func (a *Analyzer) Analyze(ctx context.Context, s *Session, key model.SectionKey, prompt string, provider llm.Completer) (string, error) {
	if text, ok := s.Cached(key); ok {
		a.logger.Debug("section cache hit", zap.String("section", string(key)), zap.String("session", s.ID()))
		return text, nil
	}
	if provider == nil {
		return NotConfiguredMessage, &llm.Error{Kind: llm.KindConfiguration, Message: NotConfiguredMessage, Cause: llm.ErrNotConfigured}
	}

	v, _, _ := s.flights.Do(string(key), func() (any, error) {
		// Another flight may have finished between the lookup above and now.
		if text, ok := s.Cached(key); ok {
			return outcome{text: text}, nil
		}
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.callTimeout)
		defer cancel()
		text, err := a.complete(callCtx, s, key, prompt, provider)
		if err == nil || a.cacheFailures {
			s.store(key, text)
		}
		return outcome{text: text, err: err}, nil
	})
	out := v.(outcome)
	return out.text, out.err
}

func (a *Analyzer) complete(ctx context.Context, s *Session, key model.SectionKey, prompt string, provider llm.Completer) (string, error) {
	if e := s.currentEnhancer(); e != nil {
		prompt = e.Enhance(ctx, prompt, key)
	}

	start := time.Now()
	text, err := provider.Complete(ctx, prompt, s.Text())
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		a.logger.Warn("section analysis failed",
			zap.String("section", string(key)),
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
	} else {
		a.logger.Info("section analyzed",
			zap.String("section", string(key)),
			zap.String("provider", provider.Name()),
			zap.Int64("duration_ms", elapsed),
		)
	}
	a.record(ctx, s, key, prompt, provider, err, elapsed)
	return text, err
}

// record writes the ledger row. Ledger failures are logged, never surfaced.
func (a *Analyzer) record(ctx context.Context, s *Session, key model.SectionKey, prompt string, provider llm.Completer, callErr error, elapsedMs int64) {
	if a.recorder == nil {
		return
	}
	call := &model.LLMCall{
		SessionID:    s.ID(),
		Section:      string(key),
		Provider:     provider.Name(),
		Model:        provider.ModelName(),
		Success:      callErr == nil,
		PromptChars:  len([]rune(prompt)),
		ContextChars: len([]rune(s.Text())),
		DurationMs:   &elapsedMs,
	}
	if p, ok := provider.(interface{ ContextBudget() int }); ok && call.ContextChars > p.ContextBudget() {
		call.ContextChars = p.ContextBudget()
	}
	if callErr != nil {
		kind := llm.KindOf(callErr).String()
		call.ErrorKind = &kind
	}
	// A cancelled request context must not lose the row.
	if err := a.recorder.Create(context.WithoutCancel(ctx), call); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("recording llm call", zap.Error(err))
	}
}
