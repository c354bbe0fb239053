// Package llm provides a uniform interface over heterogeneous LLM backends
// (cloud APIs with keys, free-tier cloud APIs, and a local Ollama daemon).
// Every backend turns a section prompt plus annual-report text into prose.
package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// systemPrompt is sent by the chat-style backends.
const systemPrompt = "You are a financial analyst expert who analyzes company annual reports and provides detailed insights."

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 2048
)

// generator is the one capability each backend implements. It receives the
// fully assembled prompt (instructions + truncated document).
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// Completer is what the analyzer needs from a provider.
// Keep interfaces small: the bigger the interface, the weaker the abstraction.
type Completer interface {
	Complete(ctx context.Context, prompt, document string) (string, error)
	Name() string
	ModelName() string
}

// Provider is a connected backend. It owns its client handle exclusively;
// replacing the active provider simply drops the old value.
type Provider struct {
	descriptor Descriptor
	model      string
	available  bool
	diagnostic string
	backend    generator
	limiter    *rate.Limiter // nil unless the backend is rate-limited (free tier)
	logger     *zap.Logger
}

var _ Completer = (*Provider)(nil)

func (p *Provider) Name() string           { return p.descriptor.Name }
func (p *Provider) ID() string             { return p.descriptor.ID }
func (p *Provider) ModelName() string      { return p.model }
func (p *Provider) Available() bool        { return p.available }
func (p *Provider) Diagnostic() string     { return p.diagnostic }
func (p *Provider) ContextBudget() int     { return p.descriptor.ContextBudget }
func (p *Provider) Descriptor() Descriptor { return p.descriptor }

// Complete sends prompt plus a prefix of document (up to the provider's
// context budget) to the backend.
//
// The returned text is always renderable: on failure it is a human-readable
// explanation and err carries the *Error with its Kind. There are no retries;
// a failed call surfaces immediately.
func (p *Provider) Complete(ctx context.Context, prompt, document string) (string, error) {
	if !p.available || p.backend == nil {
		return p.descriptor.unavailable, &Error{
			Kind:     KindBackendUnavailable,
			Provider: p.Name(),
			Message:  p.descriptor.unavailable,
		}
	}

	if p.limiter != nil {
		// Blocks until a token is available or the context is cancelled.
		if err := p.limiter.Wait(ctx); err != nil {
			return p.failure(&Error{Kind: KindTransient, Provider: p.Name(), Message: "rate limit wait", Cause: err})
		}
	}

	full := BuildPrompt(prompt, Truncate(document, p.descriptor.ContextBudget))

	start := time.Now()
	text, err := p.backend.generate(ctx, full)
	if err != nil {
		return p.failure(&Error{Kind: KindTransient, Provider: p.Name(), Message: "completion failed", Cause: err})
	}

	p.logger.Debug("completion finished",
		zap.String("provider", p.descriptor.ID),
		zap.String("model", p.model),
		zap.Int("prompt_chars", len(full)),
		zap.Duration("duration", time.Since(start)),
	)
	return text, nil
}

func (p *Provider) failure(e *Error) (string, error) {
	p.logger.Warn("provider call failed",
		zap.String("provider", p.descriptor.ID),
		zap.String("kind", e.Kind.String()),
		zap.Error(e.Cause),
	)
	cause := e.Cause
	if cause == nil {
		cause = fmt.Errorf("%s", e.Message)
	}
	return fmt.Sprintf("Error calling %s: %v", p.Name(), cause), e
}

// BuildPrompt joins the section instructions with the report text.
func BuildPrompt(prompt, document string) string {
	return prompt + "\n\nAnnual Report Content:\n" + document
}

// Truncate returns the first limit characters (runes) of s. It never splits
// a UTF-8 sequence. The budget is a plain prefix: early report content is
// assumed to be the most relevant.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	// A string of at most limit bytes has at most limit runes.
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
