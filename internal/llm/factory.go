package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/config"
)

// Factory builds providers from catalog identities. Provider settings
// (models, base URLs, timeouts) come from config, so swapping a model is a
// config change, not a code change.
type Factory struct {
	cfg    config.LLMConfig
	logger *zap.Logger
}

// NewFactory creates a Factory.
func NewFactory(cfg config.LLMConfig, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{cfg: cfg, logger: logger}
}

// Create constructs the provider for identity (display name or ID).
//
// It returns a nil provider and a KindConfiguration error when the identity
// is unknown or a required secret is empty or blank, whether or not the backend is
// reachable. Backend initialization failures (including panics)
// never escape: the provider comes back with Available() == false and a
// Diagnostic() explaining why.
func (f *Factory) Create(ctx context.Context, identity, secret string) (p *Provider, err error) {
	d, ok := Lookup(identity)
	if !ok {
		return nil, &Error{Kind: KindConfiguration, Provider: identity, Message: "not in catalog", Cause: ErrUnknownProvider}
	}
	secret = strings.TrimSpace(secret)
	if d.RequiresKey && secret == "" {
		return nil, &Error{
			Kind:     KindConfiguration,
			Provider: d.Name,
			Message:  fmt.Sprintf("set %s or enter a key (get one at %s)", d.KeyEnvVar, d.SignupURL),
			Cause:    ErrMissingKey,
		}
	}

	p = &Provider{
		descriptor: d,
		model:      f.modelFor(d.ID),
		logger:     f.logger,
	}
	if d.ID == "groq" {
		p.limiter = groqLimiter(f.cfg.Groq.RatePerMinute)
	}

	// recover turns a panicking client constructor into an unavailable
	// provider. Deferred functions can modify named return values.
	defer func() {
		if r := recover(); r != nil {
			p.available = false
			p.backend = nil
			p.diagnostic = fmt.Sprintf("initializing %s: %v", d.Name, r)
			f.logger.Error("provider construction panicked", zap.String("provider", d.ID), zap.Any("panic", r))
			err = nil
		}
	}()

	backend, buildErr := d.build(ctx, f, secret)
	if buildErr != nil {
		p.diagnostic = buildErr.Error()
		f.logger.Warn("provider unavailable", zap.String("provider", d.ID), zap.Error(buildErr))
		return p, nil
	}

	p.backend = backend
	p.available = true
	f.logger.Info("provider ready", zap.String("provider", d.ID), zap.String("model", p.model))
	return p, nil
}

func (f *Factory) modelFor(id string) string {
	switch id {
	case "groq":
		return f.cfg.Groq.Model
	case "ollama":
		return f.cfg.Ollama.Model
	case "anthropic":
		return f.cfg.Anthropic.Model
	case "openai":
		return f.cfg.OpenAI.Model
	case "gemini":
		return f.cfg.Gemini.Model
	default:
		return ""
	}
}
