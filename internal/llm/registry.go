package llm

import (
	"context"
	"strings"
)

// Variant is the capability class of a provider, resolved at configuration time.
type Variant string

const (
	VariantRemoteKeyed Variant = "remote_keyed"
	VariantRemoteFree  Variant = "remote_free"
	VariantLocalDaemon Variant = "local_daemon"
)

// Descriptor is the immutable catalog entry for one provider identity.
// Identity is the display Name; ID is a short alias for CLIs and APIs.
type Descriptor struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Variant       Variant `json:"variant"`
	RequiresKey   bool    `json:"requires_key"`
	KeyEnvVar     string  `json:"key_env_var,omitempty"`
	SignupURL     string  `json:"signup_url"`
	Description   string  `json:"description"`
	CostTier      string  `json:"cost_tier"`
	ContextBudget int     `json:"context_budget"`

	// unavailable is the fixed text Complete returns when the backend is down.
	unavailable string
	// build is the capability constructor. A non-nil error marks the
	// resulting provider unavailable.
	build func(ctx context.Context, f *Factory, secret string) (generator, error)
}

// catalog is defined once at process start and never mutated.
// Order matters: it is the order shown to users.
var catalog = []Descriptor{
	{
		ID:            "groq",
		Name:          "Groq (FREE - Llama 3.3)",
		Variant:       VariantRemoteFree,
		RequiresKey:   true,
		KeyEnvVar:     "GROQ_API_KEY",
		SignupURL:     "https://console.groq.com",
		Description:   "Free tier available! Fast inference with Llama 3.3 70B",
		CostTier:      "FREE (limited rate)",
		ContextBudget: 30000,
		unavailable:   "Groq provider not available. Check your GROQ_API_KEY and reconnect.",
		build:         buildGroq,
	},
	{
		ID:            "ollama",
		Name:          "Ollama (FREE - Local)",
		Variant:       VariantLocalDaemon,
		RequiresKey:   false,
		SignupURL:     "https://ollama.com",
		Description:   "100% free, runs locally on your computer",
		CostTier:      "FREE (unlimited)",
		ContextBudget: 20000,
		unavailable:   "Ollama not available. Install from https://ollama.com and run: ollama serve",
		build:         buildOllama,
	},
	{
		ID:            "anthropic",
		Name:          "Anthropic Claude",
		Variant:       VariantRemoteKeyed,
		RequiresKey:   true,
		KeyEnvVar:     "ANTHROPIC_API_KEY",
		SignupURL:     "https://console.anthropic.com",
		Description:   "High quality analysis, best results",
		CostTier:      "$0.10-0.45 per analysis",
		ContextBudget: 50000,
		unavailable:   "Anthropic provider not available. Check your ANTHROPIC_API_KEY and reconnect.",
		build:         buildAnthropic,
	},
	{
		ID:            "openai",
		Name:          "OpenAI GPT-4",
		Variant:       VariantRemoteKeyed,
		RequiresKey:   true,
		KeyEnvVar:     "OPENAI_API_KEY",
		SignupURL:     "https://platform.openai.com",
		Description:   "Good quality, some free credits for new users",
		CostTier:      "$0.15-0.60 per analysis",
		ContextBudget: 30000,
		unavailable:   "OpenAI provider not available. Check your OPENAI_API_KEY and reconnect.",
		build:         buildOpenAI,
	},
	{
		ID:            "gemini",
		Name:          "Google Gemini",
		Variant:       VariantRemoteKeyed,
		RequiresKey:   true,
		KeyEnvVar:     "GEMINI_API_KEY",
		SignupURL:     "https://aistudio.google.com",
		Description:   "Long context window, generous free quota",
		CostTier:      "FREE tier, then pay-as-you-go",
		ContextBudget: 50000,
		unavailable:   "Gemini provider not available. Check your GEMINI_API_KEY and reconnect.",
		build:         buildGemini,
	},
}

// Catalog returns a copy of every descriptor in display order.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a descriptor by display name or by ID (case-insensitive).
func Lookup(identity string) (Descriptor, bool) {
	identity = strings.TrimSpace(identity)
	for _, d := range catalog {
		if d.Name == identity || strings.EqualFold(d.ID, identity) {
			return d, true
		}
	}
	return Descriptor{}, false
}
