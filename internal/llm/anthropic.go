package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicBackend calls Claude through the official SDK.
type anthropicBackend struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func buildAnthropic(_ context.Context, f *Factory, secret string) (generator, error) {
	cfg := f.cfg.Anthropic
	opts := []option.RequestOption{
		option.WithAPIKey(secret),
		// The SDK retries by default; failures here surface immediately instead.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &anthropicBackend{client: &client, model: cfg.Model, maxTokens: maxTokens}, nil
}

func (a *anthropicBackend) generate(ctx context.Context, prompt string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content (stop reason %s)", message.StopReason)
	}
	return sb.String(), nil
}
