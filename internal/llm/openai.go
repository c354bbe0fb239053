package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// chatBackend speaks the OpenAI chat-completions protocol. Groq exposes the
// same API under a different base URL, so both providers share it.
type chatBackend struct {
	client *openai.Client
	model  string
	vendor string
}

func newChatBackend(apiKey, baseURL, model, vendor string) *chatBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &chatBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		vendor: vendor,
	}
}

func buildOpenAI(_ context.Context, f *Factory, secret string) (generator, error) {
	return newChatBackend(secret, f.cfg.OpenAI.BaseURL, f.cfg.OpenAI.Model, "openai"), nil
}

func buildGroq(_ context.Context, f *Factory, secret string) (generator, error) {
	return newChatBackend(secret, f.cfg.Groq.BaseURL, f.cfg.Groq.Model, "groq"), nil
}

// groqLimiter paces calls to stay inside the free tier.
// rate.Every converts "one event per interval" into a rate.Limit.
func groqLimiter(ratePerMinute int) *rate.Limiter {
	if ratePerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), 1)
}

func (c *chatBackend) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s API call: %w", c.vendor, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", c.vendor)
	}
	return resp.Choices[0].Message.Content, nil
}
