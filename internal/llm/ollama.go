package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fleveque/fundamentals-analyzer/internal/config"
)

// ollamaBackend talks to a local Ollama daemon. The liveness probe uses a
// short timeout; generation includes model inference and uses a long one.
type ollamaBackend struct {
	baseURL     string
	model       string
	temperature float64
	numPredict  int
	client      *http.Client
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func buildOllama(ctx context.Context, f *Factory, _ string) (generator, error) {
	return newOllamaBackend(ctx, f.cfg.Ollama)
}

// newOllamaBackend probes GET /api/tags; only a 200 counts as available.
func newOllamaBackend(ctx context.Context, cfg config.OllamaConfig) (*ollamaBackend, error) {
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 120 * time.Second
	}

	b := &ollamaBackend{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		numPredict:  cfg.NumPredict,
		client:      &http.Client{Timeout: requestTimeout},
	}

	if err := b.probe(ctx, probeTimeout); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *ollamaBackend) probe(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}

	probeClient := &http.Client{Timeout: timeout}
	resp, err := probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not running at %s: %w", b.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama is installed but not healthy: %s", resp.Status)
	}
	return nil
}

func (b *ollamaBackend) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  b.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: b.temperature,
			NumPredict:  b.numPredict,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding ollama response: %w", err)
	}
	return out.Response, nil
}
