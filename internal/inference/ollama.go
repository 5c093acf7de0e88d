package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"intentloop/internal/config"
)

// ollamaClient talks to a local Ollama daemon.
type ollamaClient struct {
	client *api.Client
	model  string
	cfg    config.LLMConfig
}

func newOllamaClient(cfg config.LLMConfig) (*ollamaClient, error) {
	var client *api.Client
	if strings.TrimSpace(cfg.Host) == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client from environment: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host %q: %w", cfg.Host, err)
		}
		client = api.NewClient(u, nil)
	}

	model := cfg.Model
	if model == "" {
		model = "qwen2.5-coder:7b"
	}
	return &ollamaClient{client: client, model: model, cfg: cfg}, nil
}

func (c *ollamaClient) Generate(ctx context.Context, prompt string, mode Mode) (string, error) {
	if c.client == nil {
		return "", ErrNotInitialized
	}

	return withTimeout(ctx, c.cfg.Timeout, func(ctx context.Context) (string, error) {
		stream := false
		req := &api.GenerateRequest{
			Model:  c.model,
			Prompt: prompt,
			Stream: &stream,
		}
		// Plan and action responses are parsed as JSON; constrain the
		// decoder so we never get prose around the payload.
		if mode == ModePlan || mode == ModeAction {
			req.Format = json.RawMessage(`"json"`)
		}

		var out strings.Builder
		err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
			out.WriteString(resp.Response)
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("ollama generate: %w", err)
		}
		if out.Len() == 0 {
			return "", fmt.Errorf("ollama: empty response: %w", ErrUnavailable)
		}
		return out.String(), nil
	})
}
