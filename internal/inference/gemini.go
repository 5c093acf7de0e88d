package inference

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"intentloop/internal/config"
)

// geminiClient talks to the Gemini API.
type geminiClient struct {
	client *genai.Client
	model  string
	cfg    config.LLMConfig
}

const geminiDefaultModel = "gemini-2.0-flash"

func newGeminiClient(cfg config.LLMConfig) (*geminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set: %w", ErrUnavailable)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client init: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	return &geminiClient{client: client, model: model, cfg: cfg}, nil
}

func (c *geminiClient) Generate(ctx context.Context, prompt string, mode Mode) (string, error) {
	if c.client == nil {
		return "", ErrNotInitialized
	}

	return withTimeout(ctx, c.cfg.Timeout, func(ctx context.Context) (string, error) {
		var genCfg *genai.GenerateContentConfig
		if mode == ModePlan || mode == ModeAction {
			genCfg = &genai.GenerateContentConfig{
				ResponseMIMEType: "application/json",
			}
		}

		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genCfg)
		if err != nil {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("gemini: empty response: %w", ErrUnavailable)
		}
		return resp.Candidates[0].Content.Parts[0].Text, nil
	})
}
