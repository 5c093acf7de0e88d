// Package inference abstracts the LLM backend behind a small Client
// interface with two real providers (Ollama, Gemini) and a scripted
// fake for tests. The planner and the verifier's intent layer are the
// only consumers.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"intentloop/internal/config"
	"intentloop/internal/logging"
)

// Mode tags what a generation is for; providers may adjust the system
// framing per mode.
type Mode string

const (
	ModePlan   Mode = "plan"   // decomposing an intention into children
	ModeAction Mode = "action" // generating the next concrete action
	ModeJudge  Mode = "judge"  // judging results against acceptance criteria
)

// Sentinel errors. Callers branch on these to convert inference
// problems into cycle failures rather than aborting the intention.
var (
	ErrTimeout        = errors.New("inference timeout")
	ErrUnavailable    = errors.New("inference unavailable")
	ErrNotInitialized = errors.New("inference client not initialized")
)

// Client generates text from a prompt. Implementations must honor
// context cancellation and return ErrTimeout when the deadline passes.
type Client interface {
	// Generate produces a completion. Mode tags the purpose of the
	// call; providers that support JSON-constrained output use it to
	// force structured responses for plan and action modes.
	Generate(ctx context.Context, prompt string, mode Mode) (string, error)
}

// New builds a Client from config. Unknown providers are an error;
// there is deliberately no silent fallback between backends.
func New(cfg config.LLMConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		return newOllamaClient(cfg)
	case "gemini":
		return newGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// withTimeout wraps a provider call with the configured per-call
// timeout and maps context errors onto the sentinel taxonomy.
func withTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) (string, error)) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logging.InferenceError("generation timed out after %v", elapsed)
			return "", ErrTimeout
		}
		logging.InferenceError("generation failed after %v: %v", elapsed, err)
		return "", err
	}

	logging.Inference("generation completed in %v (%d bytes)", elapsed, len(out))
	return out, nil
}

// StripFences removes a markdown code fence wrapper from a model
// response, if present. Models frequently wrap JSON in ```json fences
// even when asked not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
