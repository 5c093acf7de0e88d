package inference

import (
	"context"
	"sync"
)

// FakeClient is a scripted Client for tests. Responses are consumed in
// order; Err (when set) is returned for every call instead.
type FakeClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	// Calls records every prompt/mode pair for assertions.
	Calls []FakeCall
	// Script, when set, overrides Responses: it is invoked per call
	// and may branch on the prompt or mode.
	Script func(prompt string, mode Mode) (string, error)
}

// FakeCall is one recorded Generate invocation.
type FakeCall struct {
	Prompt string
	Mode   Mode
}

// Generate returns the next scripted response.
func (f *FakeClient) Generate(ctx context.Context, prompt string, mode Mode) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, FakeCall{Prompt: prompt, Mode: mode})

	if err := ctx.Err(); err != nil {
		return "", ErrTimeout
	}
	if f.Script != nil {
		return f.Script(prompt, mode)
	}
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", ErrUnavailable
	}
	resp := f.Responses[0]
	f.Responses = f.Responses[1:]
	return resp, nil
}

// CallCount returns how many times Generate was invoked.
func (f *FakeClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
