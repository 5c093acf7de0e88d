package config

import "time"

// LLMConfig configures the inference provider.
type LLMConfig struct {
	// Provider selects the backend: "ollama" or "gemini".
	Provider string `yaml:"provider"`
	// Model is the model name passed to the provider.
	Model string `yaml:"model"`
	// Host is the Ollama endpoint; ignored for gemini.
	Host string `yaml:"host"`
	// Timeout bounds a single generation call.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultLLMConfig returns the default inference settings.
// Ollama is the default backend so the system works offline.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider: "ollama",
		Model:    "qwen2.5-coder:7b",
		Host:     "http://localhost:11434",
		Timeout:  60 * time.Second,
	}
}
