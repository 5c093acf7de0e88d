// Package config loads and validates intentloop configuration.
// Configuration lives in .intentloop/config.yaml under the workspace,
// with defaults applied for anything unset and a small number of
// environment overrides for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Verifier  VerifierConfig  `yaml:"verifier"`
	Execution ExecutionConfig `yaml:"execution"`
	Planner   PlannerConfig   `yaml:"planner"`
	Trust     TrustConfig     `yaml:"trust"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig controls the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		LLM:       DefaultLLMConfig(),
		Verifier:  DefaultVerifierConfig(),
		Execution: DefaultExecutionConfig(),
		Planner:   DefaultPlannerConfig(),
		Trust:     DefaultTrustConfig(),
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads configuration from <workspace>/.intentloop/config.yaml.
// A missing file is not an error; defaults are returned.
func Load(workspace string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(workspace, ".intentloop", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on top of file values.
// Only credentials and endpoints come from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("INTENTLOOP_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("INTENTLOOP_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.LLM.Host = v
	}
}

// Validate checks cross-field constraints and clamps ceilings.
func (c *Config) Validate() error {
	if err := c.Verifier.Validate(); err != nil {
		return fmt.Errorf("verifier config: %w", err)
	}
	if err := c.Execution.Validate(); err != nil {
		return fmt.Errorf("execution config: %w", err)
	}
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("planner config: %w", err)
	}
	if err := c.Trust.Validate(); err != nil {
		return fmt.Errorf("trust config: %w", err)
	}
	return nil
}
