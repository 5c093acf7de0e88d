package config

import (
	"fmt"
	"time"
)

// VerifierConfig configures the multi-layer verifier.
type VerifierConfig struct {
	// BehavioralTimeout bounds test/compile runs in the behavioral layer.
	BehavioralTimeout time.Duration `yaml:"behavioral_timeout"`
	// BehavioralTimeoutMax is the hard ceiling for BehavioralTimeout.
	BehavioralTimeoutMax time.Duration `yaml:"behavioral_timeout_max"`
	// IntentTimeout bounds the intent layer's LLM call.
	IntentTimeout time.Duration `yaml:"intent_timeout"`
	// StopOnFailure selects fail-fast (true, default) or full-layer mode.
	StopOnFailure bool `yaml:"stop_on_failure"`
}

// DefaultVerifierConfig returns the default verifier settings.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		BehavioralTimeout:    5 * time.Second,
		BehavioralTimeoutMax: 10 * time.Second,
		IntentTimeout:        30 * time.Second,
		StopOnFailure:        true,
	}
}

// Validate clamps the behavioral timeout to its ceiling.
func (c *VerifierConfig) Validate() error {
	if c.BehavioralTimeout <= 0 {
		return fmt.Errorf("behavioral_timeout must be positive, got %v", c.BehavioralTimeout)
	}
	if c.BehavioralTimeoutMax <= 0 {
		c.BehavioralTimeoutMax = 10 * time.Second
	}
	if c.BehavioralTimeout > c.BehavioralTimeoutMax {
		c.BehavioralTimeout = c.BehavioralTimeoutMax
	}
	return nil
}
