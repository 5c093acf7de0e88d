package config

import "fmt"

// TrustConfig configures the adaptive trust budget.
type TrustConfig struct {
	// Initial is the starting budget for a fresh session, in [0,100].
	Initial float64 `yaml:"initial"`
}

// DefaultTrustConfig returns the default trust settings.
func DefaultTrustConfig() TrustConfig {
	return TrustConfig{Initial: 100}
}

// Validate checks the initial budget is within bounds.
func (c *TrustConfig) Validate() error {
	if c.Initial < 0 || c.Initial > 100 {
		return fmt.Errorf("initial trust must be in [0,100], got %v", c.Initial)
	}
	return nil
}
