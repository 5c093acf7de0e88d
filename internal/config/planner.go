package config

import "fmt"

// PlannerConfig configures the intention cycle engine.
type PlannerConfig struct {
	// MaxRetries is the per-intention retry ceiling.
	MaxRetries int `yaml:"max_retries"`
	// MaxDepth is the decomposition depth ceiling.
	MaxDepth int `yaml:"max_depth"`
	// ReflectionWindow is how many recent cycle reflections are fed
	// back into the next generation prompt.
	ReflectionWindow int `yaml:"reflection_window"`
}

// DefaultPlannerConfig returns the default planner settings.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		MaxRetries:       3,
		MaxDepth:         5,
		ReflectionWindow: 3,
	}
}

// Validate checks the ceilings are sane.
func (c *PlannerConfig) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1, got %d", c.MaxDepth)
	}
	if c.ReflectionWindow < 0 {
		c.ReflectionWindow = 0
	}
	return nil
}
