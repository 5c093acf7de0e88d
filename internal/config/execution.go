package config

import (
	"fmt"
	"time"
)

// ExecutionConfig configures the execution engine: timeouts, backups,
// the process allow-list and output caps.
type ExecutionConfig struct {
	// ProcessTimeout bounds a single process execution.
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	// ProcessTimeoutMax is the hard ceiling for ProcessTimeout.
	ProcessTimeoutMax time.Duration `yaml:"process_timeout_max"`
	// EvalTimeout bounds a single evaluate_code run.
	EvalTimeout time.Duration `yaml:"eval_timeout"`
	// BackupDir is where pre-write backups are kept, relative to the
	// workspace when not absolute.
	BackupDir string `yaml:"backup_dir"`
	// MaxBackupMB caps the size of a single file backup.
	MaxBackupMB int `yaml:"max_backup_mb"`
	// MaxOutputBytes caps captured stdout/stderr per stream.
	MaxOutputBytes int `yaml:"max_output_bytes"`
	// LowerPriority reduces child process scheduling priority.
	LowerPriority bool `yaml:"lower_priority"`
	// AllowedBinaries is the process executor allow-list. A binary
	// mapped to false is explicitly denied; a binary absent from the
	// map is denied by default.
	AllowedBinaries map[string]bool `yaml:"allowed_binaries,omitempty"`
}

// DefaultExecutionConfig returns execution defaults. The allow-list
// covers build, test and service-management tools; rm is denied and
// stays denied.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		ProcessTimeout:    120 * time.Second,
		ProcessTimeoutMax: 600 * time.Second,
		EvalTimeout:       30 * time.Second,
		BackupDir:         ".intentloop/backups",
		MaxBackupMB:       50,
		MaxOutputBytes:    1 << 20, // 1 MiB per stream
		LowerPriority:     true,
		AllowedBinaries: map[string]bool{
			"go":        true,
			"gofmt":     true,
			"python3":   true,
			"python":    true,
			"pytest":    true,
			"node":      true,
			"npm":       true,
			"git":       true,
			"ls":        true,
			"cat":       true,
			"grep":      true,
			"mkdir":     true,
			"rmdir":     true,
			"touch":     true,
			"cp":        true,
			"mv":        true,
			"systemctl": true,
			"mount":     true,
			"umount":    true,
			"rm":        false, // never allowed, deletions go through delete_file
			"sudo":      false,
		},
	}
}

// Validate clamps timeouts to their ceilings and checks basic sanity.
func (c *ExecutionConfig) Validate() error {
	if c.ProcessTimeout <= 0 {
		return fmt.Errorf("process_timeout must be positive, got %v", c.ProcessTimeout)
	}
	if c.ProcessTimeoutMax <= 0 {
		c.ProcessTimeoutMax = 600 * time.Second
	}
	if c.ProcessTimeout > c.ProcessTimeoutMax {
		c.ProcessTimeout = c.ProcessTimeoutMax
	}
	if c.MaxBackupMB <= 0 {
		c.MaxBackupMB = 50
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = 1 << 20
	}
	// The rm denial is constitutional, not configurable.
	if c.AllowedBinaries == nil {
		c.AllowedBinaries = DefaultExecutionConfig().AllowedBinaries
	}
	c.AllowedBinaries["rm"] = false
	return nil
}
