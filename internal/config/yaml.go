package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// yaml.v3 has no native time.Duration support, so the structs that
// carry timeouts decode them from "30s"-style strings by hand. Fields
// absent from the document keep whatever value the struct already has,
// which is how partial configs inherit defaults.

func setDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}

func (c *LLMConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		Host     string `yaml:"host"`
		Timeout  string `yaml:"timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Provider != "" {
		c.Provider = raw.Provider
	}
	if raw.Model != "" {
		c.Model = raw.Model
	}
	if raw.Host != "" {
		c.Host = raw.Host
	}
	return setDuration(&c.Timeout, raw.Timeout, "llm.timeout")
}

func (c *VerifierConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		BehavioralTimeout    string `yaml:"behavioral_timeout"`
		BehavioralTimeoutMax string `yaml:"behavioral_timeout_max"`
		IntentTimeout        string `yaml:"intent_timeout"`
		StopOnFailure        *bool  `yaml:"stop_on_failure"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if err := setDuration(&c.BehavioralTimeout, raw.BehavioralTimeout, "verifier.behavioral_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.BehavioralTimeoutMax, raw.BehavioralTimeoutMax, "verifier.behavioral_timeout_max"); err != nil {
		return err
	}
	if err := setDuration(&c.IntentTimeout, raw.IntentTimeout, "verifier.intent_timeout"); err != nil {
		return err
	}
	if raw.StopOnFailure != nil {
		c.StopOnFailure = *raw.StopOnFailure
	}
	return nil
}

func (c *ExecutionConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ProcessTimeout    string          `yaml:"process_timeout"`
		ProcessTimeoutMax string          `yaml:"process_timeout_max"`
		EvalTimeout       string          `yaml:"eval_timeout"`
		BackupDir         string          `yaml:"backup_dir"`
		MaxBackupMB       *int            `yaml:"max_backup_mb"`
		MaxOutputBytes    *int            `yaml:"max_output_bytes"`
		LowerPriority     *bool           `yaml:"lower_priority"`
		AllowedBinaries   map[string]bool `yaml:"allowed_binaries"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if err := setDuration(&c.ProcessTimeout, raw.ProcessTimeout, "execution.process_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.ProcessTimeoutMax, raw.ProcessTimeoutMax, "execution.process_timeout_max"); err != nil {
		return err
	}
	if err := setDuration(&c.EvalTimeout, raw.EvalTimeout, "execution.eval_timeout"); err != nil {
		return err
	}
	if raw.BackupDir != "" {
		c.BackupDir = raw.BackupDir
	}
	if raw.MaxBackupMB != nil {
		c.MaxBackupMB = *raw.MaxBackupMB
	}
	if raw.MaxOutputBytes != nil {
		c.MaxOutputBytes = *raw.MaxOutputBytes
	}
	if raw.LowerPriority != nil {
		c.LowerPriority = *raw.LowerPriority
	}
	// Configured entries overlay the default allow-list rather than
	// replacing it.
	if c.AllowedBinaries == nil && len(raw.AllowedBinaries) > 0 {
		c.AllowedBinaries = make(map[string]bool)
	}
	for bin, allowed := range raw.AllowedBinaries {
		c.AllowedBinaries[bin] = allowed
	}
	return nil
}
