package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 120*time.Second, cfg.Execution.ProcessTimeout)
	assert.Equal(t, 3, cfg.Planner.MaxRetries)
	assert.Equal(t, 5, cfg.Planner.MaxDepth)
	assert.Equal(t, 100.0, cfg.Trust.Initial)
	assert.True(t, cfg.Verifier.StopOnFailure)
}

func TestLoadParsesYaml(t *testing.T) {
	ws := t.TempDir()
	dir := filepath.Join(ws, ".intentloop")
	require.NoError(t, os.MkdirAll(dir, 0755))

	yaml := `
llm:
  provider: gemini
  model: gemini-2.0-flash
planner:
  max_retries: 2
  max_depth: 4
  reflection_window: 5
execution:
  process_timeout: 30s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load(ws)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 2, cfg.Planner.MaxRetries)
	assert.Equal(t, 4, cfg.Planner.MaxDepth)
	assert.Equal(t, 30*time.Second, cfg.Execution.ProcessTimeout)
}

func TestTimeoutsClampedToCeilings(t *testing.T) {
	cfg := Default()
	cfg.Execution.ProcessTimeout = 2000 * time.Second
	cfg.Verifier.BehavioralTimeout = 60 * time.Second
	require.NoError(t, cfg.Validate())

	assert.Equal(t, cfg.Execution.ProcessTimeoutMax, cfg.Execution.ProcessTimeout)
	assert.Equal(t, cfg.Verifier.BehavioralTimeoutMax, cfg.Verifier.BehavioralTimeout)
}

func TestRmDenialIsNotConfigurable(t *testing.T) {
	cfg := Default()
	cfg.Execution.AllowedBinaries["rm"] = true
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Execution.AllowedBinaries["rm"])
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INTENTLOOP_LLM_PROVIDER", "gemini")
	t.Setenv("INTENTLOOP_LLM_MODEL", "gemini-2.5-pro")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
}

func TestInvalidTrustRejected(t *testing.T) {
	cfg := Default()
	cfg.Trust.Initial = 150
	assert.Error(t, cfg.Validate())
}
