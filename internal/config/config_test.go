package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Code.BaseGraph)
	assert.Equal(t, []int{0, 2, 3, 1}, cfg.Sim.RVSequence)
	assert.Equal(t, "INFO", cfg.Logging.Level)

	p := cfg.Params(3)
	assert.Equal(t, 3, p.RV)
	assert.Equal(t, cfg.Code.Z, p.Z)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval.yaml")
	yaml := `
code:
  base_graph: 2
  z: 16
  k: 160
  f: 8
  c: 2
  qm: 2
  g: 1200
sim:
  runs: 10
  rv_sequence: [0, 3]
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("NRC_SIM_FLIP_PROB", "0.25")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Code.BaseGraph)
	assert.Equal(t, 160, cfg.Code.K)
	assert.Equal(t, 10, cfg.Sim.Runs)
	assert.Equal(t, []int{0, 3}, cfg.Sim.RVSequence)
	assert.InDelta(t, 0.25, cfg.Sim.FlipProb, 1e-9)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("code:\n  qm: 5\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("sim:\n  rv_sequence: [0, 4]\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("code:\n  g: 1001\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestSetupLoggingFilters(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	var buf bytes.Buffer
	SetupLogging("warn", &buf)
	log.Print("[DEBUG] hidden")
	log.Print("[INFO] hidden")
	log.Print("[WARN] shown")
	log.Print("[ERROR] shown too")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown")
	assert.Contains(t, out, "[ERROR] shown too")
}
