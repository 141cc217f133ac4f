package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruizrica/driftgate/internal/engine"
	"github.com/ruizrica/driftgate/internal/gate"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Snapshots.Dir)
	assert.Equal(t, 30*time.Second, cfg.Gates.Timeout.Duration())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
snapshots:
  dir: /var/lib/driftgate
gates:
  timeout: 5s
log:
  level: debug
  format: json
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/driftgate", cfg.Snapshots.Dir)
	assert.Equal(t, 5*time.Second, cfg.Gates.Timeout.Duration())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0600))

	t.Setenv("DRIFTGATE_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_InvalidLevelRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: shouty\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestPresetPolicies_AllValid(t *testing.T) {
	presets := PresetPolicies()
	require.Len(t, presets, 3)

	for id, p := range presets {
		assert.Equal(t, id, p.ID)
		assert.NoError(t, engine.ValidatePolicy(p), "preset %s", id)
		assert.NotEmpty(t, p.GateConfigs, "preset %s", id)
	}

	assert.Equal(t, []string{"lenient", "standard", "strict"}, PresetIDs())
}

func TestResolvePolicy_Preset(t *testing.T) {
	p, err := ResolvePolicy("standard")
	require.NoError(t, err)
	assert.Equal(t, engine.ModeWeighted, p.Aggregation.Mode)
	assert.Contains(t, p.Aggregation.RequiredGates, gate.SecurityBoundary)
}

func TestResolvePolicy_Unknown(t *testing.T) {
	_, err := ResolvePolicy("draconian")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown policy")
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
id: team-backend
name: Backend Team Policy
aggregation:
  mode: weighted
  required_gates:
    - security-boundary
  weights:
    pattern-compliance: 2
  min_score: 80
gate_configs:
  pattern-compliance:
    rules:
      - id: no-println
        pattern: fmt\.Println
        severity: warning
  security-boundary: {}
`), 0600))

	p, err := ResolvePolicy(path)
	require.NoError(t, err)

	assert.Equal(t, "team-backend", p.ID)
	assert.Equal(t, engine.ModeWeighted, p.Aggregation.Mode)
	require.NotNil(t, p.Aggregation.MinScore)
	assert.Equal(t, float64(80), *p.Aggregation.MinScore)
	assert.Equal(t, float64(2), p.Aggregation.Weights[gate.PatternCompliance])
	assert.Contains(t, p.GateConfigs, gate.PatternCompliance)
}

func TestLoadPolicyFile_MissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: anonymous\n"), 0600))

	_, err := LoadPolicyFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id")
}

func TestLoadPolicyFile_InvalidAggregation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
id: broken
aggregation:
  mode: weighted
  min_score: -10
`), 0600))

	_, err := LoadPolicyFile(path)
	assert.ErrorIs(t, err, engine.ErrInvalidPolicy)
}
