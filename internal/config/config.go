// Package config provides configuration loading for driftgate.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DRIFTGATE_SNAPSHOTS_DIR, DRIFTGATE_LOG_LEVEL, ...)
//  2. YAML config file (~/.config/driftgate/config.yaml)
//  3. Hardcoded defaults
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ruizrica/driftgate/internal/logging"
)

// Duration wraps time.Duration for text unmarshaling (YAML, env vars).
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the root driftgate configuration.
type Config struct {
	Snapshots SnapshotsConfig `koanf:"snapshots"`
	Gates     GatesConfig     `koanf:"gates"`
	Log       logging.Config  `koanf:"log"`
}

// SnapshotsConfig controls run-history persistence.
type SnapshotsConfig struct {
	// Dir is the snapshot store root. Empty uses
	// ~/.config/driftgate/snapshots.
	Dir string `koanf:"dir"`
}

// GatesConfig controls gate execution.
type GatesConfig struct {
	// Timeout applies independently to each gate. Zero disables the
	// per-gate deadline.
	Timeout Duration `koanf:"timeout"`
}

// Default returns the hardcoded defaults.
func Default() *Config {
	return &Config{
		Gates: GatesConfig{Timeout: Duration(30 * time.Second)},
		Log:   logging.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}
