package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix namespaces driftgate environment variables.
	envPrefix = "DRIFTGATE_"

	// maxConfigFileSize rejects oversized config files.
	maxConfigFileSize = 1024 * 1024
)

// defaultYAML seeds the koanf tree before file and env overrides.
var defaultYAML = []byte(`
snapshots:
  dir: ""
gates:
  timeout: 30s
log:
  level: info
  format: console
`)

// Load reads configuration from the YAML file at configPath, then
// overrides with DRIFTGATE_* environment variables. An empty configPath
// uses ~/.config/driftgate/config.yaml; a missing file is not an error.
//
// Environment variables map to config keys by stripping the prefix,
// lowercasing, and turning underscores into dots:
//
//	DRIFTGATE_SNAPSHOTS_DIR -> snapshots.dir
//	DRIFTGATE_GATES_TIMEOUT -> gates.timeout
//	DRIFTGATE_LOG_LEVEL     -> log.level
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "driftgate", "config.yaml")
	}

	if info, err := os.Stat(configPath); err == nil {
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
		}
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(key), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
