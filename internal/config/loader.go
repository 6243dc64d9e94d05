package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces environment overrides: EVENTPARSE_SERVER_PORT maps
// to server.port, EVENTPARSE_ENGINE_BANDS_HIGH to engine.bands.high.
const envPrefix = "EVENTPARSE_"

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, in ascending precedence.
//
// If configPath is empty the file layer is skipped unless the default path
// exists.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := home + "/.config/eventparse/config.yaml"
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
			}
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
