package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/okian/gotsim/internal/domain/failure"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GOTSIM_"

// EnvConfig names the variable holding the config file path.
const EnvConfig = EnvPrefix + "CONFIG"

// defaults feeds New(ctx) into koanf as the lowest layer so that lists from
// later layers replace the default lists instead of being merged into them.
type defaults struct {
	cfg *Config
}

func (d defaults) ReadBytes() ([]byte, error) { return yamlv3.Marshal(d.cfg) }

func (defaults) Read() (map[string]interface{}, error) {
	return nil, fmt.Errorf("defaults provider does not support Read")
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) at path, or at $GOTSIM_CONFIG when path is empty
//  3. env (prefix GOTSIM_, "__" separates nested keys)
//
// The result is validated before it is returned.
func Load(ctx context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(defaults{cfg: New(ctx)}, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %w: defaults: %v", ErrLoadConfig, failure.ErrConfig, err)
	}

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w: %s: %v", ErrLoadConfig, failure.ErrConfig, path, err)
		}
	}

	// GOTSIM_LOG_LEVEL -> log_level, GOTSIM_DATABASE__DSN -> database.dsn
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w: env: %v", ErrLoadConfig, failure.ErrConfig, err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrLoadConfig, failure.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yamlv3.Marshal(c)
}
