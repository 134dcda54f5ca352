package config

import (
	"fmt"
	"os"

	"github.com/BDNK1/rotor/runtime"
	"gopkg.in/yaml.v3"
)

// File is the raw structure of rotor.yaml.
type File struct {
	Providers string                    `yaml:"providers"` // directory of provider definitions
	Session   map[string]any            `yaml:"session"`
	Run       map[string]any            `yaml:"run"`
	Options   map[string]map[string]any `yaml:"options"` // provider name -> option -> value
}

// Config is the resolved configuration of the rotor command.
type Config struct {
	ProvidersDir string
	Session      runtime.SessionConfig
	Run          runtime.RunConfig
	Options      map[string]map[string]string
}

// Load reads the config file at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var file File
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config from %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg := &Config{
		ProvidersDir: file.Providers,
		Options:      make(map[string]map[string]string, len(file.Options)),
	}
	if err := runtime.InitializeConfig(&cfg.Session, file.Session); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	if err := runtime.InitializeConfig(&cfg.Run, file.Run); err != nil {
		return nil, fmt.Errorf("run config: %w", err)
	}

	for provider, values := range file.Options {
		resolved := make(map[string]string, len(values))
		for key, raw := range values {
			v, err := ResolveValue(raw)
			if err != nil {
				return nil, fmt.Errorf("options for %s: %s: %w", provider, key, err)
			}
			resolved[key] = v
		}
		cfg.Options[provider] = resolved
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills in missing optional fields with defaults
func (c *Config) ApplyDefaults() {
	if c.ProvidersDir == "" {
		c.ProvidersDir = "providers"
	}
}

// ProviderOptions merges the configured options of a provider with overrides
// given on the command line. Overrides win.
func (c *Config) ProviderOptions(provider string, overrides map[string]string) map[string]string {
	merged := make(map[string]string)
	for k, v := range c.Options[provider] {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
