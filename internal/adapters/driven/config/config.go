// Package config loads the layered TOML configuration selecting and
// parametrizing the providers. Later layers override earlier ones:
// built-in defaults, the system file under /etc/forml, the user file
// under ~/.forml and finally an explicitly given path.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/formlio/forml/internal/core/services"
	"github.com/formlio/forml/internal/logger"
)

// FileName is the configuration file name within each layer directory.
const FileName = "config.toml"

// Section configures one provider role: the selected default alias and
// the per-alias option tables.
type Section struct {
	Default string
	Aliases map[string]services.Options
}

// Options returns the option table of the given alias, never nil.
func (s Section) Options(alias string) services.Options {
	if opts, ok := s.Aliases[alias]; ok {
		return opts
	}
	return services.Options{}
}

// merge folds one raw TOML section table into the section. The
// "default" key selects the alias, every sub-table carries options.
func (s *Section) merge(raw any) {
	table, ok := raw.(map[string]any)
	if !ok {
		return
	}
	for key, value := range table {
		if key == "default" {
			if alias, ok := value.(string); ok {
				s.Default = alias
			}
			continue
		}
		opts, ok := value.(map[string]any)
		if !ok {
			continue
		}
		if s.Aliases == nil {
			s.Aliases = make(map[string]services.Options)
		}
		merged := s.Aliases[key]
		if merged == nil {
			merged = make(services.Options)
			s.Aliases[key] = merged
		}
		for k, v := range opts {
			merged[k] = v
		}
	}
}

// Config is the fully merged provider configuration.
type Config struct {
	Runner   Section
	Registry Section
	Feed     Section
	Sink     Section
}

// Defaults returns the built-in base layer: a local runner, a
// filesystem registry under the user's forml directory, a csv feed
// rooted at the working directory and the stdout sink.
func Defaults() Config {
	return Config{
		Runner: Section{
			Default: "local",
			Aliases: map[string]services.Options{"local": {}},
		},
		Registry: Section{
			Default: "filesystem",
			Aliases: map[string]services.Options{
				"filesystem": {"path": filepath.Join(userDir(), "registry")},
				"sqlite":     {"path": filepath.Join(userDir(), "registry.db")},
			},
		},
		Feed: Section{
			Default: "csv",
			Aliases: map[string]services.Options{"csv": {"root": "."}},
		},
		Sink: Section{
			Default: "stdout",
			Aliases: map[string]services.Options{"stdout": {}},
		},
	}
}

// Load merges all configuration layers, the explicit path last. A
// missing explicit path is an error, missing standard layers are not.
func Load(explicit string) (Config, error) {
	cfg := Defaults()
	for _, path := range []string{filepath.Join("/etc/forml", FileName), userPath()} {
		if path == "" {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config %s: %w", path, err)
			}
			continue
		}
		logger.Debug("merging config layer %s", path)
		if err := cfg.merge(raw); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if explicit != "" {
		raw, err := os.ReadFile(explicit)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", explicit, err)
		}
		if err := cfg.merge(raw); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", explicit, err)
		}
	}
	return cfg, nil
}

// merge folds one raw TOML document into the configuration.
func (c *Config) merge(raw []byte) error {
	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	c.Runner.merge(doc["RUNNER"])
	c.Registry.merge(doc["REGISTRY"])
	c.Feed.merge(doc["FEED"])
	c.Sink.merge(doc["SINK"])
	return nil
}

// userDir returns the per-user forml directory.
func userDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".forml"
	}
	return filepath.Join(home, ".forml")
}

// userPath returns the user configuration file path.
func userPath() string {
	return filepath.Join(userDir(), FileName)
}
