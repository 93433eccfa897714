package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader layers configuration from several sources, lowest priority first:
//  1. defaults in code
//  2. base.yaml
//  3. <environment>.yaml
//  4. local.yaml, development only
//  5. environment variables
type Loader struct {
	basePath    string
	environment string
	sources     []string
}

// NewLoader creates a loader reading files from basePath. An empty
// environment falls back to $ENVIRONMENT and then to development.
func NewLoader(basePath, environment string) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	if environment == "" {
		environment = getEnv("ENVIRONMENT", Development)
	}
	return &Loader{
		basePath:    basePath,
		environment: strings.ToLower(environment),
	}
}

// BasePath returns the directory the loader reads from
func (l *Loader) BasePath() string {
	return l.basePath
}

// Load builds a validated configuration
func (l *Loader) Load() (*Config, error) {
	l.sources = []string{"defaults"}

	cfg := Defaults()
	cfg.Environment = l.environment

	if err := l.loadFile("base", cfg); err != nil {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}
	if err := l.loadFile(l.environment, cfg); err != nil {
		return nil, fmt.Errorf("failed to load %s config: %w", l.environment, err)
	}
	if l.environment == Development {
		if err := l.loadFile("local", cfg); err != nil {
			return nil, fmt.Errorf("failed to load local config: %w", err)
		}
	}

	// Files may not move the process to another environment
	cfg.Environment = l.environment

	applyEnv(cfg)
	l.sources = append(l.sources, "environment")

	cfg.LoadedFrom = l.sources
	cfg.finish()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile overlays name.yaml or name.yml onto cfg. Missing files are skipped.
func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, ext := range []string{"yaml", "yml"} {
		path := filepath.Join(l.basePath, name+"."+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		l.sources = append(l.sources, path)
		return nil
	}
	return nil
}
