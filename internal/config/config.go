// Package config loads the root chore configuration and captures the
// process environment snapshot used for fingerprinting.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config file names probed at the workspace root, in order.
var configNames = []string{"chore.yaml", "chore.yml", "chore.json"}

// ErrNotFound is returned when no config file exists at the root.
var ErrNotFound = errors.New("no chore.yaml or chore.json found")

// EnvModeStrict and EnvModeLoose select environment visibility policy.
// Strict: only configured variables are visible to tasks and hashed.
// Loose: every process variable is visible at execution time, but only
// the configured subset is hashed. Loose trades reproducibility for
// compatibility and is deliberately inconsistent about it.
const (
	EnvModeStrict = "strict"
	EnvModeLoose  = "loose"
)

// TaskConfig is the raw, unresolved configuration for one pipeline key.
// Keys are either a task name ("build") or an explicit "pkg#task"
// override ("web#build", "//#format").
type TaskConfig struct {
	Outputs        []string `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Inputs         []string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Env            []string `yaml:"env,omitempty" json:"env,omitempty"`
	PassThroughEnv []string `yaml:"passThroughEnv,omitempty" json:"passThroughEnv,omitempty"`
	DotEnv         []string `yaml:"dotEnv,omitempty" json:"dotEnv,omitempty"`
	DependsOn      []string `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
	Cache          *bool    `yaml:"cache,omitempty" json:"cache,omitempty"`
	Persistent     bool     `yaml:"persistent,omitempty" json:"persistent,omitempty"`
	OutputMode     string   `yaml:"outputMode,omitempty" json:"outputMode,omitempty"`
}

// RemoteCacheConfig configures the remote artifact store client.
type RemoteCacheConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url,omitempty" json:"url,omitempty"`
	Token   string `yaml:"token,omitempty" json:"token,omitempty"`
}

// RootConfig is the parsed root configuration.
type RootConfig struct {
	// Workspaces are doublestar globs selecting package directories.
	Workspaces []string `yaml:"workspaces,omitempty" json:"workspaces,omitempty"`

	// Pipeline maps task keys to their raw definitions.
	Pipeline map[string]TaskConfig `yaml:"pipeline" json:"pipeline"`

	// GlobalDependencies are file globs whose contents invalidate every
	// task hash when changed.
	GlobalDependencies []string `yaml:"globalDependencies,omitempty" json:"globalDependencies,omitempty"`

	// GlobalEnv are variable names (or doublestar patterns) hashed into
	// the global fingerprint.
	GlobalEnv []string `yaml:"globalEnv,omitempty" json:"globalEnv,omitempty"`

	// GlobalPassThroughEnv are variables made visible to every task in
	// strict mode without being hashed.
	GlobalPassThroughEnv []string `yaml:"globalPassThroughEnv,omitempty" json:"globalPassThroughEnv,omitempty"`

	EnvMode     string            `yaml:"envMode,omitempty" json:"envMode,omitempty"`
	Concurrency int               `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	RemoteCache RemoteCacheConfig `yaml:"remoteCache,omitempty" json:"remoteCache,omitempty"`

	// Path and Content record where the config was loaded from; Content
	// participates in the global hash.
	Path    string `yaml:"-" json:"-"`
	Content []byte `yaml:"-" json:"-"`
}

// DefaultConcurrency bounds the worker pool when the config and CLI
// leave it unset.
const DefaultConcurrency = 10

// FindRoot walks upward from dir until a directory holding a config
// file is found. That directory is the workspace root.
func FindRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range configNames {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Load reads and validates the root configuration under root.
func Load(root string) (*RootConfig, error) {
	for _, name := range configNames {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return Parse(data, path)
	}
	return nil, ErrNotFound
}

// Parse decodes config content. YAML is a superset of JSON, so both
// chore.yaml and chore.json go through the same decoder. Unknown
// fields are configuration errors.
func Parse(data []byte, path string) (*RootConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg RootConfig
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	cfg.Path = path
	cfg.Content = data

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

func (c *RootConfig) validate() error {
	switch c.EnvMode {
	case "", EnvModeStrict, EnvModeLoose:
	default:
		return fmt.Errorf("envMode must be %q or %q, got %q", EnvModeStrict, EnvModeLoose, c.EnvMode)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	for key, tc := range c.Pipeline {
		if key == "" {
			return errors.New("pipeline contains an empty task key")
		}
		switch tc.OutputMode {
		case "", "full", "hash-only", "new-only", "errors-only", "none":
		default:
			return fmt.Errorf("pipeline.%s: unknown outputMode %q", key, tc.OutputMode)
		}
	}
	if c.RemoteCache.Enabled && c.RemoteCache.URL == "" {
		return errors.New("remoteCache.enabled requires remoteCache.url")
	}
	return nil
}

// EffectiveEnvMode returns the configured env mode, defaulting to strict.
func (c *RootConfig) EffectiveEnvMode() string {
	if c.EnvMode == "" {
		return EnvModeStrict
	}
	return c.EnvMode
}

// EffectiveConcurrency returns the worker pool size, preferring the
// CLI override, then the config, then the default.
func (c *RootConfig) EffectiveConcurrency(cliOverride int) int {
	if cliOverride > 0 {
		return cliOverride
	}
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return DefaultConcurrency
}
