// Package config loads the optional .shellexec configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// File names searched for, in order of precedence within one directory.
const (
	YAMLFile = ".shellexec"
	TOMLFile = ".shellexec.toml"
)

// EnvConfig names an explicit config file, bypassing discovery.
const EnvConfig = "SHELLEXEC_CONFIG"

// Default values.
const (
	DefaultLogLevel     = "warn"
	DefaultHistoryCache = 16
	DefaultMaxOutput    = 1 << 20 // 1 MB
)

// Config holds the parsed configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version  int               `yaml:"version" toml:"version"`
	Dir      string            `yaml:"dir" toml:"dir"`             // child working directory
	Env      map[string]string `yaml:"env" toml:"env"`             // extra child environment
	LogLevel string            `yaml:"log_level" toml:"log_level"` // trace, debug, info, warn, error
	History  HistoryConfig     `yaml:"history" toml:"history"`

	// RawMaxOutput caps child output captured by the MCP server, in bytes.
	RawMaxOutput int `yaml:"max_output" toml:"max_output"`
}

// HistoryConfig controls run record persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Dir     string `yaml:"dir" toml:"dir"`     // default: <user cache dir>/shellexec/runs
	Cache   int    `yaml:"cache" toml:"cache"` // in-memory LRU capacity
}

// Level returns the configured log level or the default.
func (c *Config) Level() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return DefaultLogLevel
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// Environ returns Env as sorted KEY=VALUE pairs.
func (c *Config) Environ() []string {
	if len(c.Env) == 0 {
		return nil
	}
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// HistoryDir returns the configured history directory or the default
// under the user cache directory. Relative paths are resolved against base.
func (c *Config) HistoryDir(base string) (string, error) {
	if c.History.Dir != "" {
		return resolve(base, c.History.Dir), nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating cache directory: %w", err)
	}
	return filepath.Join(cache, "shellexec", "runs"), nil
}

// HistoryCache returns the configured LRU capacity or the default.
func (c *Config) HistoryCache() int {
	if c.History.Cache > 0 {
		return c.History.Cache
	}
	return DefaultHistoryCache
}

// LoadResult holds the parsed config and where it came from.
type LoadResult struct {
	Config *Config
	Path   string // config file used; empty when defaults apply
	Root   string // directory holding the config file; falls back to workspace
}

// Load finds and parses the configuration for workspace. If EnvConfig is
// set, that file is used. Otherwise the search walks upward from workspace
// and stops at the first directory holding a config file. If none exists,
// a default Config is returned.
func Load(workspace string) (*LoadResult, error) {
	if path := os.Getenv(EnvConfig); path != "" {
		path = resolve(workspace, path)
		cfg, err := parseFile(path)
		if err != nil {
			return nil, err
		}
		return finish(cfg, path, filepath.Dir(path)), nil
	}

	path, err := findConfig(workspace)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return &LoadResult{Config: &Config{}, Root: workspace}, nil
	}
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	return finish(cfg, path, filepath.Dir(path)), nil
}

// finish resolves relative paths in cfg against the config file's directory.
func finish(cfg *Config, path, root string) *LoadResult {
	if cfg.Dir != "" {
		cfg.Dir = resolve(root, cfg.Dir)
	}
	if cfg.History.Dir != "" {
		cfg.History.Dir = resolve(root, cfg.History.Dir)
	}
	return &LoadResult{Config: cfg, Path: path, Root: root}
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	cfg := &Config{}
	if strings.HasSuffix(path, ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// findConfig walks upward from dir looking for a config file.
// It returns "" if the filesystem root is reached without a match.
func findConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range []string{YAMLFile, TOMLFile} {
			path := filepath.Join(dir, name)
			if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
				return path, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
