// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for carton.
//
// Configuration is loaded from a single file specified by:
//   - CARTON_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable builds with no hidden overrides: a bundle is reproducible from
// its carton.yaml alone. The only expansion performed is ${VAR} and
// ${VAR:-default} in paths, for portability across machines.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/carton-build/carton/lib/archive"
)

// Config is the master configuration for a carton build.
type Config struct {
	// Project names the build. Used in log lines and archive names.
	Project string `yaml:"project"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Source describes where the upstream source comes from.
	Source SourceConfig `yaml:"source"`

	// Toolchain is the explicit build environment.
	Toolchain ToolchainConfig `yaml:"toolchain"`

	// Bundle describes the application bundle to assemble and relocate.
	Bundle BundleConfig `yaml:"bundle"`

	// Archive configures the distributable output.
	Archive ArchiveConfig `yaml:"archive"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for carton data.
	Root string `yaml:"root"`

	// Downloads is where fetched source archives are cached.
	Downloads string `yaml:"downloads"`

	// Sources is where source trees are unpacked and built.
	Sources string `yaml:"sources"`

	// Output is where finished bundles and archives are written.
	Output string `yaml:"output"`
}

// SourceConfig describes the upstream source to fetch.
type SourceConfig struct {
	// URL is the source archive location.
	URL string `yaml:"url"`

	// SHA256 is the expected hex digest of the archive.
	SHA256 string `yaml:"sha256"`

	// Patches are applied to the unpacked tree in order.
	Patches []string `yaml:"patches"`
}

// ToolchainConfig is the explicit compiler configuration. Fields left
// empty stay out of the build environment so the build's own defaults
// apply.
type ToolchainConfig struct {
	CC       string   `yaml:"cc"`
	CXX      string   `yaml:"cxx"`
	CFlags   []string `yaml:"cflags"`
	CXXFlags []string `yaml:"cxxflags"`
	LDFlags  []string `yaml:"ldflags"`

	// Prefix is the installation prefix. It is also the source prefix
	// the relocation engine scopes its dependency closure to.
	Prefix string `yaml:"prefix"`

	// Jobs is the make parallelism. Zero means make's default.
	Jobs int `yaml:"jobs"`

	// ConfigureArgs are passed to ./configure after --prefix.
	ConfigureArgs []string `yaml:"configure_args"`

	// Env holds additional environment variables (PKG_CONFIG_PATH and
	// friends).
	Env map[string]string `yaml:"env"`
}

// BundleConfig describes the application bundle.
type BundleConfig struct {
	// Name is the bundle directory name, e.g. "MyApp.app".
	Name string `yaml:"name"`

	// Executable is the main binary name under Contents/MacOS.
	Executable string `yaml:"executable"`

	// Arch overrides the detected CPU architecture for the embedding
	// directory name. Empty means detect from the running machine.
	Arch string `yaml:"arch"`

	// OSVersion overrides the detected OS major version for the
	// embedding directory name. Empty means detect.
	OSVersion string `yaml:"os_version"`

	// ExtraLibraries are dylibs embedded even when nothing links them
	// at build time (dlopen'd plugins and similar).
	ExtraLibraries []string `yaml:"extra_libraries"`
}

// ArchiveConfig configures the distributable archive.
type ArchiveConfig struct {
	// Format is the compression format: zstd (default), lz4, or none.
	Format string `yaml:"format"`
}

// Default returns the default configuration. These defaults exist to
// give all fields sensible zero-values before the config file is
// merged in — the config file itself is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "carton")

	return &Config{
		Paths: PathsConfig{
			Root:      defaultRoot,
			Downloads: filepath.Join(defaultRoot, "downloads"),
			Sources:   filepath.Join(defaultRoot, "sources"),
			Output:    filepath.Join(defaultRoot, "output"),
		},
		Archive: ArchiveConfig{
			Format: "zstd",
		},
	}
}

// Load loads configuration from the CARTON_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// If CARTON_CONFIG is not set, this fails — there is no search path.
func Load() (*Config, error) {
	configPath := os.Getenv("CARTON_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CARTON_CONFIG environment variable not set; " +
			"set it to the path of your carton.yaml, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values; the only expansion performed is
// ${VAR} in paths for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CARTON_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CARTON_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Downloads = expandVars(c.Paths.Downloads, vars)
	c.Paths.Sources = expandVars(c.Paths.Sources, vars)
	c.Paths.Output = expandVars(c.Paths.Output, vars)
	c.Toolchain.Prefix = expandVars(c.Toolchain.Prefix, vars)
	for i, lib := range c.Bundle.ExtraLibraries {
		c.Bundle.ExtraLibraries[i] = expandVars(lib, vars)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Project == "" {
		errs = append(errs, fmt.Errorf("project is required"))
	}
	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if c.Source.URL == "" {
		errs = append(errs, fmt.Errorf("source.url is required"))
	}
	if c.Source.SHA256 == "" {
		errs = append(errs, fmt.Errorf("source.sha256 is required"))
	} else if raw, err := hex.DecodeString(c.Source.SHA256); err != nil || len(raw) != 32 {
		errs = append(errs, fmt.Errorf("source.sha256 must be 64 hex characters"))
	}

	if c.Toolchain.Prefix == "" {
		errs = append(errs, fmt.Errorf("toolchain.prefix is required"))
	} else if !filepath.IsAbs(c.Toolchain.Prefix) {
		errs = append(errs, fmt.Errorf("toolchain.prefix must be an absolute path"))
	}
	if c.Toolchain.Jobs < 0 {
		errs = append(errs, fmt.Errorf("toolchain.jobs must not be negative"))
	}

	if c.Bundle.Name == "" {
		errs = append(errs, fmt.Errorf("bundle.name is required"))
	} else if !strings.HasSuffix(c.Bundle.Name, ".app") {
		errs = append(errs, fmt.Errorf("bundle.name must end in .app"))
	}
	if c.Bundle.Executable == "" {
		errs = append(errs, fmt.Errorf("bundle.executable is required"))
	}
	for _, lib := range c.Bundle.ExtraLibraries {
		if !filepath.IsAbs(lib) {
			errs = append(errs, fmt.Errorf("bundle.extra_libraries entry %q must be an absolute path", lib))
		}
	}

	if _, err := archive.ParseFormat(c.Archive.Format); err != nil {
		errs = append(errs, fmt.Errorf("archive.format: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Downloads,
		c.Paths.Sources,
		c.Paths.Output,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
