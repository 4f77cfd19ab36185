// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// validConfig is a minimal carton.yaml that passes Validate.
const validConfig = `
project: myapp
paths:
  root: /test/root
source:
  url: https://example.com/myapp-1.0.tar.gz
  sha256: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
toolchain:
  prefix: /opt/carton/deps
bundle:
  name: MyApp.app
  executable: MyApp
`

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Paths.Root == "" {
		t.Error("expected a default root path")
	}
	if cfg.Paths.Downloads != filepath.Join(cfg.Paths.Root, "downloads") {
		t.Errorf("expected downloads under root, got %s", cfg.Paths.Downloads)
	}
	if cfg.Archive.Format != "zstd" {
		t.Errorf("expected archive format zstd, got %s", cfg.Archive.Format)
	}
}

func TestLoad_RequiresCartonConfig(t *testing.T) {
	// Save and restore CARTON_CONFIG.
	origConfig := os.Getenv("CARTON_CONFIG")
	defer os.Setenv("CARTON_CONFIG", origConfig)

	// Unset CARTON_CONFIG - Load() should fail.
	os.Unsetenv("CARTON_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when CARTON_CONFIG not set, got nil")
	}

	expectedMsg := "CARTON_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithCartonConfig(t *testing.T) {
	origConfig := os.Getenv("CARTON_CONFIG")
	defer os.Setenv("CARTON_CONFIG", origConfig)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "carton.yaml")
	if err := os.WriteFile(configPath, []byte(validConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	os.Setenv("CARTON_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Project != "myapp" {
		t.Errorf("expected project=myapp, got %s", cfg.Project)
	}
	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "carton.yaml")

	configContent := `
project: myapp
paths:
  root: /custom/root
source:
  url: https://example.com/myapp-1.0.tar.gz
  sha256: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
  patches:
    - 0001-fix-configure.patch
toolchain:
  cc: clang
  cflags: [-O2, -g]
  prefix: /opt/carton/deps
  jobs: 8
bundle:
  name: MyApp.app
  executable: MyApp
  extra_libraries:
    - /opt/carton/deps/lib/libplugin.dylib
archive:
  format: lz4
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/custom/root" {
		t.Errorf("expected root=/custom/root, got %s", cfg.Paths.Root)
	}
	// Defaults survive for sections the file doesn't touch.
	if cfg.Paths.Downloads == "" {
		t.Error("expected default downloads path to survive merge")
	}
	if cfg.Toolchain.CC != "clang" {
		t.Errorf("expected cc=clang, got %s", cfg.Toolchain.CC)
	}
	if cfg.Toolchain.Jobs != 8 {
		t.Errorf("expected jobs=8, got %d", cfg.Toolchain.Jobs)
	}
	if len(cfg.Source.Patches) != 1 || cfg.Source.Patches[0] != "0001-fix-configure.patch" {
		t.Errorf("unexpected patches: %v", cfg.Source.Patches)
	}
	if len(cfg.Bundle.ExtraLibraries) != 1 {
		t.Errorf("unexpected extra_libraries: %v", cfg.Bundle.ExtraLibraries)
	}
	if cfg.Archive.Format != "lz4" {
		t.Errorf("expected format=lz4, got %s", cfg.Archive.Format)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed on a complete config: %v", err)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Environment variables must NOT override config file values. The
	// config file is the single source of truth.
	origRoot := os.Getenv("CARTON_ROOT")
	defer os.Setenv("CARTON_ROOT", origRoot)

	os.Setenv("CARTON_ROOT", "/env/root")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "carton.yaml")
	if err := os.WriteFile(configPath, []byte(validConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root from file, got %s (env vars should not override)", cfg.Paths.Root)
	}
}

func TestExpandVariables_PathsUseRoot(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "carton.yaml")

	configContent := `
project: myapp
paths:
  root: /data/carton
  downloads: ${CARTON_ROOT}/dl
source:
  url: https://example.com/myapp-1.0.tar.gz
  sha256: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
toolchain:
  prefix: ${CARTON_ROOT}/deps
bundle:
  name: MyApp.app
  executable: MyApp
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Downloads != "/data/carton/dl" {
		t.Errorf("expected downloads=/data/carton/dl, got %s", cfg.Paths.Downloads)
	}
	if cfg.Toolchain.Prefix != "/data/carton/deps" {
		t.Errorf("expected prefix=/data/carton/deps, got %s", cfg.Toolchain.Prefix)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/carton",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/carton",
		},
		{
			input:    "${MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	load := func(t *testing.T) *Config {
		t.Helper()
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "carton.yaml")
		if err := os.WriteFile(configPath, []byte(validConfig), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		cfg, err := LoadFile(configPath)
		if err != nil {
			t.Fatalf("LoadFile failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name: "missing project",
			modify: func(c *Config) {
				c.Project = ""
			},
			wantErr: "project is required",
		},
		{
			name: "missing source url",
			modify: func(c *Config) {
				c.Source.URL = ""
			},
			wantErr: "source.url is required",
		},
		{
			name: "bad sha256",
			modify: func(c *Config) {
				c.Source.SHA256 = "not-hex"
			},
			wantErr: "source.sha256 must be 64 hex characters",
		},
		{
			name: "relative prefix",
			modify: func(c *Config) {
				c.Toolchain.Prefix = "deps"
			},
			wantErr: "toolchain.prefix must be an absolute path",
		},
		{
			name: "negative jobs",
			modify: func(c *Config) {
				c.Toolchain.Jobs = -1
			},
			wantErr: "toolchain.jobs must not be negative",
		},
		{
			name: "bundle name without .app",
			modify: func(c *Config) {
				c.Bundle.Name = "MyApp"
			},
			wantErr: "bundle.name must end in .app",
		},
		{
			name: "relative extra library",
			modify: func(c *Config) {
				c.Bundle.ExtraLibraries = []string{"libplugin.dylib"}
			},
			wantErr: "must be an absolute path",
		},
		{
			name: "unknown archive format",
			modify: func(c *Config) {
				c.Archive.Format = "bzip2"
			},
			wantErr: "archive.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := load(t)
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors from empty config")
	}
	msg := err.Error()
	for _, want := range []string{"project is required", "source.url is required", "bundle.name is required"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected combined error to contain %q, got %q", want, msg)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = filepath.Join(tmpDir, "carton")
	cfg.Paths.Downloads = filepath.Join(cfg.Paths.Root, "downloads")
	cfg.Paths.Sources = filepath.Join(cfg.Paths.Root, "sources")
	cfg.Paths.Output = filepath.Join(cfg.Paths.Root, "output")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, cfg.Paths.Downloads, cfg.Paths.Sources, cfg.Paths.Output} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
