// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/carton-build/carton/lib/bundle"
	"github.com/carton-build/carton/lib/config"
)

// embedCmd implements the "embed" command: the library embedding pass
// alone, on an already-built bundle. Useful after rebuilding by hand
// or when the embed step of a previous build was interrupted — the
// pass is idempotent, so re-running it on a half-embedded bundle is
// safe.
func embedCmd(args []string, logger *slog.Logger) error {
	flagSet := pflag.NewFlagSet("embed", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to carton.yaml (default: CARTON_CONFIG)")
	bundlePath := flagSet.String("bundle", "", "bundle to embed into (default: the configured output bundle)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	layout, err := resolveLayout(cfg, *bundlePath)
	if err != nil {
		return err
	}
	if err := layout.Validate(); err != nil {
		return err
	}

	if err := embedBundle(cfg, layout, logger); err != nil {
		return err
	}
	logger.Info("embed complete", "bundle", layout.Root)
	return nil
}

// resolveLayout builds the bundle layout from configuration, with an
// optional explicit bundle path override. The embedding target is
// taken from config when fully specified and detected from the running
// machine otherwise.
func resolveLayout(cfg *config.Config, bundlePath string) (bundle.Layout, error) {
	target := bundle.Target{Arch: cfg.Bundle.Arch, OSVersion: cfg.Bundle.OSVersion}
	if target.Validate() != nil {
		detected, err := bundle.DetectTarget()
		if err != nil {
			return bundle.Layout{}, fmt.Errorf("bundle target not configured and %w", err)
		}
		if target.Arch == "" {
			target.Arch = detected.Arch
		}
		if target.OSVersion == "" {
			target.OSVersion = detected.OSVersion
		}
	}

	root := bundlePath
	if root == "" {
		root = filepath.Join(cfg.Paths.Output, cfg.Bundle.Name)
	}
	return bundle.Layout{
		Root:           root,
		ExecutableName: cfg.Bundle.Executable,
		Target:         target,
	}, nil
}
