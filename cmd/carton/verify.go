// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/carton-build/carton/lib/macho"
)

// verifyCmd implements the "verify" command. It inspects the bundle's
// executable and every embedded library with the native Mach-O reader
// (no developer toolchain needed) and reports two classes of problem:
// references still pointing into the build prefix, and @loader_path
// references whose target file is missing from the bundle.
func verifyCmd(args []string, logger *slog.Logger) error {
	flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to carton.yaml (default: CARTON_CONFIG)")
	bundlePath := flagSet.String("bundle", "", "bundle to verify (default: the configured output bundle)")
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

	binaries := []string{layout.Executable()}
	entries, err := os.ReadDir(layout.EmbeddingDir())
	if err != nil {
		return fmt.Errorf("reading embedding directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		binaries = append(binaries, filepath.Join(layout.EmbeddingDir(), entry.Name()))
	}

	var reader macho.NativeReader
	violations := 0
	for _, binary := range binaries {
		refs, err := reader.AllDependencies(binary)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if problem := checkRef(binary, ref, cfg.Toolchain.Prefix); problem != "" {
				fmt.Printf("%s: %s\n", binary, problem)
				violations++
			}
		}
	}

	if violations > 0 {
		return fmt.Errorf("%d unresolved reference(s) in %s", violations, layout.Root)
	}
	logger.Info("bundle verified", "bundle", layout.Root, "binaries", len(binaries))
	return nil
}

// checkRef inspects one dependency reference and returns a problem
// description, or "" when the reference is fine. System references
// outside the build prefix are expected and pass. @rpath and
// @executable_path references cannot be resolved without interpreting
// the binary's rpath list, so they pass as already relocatable.
func checkRef(binary string, ref macho.DependencyRef, sourcePrefix string) string {
	if strings.HasPrefix(ref.Path, sourcePrefix) {
		return fmt.Sprintf("still references the build prefix: %s", ref.Path)
	}
	if !strings.HasPrefix(ref.Path, macho.LoaderPathToken) {
		return ""
	}

	relative := strings.TrimPrefix(ref.Path, macho.LoaderPathToken)
	target := filepath.Join(filepath.Dir(binary), filepath.FromSlash(relative))
	if _, err := os.Stat(target); err != nil {
		return fmt.Sprintf("reference %s resolves to missing file %s", ref.Path, target)
	}
	return ""
}
