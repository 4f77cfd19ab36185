// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/carton-build/carton/lib/archive"
	"github.com/carton-build/carton/lib/buildenv"
	"github.com/carton-build/carton/lib/bundle"
	"github.com/carton-build/carton/lib/config"
	"github.com/carton-build/carton/lib/fetch"
	"github.com/carton-build/carton/lib/macho"
	"github.com/carton-build/carton/lib/patch"
	"github.com/carton-build/carton/lib/relocate"
)

// buildCmd implements the "build" command: fetch, patch, compile,
// assemble the bundle, embed its library dependencies, and archive it.
func buildCmd(args []string, logger *slog.Logger) error {
	flagSet := pflag.NewFlagSet("build", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to carton.yaml (default: CARTON_CONFIG)")
	noArchive := flagSet.Bool("no-archive", false, "skip the final archive step")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sourceDir, err := prepareSource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	applier := &patch.Applier{SourceDir: sourceDir, Logger: logger}
	if err := applier.ApplyAll(ctx, patchPaths(cfg, *configPath)); err != nil {
		return err
	}

	runner := &buildenv.Runner{
		SourceDir: sourceDir,
		Toolchain: toolchain(cfg),
		BaseEnv:   os.Environ(),
		Logger:    logger,
	}
	if err := runner.Configure(ctx, cfg.Toolchain.ConfigureArgs); err != nil {
		return err
	}
	if err := runner.Make(ctx); err != nil {
		return err
	}
	if err := runner.Make(ctx, "install"); err != nil {
		return err
	}

	layout, err := resolveLayout(cfg, "")
	if err != nil {
		return err
	}
	if err := assembleBundle(cfg, layout); err != nil {
		return err
	}

	if err := embedBundle(cfg, layout, logger); err != nil {
		return err
	}

	if *noArchive {
		logger.Info("bundle ready", "bundle", layout.Root)
		return nil
	}

	format, err := archive.ParseFormat(cfg.Archive.Format)
	if err != nil {
		return err
	}
	outPath := filepath.Join(cfg.Paths.Output, cfg.Project+format.Extension())
	logger.Info("archiving bundle", "bundle", layout.Root, "archive", outPath)
	if err := archive.Create(layout.Root, outPath, format); err != nil {
		return err
	}

	logger.Info("build complete", "archive", outPath)
	return nil
}

// prepareSource fetches the source archive and unpacks it under the
// sources directory, reusing an existing tree from a previous run.
func prepareSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, error) {
	fetcher := &fetch.Fetcher{Downloads: cfg.Paths.Downloads, Logger: logger}
	archivePath, err := fetcher.Fetch(ctx, cfg.Source.URL, cfg.Source.SHA256)
	if err != nil {
		return "", err
	}

	extractRoot := filepath.Join(cfg.Paths.Sources, cfg.Project)
	if _, err := os.Stat(extractRoot); err != nil {
		logger.Info("unpacking source", "archive", archivePath, "dir", extractRoot)
		if err := archive.Extract(archivePath, extractRoot); err != nil {
			return "", err
		}
	} else {
		logger.Info("reusing unpacked source", "dir", extractRoot)
	}

	return sourceTree(extractRoot)
}

// sourceTree returns the source root inside extractRoot. Upstream
// tarballs normally unpack into a single versioned directory; when
// they don't, the extraction root itself is the tree.
func sourceTree(extractRoot string) (string, error) {
	entries, err := os.ReadDir(extractRoot)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", extractRoot, err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(extractRoot, entries[0].Name()), nil
	}
	return extractRoot, nil
}

// patchPaths resolves relative patch paths against the config file's
// directory, so a carton.yaml can name patches stored alongside it.
func patchPaths(cfg *config.Config, configPath string) []string {
	if configPath == "" {
		configPath = os.Getenv("CARTON_CONFIG")
	}
	configDir := filepath.Dir(configPath)

	resolved := make([]string, len(cfg.Source.Patches))
	for i, p := range cfg.Source.Patches {
		if filepath.IsAbs(p) || configPath == "" {
			resolved[i] = p
			continue
		}
		resolved[i] = filepath.Join(configDir, p)
	}
	return resolved
}

func toolchain(cfg *config.Config) buildenv.Toolchain {
	return buildenv.Toolchain{
		CC:       cfg.Toolchain.CC,
		CXX:      cfg.Toolchain.CXX,
		CFlags:   cfg.Toolchain.CFlags,
		CXXFlags: cfg.Toolchain.CXXFlags,
		LDFlags:  cfg.Toolchain.LDFlags,
		Prefix:   cfg.Toolchain.Prefix,
		Jobs:     cfg.Toolchain.Jobs,
		Extra:    cfg.Toolchain.Env,
	}
}

// assembleBundle creates the bundle skeleton and installs the main
// executable from the build prefix.
func assembleBundle(cfg *config.Config, layout bundle.Layout) error {
	if err := os.MkdirAll(layout.ExecutableDir(), 0755); err != nil {
		return fmt.Errorf("creating bundle: %w", err)
	}

	built := filepath.Join(cfg.Toolchain.Prefix, "bin", cfg.Bundle.Executable)
	if err := installFile(built, layout.Executable()); err != nil {
		return fmt.Errorf("installing executable: %w", err)
	}
	return layout.Validate()
}

// embedBundle runs the library embedding pass on the bundle, holding
// its advisory lock for the duration.
func embedBundle(cfg *config.Config, layout bundle.Layout, logger *slog.Logger) error {
	lock, err := bundle.Acquire(layout)
	if err != nil {
		return err
	}
	defer lock.Release()

	tool, err := macho.NewTool(logger)
	if err != nil {
		return err
	}
	engine := relocate.NewEngine(tool, tool, logger)
	return engine.Embed(layout.Executable(), cfg.Toolchain.Prefix, layout.EmbeddingDir(), cfg.Bundle.ExtraLibraries)
}

// installFile copies src to dst, preserving its permission bits.
func installFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
