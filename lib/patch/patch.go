// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package patch applies source patches to an unpacked source tree by
// wrapping the patch(1) tool. Application is idempotent: a patch that
// is already present in the tree is detected with a reverse dry run
// and skipped, so re-running a build over an existing work directory
// does not fail on the patch step.
package patch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Applier applies patches to one source tree.
type Applier struct {
	// SourceDir is the root of the unpacked source tree (patches are
	// applied with -p1 relative to it).
	SourceDir string

	// Logger receives per-patch progress.
	Logger *slog.Logger

	// patchBin overrides the patch binary for tests.
	patchBin string
}

// ApplyAll applies the patches in the given order, skipping any that
// are already applied. The order is the caller's: patches routinely
// depend on one another.
func (a *Applier) ApplyAll(ctx context.Context, patches []string) error {
	for _, patchFile := range patches {
		if err := a.Apply(ctx, patchFile); err != nil {
			return err
		}
	}
	return nil
}

// Apply applies one patch file unless it is already present in the
// tree.
func (a *Applier) Apply(ctx context.Context, patchFile string) error {
	if _, err := os.Stat(patchFile); err != nil {
		return fmt.Errorf("patch %s: %w", patchFile, err)
	}

	applied, err := a.alreadyApplied(ctx, patchFile)
	if err != nil {
		return err
	}
	if applied {
		a.Logger.Debug("patch already applied", "patch", patchFile)
		return nil
	}

	a.Logger.Info("applying patch", "patch", patchFile)
	output, err := a.command(ctx, "-p1", "-i", patchFile).CombinedOutput()
	if err != nil {
		return fmt.Errorf("applying %s: %w\n%s", patchFile, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// alreadyApplied probes with a reverse dry run: if the patch can be
// cleanly reversed, it is already in the tree.
func (a *Applier) alreadyApplied(ctx context.Context, patchFile string) (bool, error) {
	err := a.command(ctx, "-p1", "-R", "--dry-run", "-i", patchFile).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The reverse does not apply: the patch is not in the tree.
		return false, nil
	}
	return false, fmt.Errorf("probing %s: %w", patchFile, err)
}

func (a *Applier) command(ctx context.Context, args ...string) *exec.Cmd {
	bin := a.patchBin
	if bin == "" {
		bin = "patch"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = a.SourceDir
	return cmd
}
