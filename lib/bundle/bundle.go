// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout is the resolved file layout of one application bundle. The
// embedding directory is exclusively owned by this bundle; nothing is
// shared across bundles.
type Layout struct {
	// Root is the bundle directory (the .app).
	Root string

	// ExecutableName is the main executable's basename.
	ExecutableName string

	// Target names the embedding directory.
	Target Target
}

// ExecutableDir returns the directory holding the main executable
// (Contents/MacOS in a standard bundle).
func (l Layout) ExecutableDir() string {
	return filepath.Join(l.Root, "Contents", "MacOS")
}

// Executable returns the main executable's path.
func (l Layout) Executable() string {
	return filepath.Join(l.ExecutableDir(), l.ExecutableName)
}

// EmbeddingDir returns the directory that holds every relocated
// library, flat, alongside the executable. Its name is deterministic
// from the target so that rebuilding for the same architecture and OS
// version reuses the cache and a different target gets a fresh
// directory.
func (l Layout) EmbeddingDir() string {
	return filepath.Join(l.ExecutableDir(), l.Target.EmbedDirName())
}

// Validate checks that the bundle exists and contains the executable.
func (l Layout) Validate() error {
	info, err := os.Stat(l.Root)
	if err != nil {
		return fmt.Errorf("bundle %s: %w", l.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("bundle %s: not a directory", l.Root)
	}
	if _, err := os.Stat(l.Executable()); err != nil {
		return fmt.Errorf("bundle executable: %w", err)
	}
	return nil
}
