// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared filesystem fixture helpers for
// carton's tests. Most tests build small bundle- or source-tree-shaped
// directory structures; these helpers keep the setup noise out of the
// tests themselves.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes data to path with the given mode, creating parent
// directories as needed.
func WriteFile(t testing.TB, path string, data []byte, mode fs.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// Symlink creates a symbolic link at link pointing to target, creating
// link's parent directories as needed.
func Symlink(t testing.TB, target, link string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(link), err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("linking %s -> %s: %v", link, target, err)
	}
}
