// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package macho

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDescriptorError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &DescriptorError{Path: "/bin/x", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("DescriptorError does not unwrap to its cause")
	}
	if err.Error() == "" {
		t.Error("empty error message")
	}
}

func TestRewriteError_Unwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := &RewriteError{Path: "/bin/x", Op: "set identity", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("RewriteError does not unwrap to its cause")
	}
}
