// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lockName is the advisory lock file kept next to the executable.
const lockName = ".carton-lock"

// Lock is an advisory flock over one bundle. The relocation engine
// mutates binaries in place with no rollback, so two concurrent embeds
// of the same bundle would corrupt each other; the lock turns that
// into an immediate error instead.
type Lock struct {
	file *os.File
}

// Acquire takes the bundle lock without blocking. A bundle already
// locked by another process returns an error naming the lock file so
// the operator can see who to wait for.
func Acquire(layout Layout) (*Lock, error) {
	path := filepath.Join(layout.ExecutableDir(), lockName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening bundle lock: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		return nil, fmt.Errorf("bundle is locked by another process (%s): %w", path, err)
	}
	return &Lock{file: file}, nil
}

// Release drops the lock. The lock file itself is left in place; the
// flock is what matters, and removing the file would race with a
// concurrent Acquire.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("unlocking bundle: %w", err)
	}
	return closeErr
}
