// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package relocate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// writableBits is the permission widening applied before a mutation:
// owner and group write. Copied libraries frequently arrive read-only
// from the build tree, and install_name_tool refuses to edit files it
// cannot write.
const writableBits fs.FileMode = 0o220

// WithWritable runs mutate with the file's permissions temporarily
// widened to include owner and group write, restoring the original
// bits afterward whether or not mutate failed. If widening itself
// fails, mutate is never called.
//
// Restoration is synchronous and happens exactly once per call. An
// abrupt process termination between the widen and the restore can
// leave the file writable; that is an accepted limitation, and the
// whole-pipeline re-run recovery path makes it harmless.
func WithWritable(path string, mutate func() error) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	original := info.Mode().Perm()
	widened := original | writableBits

	if widened == original {
		return mutate()
	}

	if err := os.Chmod(path, widened); err != nil {
		return fmt.Errorf("widening permissions of %s: %w", path, err)
	}

	mutateErr := mutate()

	if err := os.Chmod(path, original); err != nil {
		restoreErr := fmt.Errorf("restoring permissions of %s: %w", path, err)
		if mutateErr != nil {
			return errors.Join(mutateErr, restoreErr)
		}
		return restoreErr
	}
	return mutateErr
}
