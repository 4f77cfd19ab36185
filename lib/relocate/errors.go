// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package relocate

import "fmt"

// PreconditionError reports that an input the embed operation requires
// (the executable or an extra library) does not exist. Nothing has
// been mutated when this is returned.
type PreconditionError struct {
	// Path is the missing input.
	Path string

	// Err is the underlying stat error.
	Err error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("embed precondition: %s: %v", e.Path, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }
