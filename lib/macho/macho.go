// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package macho

import (
	"fmt"
	"strings"
)

// Relocation tokens understood by dyld. A dependency reference that
// starts with one of these resolves at load time relative to the
// binary that declares it (or its rpath list), so it never needs
// rewriting.
const (
	// LoaderPathToken resolves relative to the binary containing the
	// reference. This is the token carton writes: it makes every
	// rewritten binary location-independent regardless of which
	// binary loads it.
	LoaderPathToken = "@loader_path/"

	// ExecutablePathToken resolves relative to the main executable.
	ExecutablePathToken = "@executable_path/"

	// RPathToken resolves against the LC_RPATH list of the loading
	// binary.
	RPathToken = "@rpath/"
)

// DependencyRef is one dynamic library reference extracted from a
// binary's load commands: the path string as stored, plus whether that
// string already uses a relocation token.
type DependencyRef struct {
	// Path is the reference string exactly as stored in the load
	// command: an absolute filesystem path or a tokenized path.
	Path string

	// Relocatable is true when Path starts with a relocation token.
	Relocatable bool
}

// IsRelocatable reports whether path already uses a relocation token.
func IsRelocatable(path string) bool {
	return strings.HasPrefix(path, LoaderPathToken) ||
		strings.HasPrefix(path, ExecutablePathToken) ||
		strings.HasPrefix(path, RPathToken)
}

// DescriptorReader lists the dynamic library references a binary
// declares.
type DescriptorReader interface {
	// Dependencies returns the binary's dependency references in load
	// command order, excluding the binary's own LC_ID_DYLIB record and
	// excluding references that are already relocatable. A binary with
	// no dependencies yields an empty slice. Inspection failure
	// (missing, corrupt, or non-Mach-O file) returns a
	// *DescriptorError.
	Dependencies(path string) ([]DependencyRef, error)
}

// LinkRewriter edits a binary's link metadata in place. No backup is
// kept; callers rely on idempotence, not rollback.
type LinkRewriter interface {
	// SetIdentity changes the install name a shared library uses to
	// identify itself (LC_ID_DYLIB). Valid only for libraries, not
	// the main executable.
	SetIdentity(path, newID string) error

	// ChangeDependency changes one dependency reference inside the
	// binary from oldRef to newRef. A reference that is not present
	// is a no-op, not an error: it means the binary was already
	// rewritten on an earlier run.
	ChangeDependency(path, oldRef, newRef string) error
}

// DescriptorError reports that a binary's load commands could not be
// inspected. It is never retried: an unreadable binary indicates a
// build artifact problem upstream of the relocation engine.
type DescriptorError struct {
	// Path is the binary that could not be inspected.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("reading load commands of %s: %v", e.Path, e.Err)
}

func (e *DescriptorError) Unwrap() error { return e.Err }

// RewriteError reports that a metadata edit was rejected by the
// underlying tool, for example because the file is not writable even
// after permission widening.
type RewriteError struct {
	// Path is the binary being edited.
	Path string

	// Op is the attempted edit ("set identity" or "change dependency").
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Path, e.Err)
}

func (e *RewriteError) Unwrap() error { return e.Err }
