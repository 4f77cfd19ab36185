// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package macho

import (
	"os"

	gomacho "github.com/blacktop/go-macho"
)

// NativeReader implements DescriptorReader by parsing Mach-O load
// commands in process with blacktop/go-macho. It performs no edits and
// needs no toolchain, which makes it the right reader for post-embed
// verification: verifying a bundle re-reads every embedded library,
// and spawning otool per binary is both slow and unavailable on
// machines without the Xcode command line tools.
type NativeReader struct{}

// Dependencies returns the binary's dependency references, excluding
// the LC_ID_DYLIB record and already-relocatable references, matching
// the DescriptorReader contract.
func (NativeReader) Dependencies(path string) ([]DependencyRef, error) {
	all, err := NativeReader{}.AllDependencies(path)
	if err != nil {
		return nil, err
	}
	refs := make([]DependencyRef, 0, len(all))
	for _, ref := range all {
		if ref.Relocatable {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// AllDependencies returns every dynamic library reference the binary
// declares, including relocatable ones, with the Relocatable flag set.
// Verification uses this to check that rewritten references actually
// carry a relocation token.
func (NativeReader) AllDependencies(path string) ([]DependencyRef, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &DescriptorError{Path: path, Err: err}
	}

	file, err := gomacho.Open(path)
	if err != nil {
		return nil, &DescriptorError{Path: path, Err: err}
	}
	defer file.Close()

	imported := file.ImportedLibraries()
	refs := make([]DependencyRef, 0, len(imported))
	for _, name := range imported {
		refs = append(refs, DependencyRef{
			Path:        name,
			Relocatable: IsRelocatable(name),
		})
	}
	return refs, nil
}
