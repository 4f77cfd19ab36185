// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package relocate

import (
	"path/filepath"

	"github.com/carton-build/carton/lib/macho"
)

// RelocatableRef builds the relocatable reference to the library named
// basename in the embedding directory, as written into a binary whose
// own directory is fromDir: @loader_path, then the relative path from
// fromDir to the embedding directory, then the basename. For a binary
// that lives inside the embedding directory this collapses to
// "@loader_path/<basename>".
//
// Both directories must be absolute (the engine normalizes its inputs
// on entry); with mixed inputs the relative path cannot be computed
// and the sibling form is returned.
func RelocatableRef(fromDir, embeddingDir, basename string) string {
	rel, err := filepath.Rel(fromDir, embeddingDir)
	if err != nil || rel == "." {
		return macho.LoaderPathToken + basename
	}
	return macho.LoaderPathToken + filepath.ToSlash(filepath.Join(rel, basename))
}
