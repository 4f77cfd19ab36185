// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package relocate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

// ManifestName is the embed manifest kept inside the embedding
// directory. The leading dot keeps it out of the resolver's membership
// scan.
const ManifestName = ".carton-embed.cbor"

// Manifest records what each embedded basename was drawn from. It is
// advisory: the engine's correctness does not depend on it, and a
// missing or unreadable manifest never fails an embed. Its purpose is
// to surface the one sharp edge of basename-based deduplication — a
// later run whose closure wants a *different* library under an
// already-embedded basename silently keeps the cached copy, and only
// the manifest digests can tell the two apart.
type Manifest struct {
	// Libraries maps embedded basename to its provenance record.
	Libraries map[string]LibraryRecord `cbor:"libraries"`
}

// LibraryRecord is the provenance of one embedded library.
type LibraryRecord struct {
	// SourcePath is the absolute path the library was copied from.
	SourcePath string `cbor:"source_path"`

	// Digest is the hex BLAKE3 digest of the embedded copy, taken
	// after all rewrites of the run that copied it.
	Digest string `cbor:"digest"`
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{Libraries: make(map[string]LibraryRecord)}
}

// LoadManifest reads the manifest from the embedding directory. A
// missing manifest yields an empty one; a corrupt manifest is an
// error so the caller can decide to log and continue.
func LoadManifest(embeddingDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(embeddingDir, ManifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("reading embed manifest: %w", err)
	}

	manifest := NewManifest()
	if err := cbor.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("decoding embed manifest: %w", err)
	}
	if manifest.Libraries == nil {
		manifest.Libraries = make(map[string]LibraryRecord)
	}
	return manifest, nil
}

// Write stores the manifest in the embedding directory.
func (m *Manifest) Write(embeddingDir string) error {
	data, err := cbor.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding embed manifest: %w", err)
	}
	path := filepath.Join(embeddingDir, ManifestName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing embed manifest: %w", err)
	}
	return nil
}
