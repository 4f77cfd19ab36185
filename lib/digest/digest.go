// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest provides file hashing helpers. BLAKE3 is the digest
// used for embedded library provenance (fast on large dylibs); SHA-256
// is used for source archive checksums, because that is the digest
// upstream projects publish.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// File computes the BLAKE3 digest of the file at path. The file is
// streamed through the hash in chunks to keep memory usage constant
// regardless of file size.
func File(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum, nil
}

// SHA256File computes the SHA-256 digest of the file at path.
func SHA256File(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum, nil
}

// Format returns the hex-encoded string representation of a digest.
func Format(sum [32]byte) string {
	return hex.EncodeToString(sum[:])
}

// Parse parses a hex-encoded 32-byte digest string.
func Parse(hexString string) ([32]byte, error) {
	var sum [32]byte
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return sum, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != 32 {
		return sum, fmt.Errorf("digest is %d bytes, want 32", len(decoded))
	}
	copy(sum[:], decoded)
	return sum, nil
}
