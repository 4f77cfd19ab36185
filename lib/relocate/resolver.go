// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package relocate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/carton-build/carton/lib/macho"
)

// resolver performs the final pass over the executable and every
// embedded library. Libraries copied early in the walk can still hold
// absolute references to libraries that only became "internal" later;
// this pass rewrites any reference whose basename is now a member of
// the embedding directory.
//
// It must run only after the closure walk (including extra libraries)
// has finished, because it relies on the embedding directory's
// membership being final.
type resolver struct {
	reader   macho.DescriptorReader
	rewriter macho.LinkRewriter
	logger   *slog.Logger

	embeddingDir string
}

// resolve re-reads every binary's references and rewrites the ones
// that point at embedded libraries via their original absolute paths.
func (r *resolver) resolve(executable string) error {
	members, targets, err := r.membership(executable)
	if err != nil {
		return err
	}

	for _, binary := range targets {
		refs, err := r.reader.Dependencies(binary)
		if err != nil {
			return err
		}

		binaryDir := filepath.Dir(binary)
		for _, ref := range refs {
			base := filepath.Base(ref.Path)
			if _, ok := members[base]; !ok {
				continue
			}
			relocated := RelocatableRef(binaryDir, r.embeddingDir, base)
			r.logger.Debug("resolving internal reference",
				"binary", binary, "old", ref.Path, "new", relocated)
			err := WithWritable(binary, func() error {
				return r.rewriter.ChangeDependency(binary, ref.Path, relocated)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// membership enumerates the embedding directory and returns the set of
// embedded basenames plus the full list of binaries to re-scan (the
// executable first, then every embedded library). Dotfiles (the embed
// manifest) and subdirectories are not binaries and are skipped.
func (r *resolver) membership(executable string) (map[string]struct{}, []string, error) {
	entries, err := os.ReadDir(r.embeddingDir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading embedding directory %s: %w", r.embeddingDir, err)
	}

	members := make(map[string]struct{}, len(entries))
	targets := []string{executable}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		members[entry.Name()] = struct{}{}
		targets = append(targets, filepath.Join(r.embeddingDir, entry.Name()))
	}
	return members, targets, nil
}
