// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package relocate

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/carton-build/carton/lib/macho"
)

// walker copies the transitive closure of source-prefix libraries into
// the embedding directory, rewriting references as it goes. One walker
// instance covers one embed run: its visited set and origin map span
// the executable walk and all extra-library walks.
type walker struct {
	reader   macho.DescriptorReader
	rewriter macho.LinkRewriter
	logger   *slog.Logger

	sourcePrefix string
	embeddingDir string

	// visited holds the basenames settled during this run, whether
	// copied now or found already present from an earlier run. A
	// basename in this set is never enqueued again, which is the
	// termination invariant: the work list only grows by one entry
	// per first-seen basename.
	visited map[string]struct{}

	// origins records, per embedded basename, the source path it was
	// drawn from. The engine uses it for the embed manifest and for
	// collision detection.
	origins map[string]string
}

func newWalker(reader macho.DescriptorReader, rewriter macho.LinkRewriter, logger *slog.Logger, sourcePrefix, embeddingDir string) *walker {
	return &walker{
		reader:       reader,
		rewriter:     rewriter,
		logger:       logger,
		sourcePrefix: sourcePrefix,
		embeddingDir: embeddingDir,
		visited:      make(map[string]struct{}),
		origins:      make(map[string]string),
	}
}

// walk processes root and every library transitively reachable from it
// under the source prefix. The work list holds binaries whose
// references have not been examined yet; only freshly copied libraries
// are ever appended, so the walk terminates even on cyclic graphs.
func (w *walker) walk(root string) error {
	pending := []string{root}
	for len(pending) > 0 {
		binary := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		copies, err := w.visit(binary)
		if err != nil {
			return err
		}
		pending = append(pending, copies...)
	}
	return nil
}

// visit examines one binary: rewrites its source-prefix references and
// copies any library not yet in the embedding directory. It returns
// the paths of the fresh copies, which still need visiting themselves.
func (w *walker) visit(binary string) ([]string, error) {
	refs, err := w.reader.Dependencies(binary)
	if err != nil {
		return nil, err
	}

	binaryDir := filepath.Dir(binary)
	ownBase := filepath.Base(binary)

	var copies []string
	for _, ref := range refs {
		if !strings.HasPrefix(ref.Path, w.sourcePrefix) {
			// System library, assumed present on every target
			// machine.
			continue
		}

		base := filepath.Base(ref.Path)
		relocated := RelocatableRef(binaryDir, w.embeddingDir, base)

		if base == ownBase {
			// The binary references its own basename under a path
			// alias. Fixing the identity, not the reference, is what
			// keeps the loader from chasing the stale alias; there is
			// no second library to embed.
			err := WithWritable(binary, func() error {
				return w.rewriter.SetIdentity(binary, relocated)
			})
			if err != nil {
				return nil, err
			}
			continue
		}

		err := WithWritable(binary, func() error {
			return w.rewriter.ChangeDependency(binary, ref.Path, relocated)
		})
		if err != nil {
			return nil, err
		}

		copied, err := w.embed(ref.Path, base)
		if err != nil {
			return nil, err
		}
		if copied != "" {
			copies = append(copies, copied)
		}
	}
	return copies, nil
}

// embed copies the library into the embedding directory unless a file
// with its basename is already there. It returns the copy's path, or
// the empty string when nothing new was copied. Deduplication is by
// basename only: a second, distinct library with the same basename is
// skipped, which is the documented policy (the embed manifest surfaces
// the collision on later runs).
func (w *walker) embed(source, base string) (string, error) {
	if _, ok := w.visited[base]; ok {
		if w.origins[base] != source {
			w.logger.Debug("basename already embedded from a different source",
				"basename", base, "kept", w.origins[base], "skipped", source)
		}
		return "", nil
	}
	w.visited[base] = struct{}{}
	w.origins[base] = source

	target := filepath.Join(w.embeddingDir, base)
	if _, err := os.Stat(target); err == nil {
		// Present from an earlier run: the embedding directory acts
		// as a cache, so the copy and the descent into it are both
		// skipped.
		return "", nil
	}

	if err := copyFile(source, target); err != nil {
		return "", err
	}
	w.logger.Info("embedded library", "library", base, "source", source)
	return target, nil
}

// copyFile copies source to target, preserving the source's permission
// bits.
func copyFile(source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat %s: %w", source, err)
	}

	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening %s: %w", source, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s to %s: %w", source, target, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", target, err)
	}
	return nil
}
