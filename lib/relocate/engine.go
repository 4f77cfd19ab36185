// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package relocate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/carton-build/carton/lib/digest"
	"github.com/carton-build/carton/lib/macho"
)

// Engine orchestrates one embed operation: closure walk, extra
// libraries, then self-reference resolution. It is single-threaded and
// performs every step as a blocking filesystem or metadata call; an
// aborted run is recovered by running the whole embed again.
type Engine struct {
	reader   macho.DescriptorReader
	rewriter macho.LinkRewriter
	logger   *slog.Logger
}

// NewEngine returns an engine using the given metadata primitives.
func NewEngine(reader macho.DescriptorReader, rewriter macho.LinkRewriter, logger *slog.Logger) *Engine {
	return &Engine{reader: reader, rewriter: rewriter, logger: logger}
}

// Embed makes the bundle containing executable self-contained: every
// shared library reachable from the executable whose path starts with
// sourcePrefix is copied into embeddingDir and all affected load
// commands are rewritten to @loader_path-relative form. Extra
// libraries are forced into the embedding directory in the given order
// even though nothing references them yet, and participate in the
// closure like discovered libraries.
//
// There is no partial-success result: the first unrecovered error
// aborts the embed, and the caller should treat the bundle as
// not-yet-relocated and re-run the whole operation.
func (e *Engine) Embed(executable, sourcePrefix, embeddingDir string, extraLibraries []string) error {
	executable, err := filepath.Abs(executable)
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	embeddingDir, err = filepath.Abs(embeddingDir)
	if err != nil {
		return fmt.Errorf("resolving embedding directory: %w", err)
	}

	if _, err := os.Stat(executable); err != nil {
		return &PreconditionError{Path: executable, Err: err}
	}
	if err := os.MkdirAll(embeddingDir, 0755); err != nil {
		return fmt.Errorf("creating embedding directory: %w", err)
	}

	previous, err := LoadManifest(embeddingDir)
	if err != nil {
		// Advisory data only; a corrupt manifest never blocks an
		// embed.
		e.logger.Warn("embed manifest unreadable, starting fresh", "error", err)
		previous = NewManifest()
	}

	e.logger.Info("walking dependency closure",
		"executable", executable, "prefix", sourcePrefix, "dir", embeddingDir)

	walk := newWalker(e.reader, e.rewriter, e.logger, sourcePrefix, embeddingDir)
	if err := walk.walk(executable); err != nil {
		return err
	}

	for _, library := range extraLibraries {
		if err := e.embedExtra(walk, library); err != nil {
			return err
		}
	}

	resolve := &resolver{
		reader:       e.reader,
		rewriter:     e.rewriter,
		logger:       e.logger,
		embeddingDir: embeddingDir,
	}
	if err := resolve.resolve(executable); err != nil {
		return err
	}

	e.updateManifest(embeddingDir, walk.origins, previous)
	return nil
}

// embedExtra copies one caller-supplied library into the embedding
// directory, self-identifies the copy, and walks its dependencies. An
// extra library is injected rather than linked, so nothing discovers
// it through the graph, but its own source-prefix dependencies must
// join the closure exactly as if it had been.
func (e *Engine) embedExtra(walk *walker, library string) error {
	if _, err := os.Stat(library); err != nil {
		return &PreconditionError{Path: library, Err: err}
	}

	base := filepath.Base(library)
	if _, err := walk.embed(library, base); err != nil {
		return err
	}

	target := filepath.Join(walk.embeddingDir, base)
	identity := RelocatableRef(walk.embeddingDir, walk.embeddingDir, base)
	err := WithWritable(target, func() error {
		return e.rewriter.SetIdentity(target, identity)
	})
	if err != nil {
		return err
	}

	return walk.walk(target)
}

// updateManifest records the embedding directory's final membership in
// the embed manifest, warning when a basename already embedded on an
// earlier run was requested from a different source this run (the
// cached copy wins; the digests tell whether the two actually differ).
// Manifest failures are logged, never returned: the manifest is
// advisory.
func (e *Engine) updateManifest(embeddingDir string, origins map[string]string, previous *Manifest) {
	entries, err := os.ReadDir(embeddingDir)
	if err != nil {
		e.logger.Warn("skipping embed manifest update", "error", err)
		return
	}

	manifest := NewManifest()
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(embeddingDir, entry.Name())

		sum, err := digest.File(path)
		if err != nil {
			e.logger.Warn("skipping manifest record", "library", entry.Name(), "error", err)
			continue
		}

		source := origins[entry.Name()]
		if record, ok := previous.Libraries[entry.Name()]; ok {
			if source == "" {
				source = record.SourcePath
			} else if record.SourcePath != source {
				e.logger.Warn("embedded basename requested from a different source; cached copy kept",
					"basename", entry.Name(),
					"embedded_from", record.SourcePath,
					"requested", source)
				source = record.SourcePath
			}
		}

		manifest.Libraries[entry.Name()] = LibraryRecord{
			SourcePath: source,
			Digest:     digest.Format(sum),
		}
	}

	if err := manifest.Write(embeddingDir); err != nil {
		e.logger.Warn("embed manifest not written", "error", err)
	}
}
