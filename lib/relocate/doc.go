// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package relocate makes a compiled application bundle self-contained.
// Given the bundle's main executable, it discovers the transitive
// closure of shared libraries rooted under a configured source prefix,
// copies each into the bundle's embedding directory exactly once, and
// rewrites every affected binary's load commands so that all references
// resolve relative to the referencing binary's own runtime location
// (@loader_path). System libraries outside the source prefix are left
// alone.
//
// The engine runs in three strictly sequential phases:
//
//  1. Closure walk: depth-first over the dependency graph with an
//     explicit work list, copying and rewriting as it goes. A library
//     is copied at most once per basename, which is also what
//     guarantees termination on cyclic graphs.
//  2. Extra libraries: caller-supplied libraries that are injected
//     rather than linked (for example ABI-compatible replacements) are
//     copied, self-identified, and walked like any discovered library.
//  3. Self-reference resolution: a final pass over the executable and
//     the whole embedding directory rewrites references between
//     embedded libraries that were still absolute because they were
//     discovered after the referencing copy had already been made.
//
// Every step is idempotent or a no-op when already applied, so the
// defined recovery path after an aborted run is simply to run the
// embed again. Copy deduplication is by basename, not content: two
// distinct source libraries sharing a basename means the second is
// skipped. The embed manifest detects this across runs and logs a
// warning, but the basename policy itself is deliberate (see the
// manifest documentation).
//
// The engine assumes exclusive access to the bundle for the duration
// of a run; lib/bundle provides the advisory lock callers are expected
// to hold.
package relocate
