// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Carton builds a macOS application from source and makes the bundle
// self-contained. It provides four subcommands: build (fetch, patch,
// compile, embed, archive), embed (run the library embedding pass on
// an existing bundle), verify (check that a bundle carries no stray
// build-prefix references), and version.
package main
