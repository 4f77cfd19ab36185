// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle models the on-disk layout of a macOS application
// bundle: where the executable lives, where the embedding directory
// for relocated libraries goes, and the advisory lock that gives one
// carton process exclusive access to the bundle while it mutates
// binaries in place.
package bundle
