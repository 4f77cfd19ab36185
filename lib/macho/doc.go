// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package macho provides the binary metadata primitives the relocation
// engine is built on: listing a Mach-O binary's dynamic library
// references, changing its self-identity (install name), and changing
// one dependency reference string.
//
// Two implementations exist. [Tool] wraps the platform linker tools
// (otool for inspection, install_name_tool for edits) and is the only
// implementation that can mutate binaries. [NativeReader] parses Mach-O
// load commands directly via blacktop/go-macho and is read-only; it is
// used for post-embed verification where spawning the toolchain per
// binary would be wasteful, and it works without Xcode installed.
//
// The interfaces are deliberately small so that the graph-walking logic
// in lib/relocate stays portable and unit-testable with fake
// implementations.
package macho
