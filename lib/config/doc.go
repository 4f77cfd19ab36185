// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for carton.
//
// Configuration is loaded from a single carton.yaml specified by either
// the CARTON_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. This ensures a bundle is
// reproducible from its config file alone, with no hidden overrides.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${CARTON_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Source, Toolchain, Bundle, Archive
//   - [Default] -- returns a Config with zero-value-safe defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends only on lib/archive (for format validation).
package config
