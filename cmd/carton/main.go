// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// carton builds self-contained macOS application bundles.
//
// Usage:
//
//	carton build [flags]
//	carton embed [flags]
//	carton verify [flags]
//	carton version
package main

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/carton-build/carton/lib/config"
	"github.com/carton-build/carton/lib/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logger := newLogger()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "build":
		err = buildCmd(args, logger)
	case "embed":
		err = embedCmd(args, logger)
	case "verify":
		err = verifyCmd(args, logger)
	case "version", "--version", "-v":
		fmt.Printf("carton %s\n", version.Info())
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. Debug level comes from
// CARTON_DEBUG; timestamps are dropped when stderr is an interactive
// terminal, where they are noise next to a build's own output.
func newLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("CARTON_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}

	options := &slog.HandlerOptions{Level: logLevel}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		options.ReplaceAttr = func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) == 0 && attr.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return attr
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, options))
}

// loadConfig loads the validated configuration from --config or
// CARTON_CONFIG.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func printUsage() {
	fmt.Print(`carton - Build self-contained macOS application bundles

USAGE
    carton <command> [flags]

COMMANDS
    build     Fetch, patch, and compile the source, then embed the
              bundle's library dependencies and archive it
    embed     Run the library embedding pass on an existing bundle
    verify    Check that a bundle carries no build-prefix references
    version   Show version

EXAMPLES
    # Full build from a config file
    carton build --config=carton.yaml

    # Re-run only the embedding pass after a manual rebuild
    carton embed --config=carton.yaml

    # Check a bundle before shipping it
    carton verify --config=carton.yaml

ENVIRONMENT
    CARTON_CONFIG   Path to carton.yaml (alternative to --config)
    CARTON_DEBUG    Enable debug logging
`)
}
