// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildenv runs the configure/make steps of a source build
// with an explicit toolchain environment. The toolchain settings are a
// plain struct carried through the build — never ambient process
// environment — so two builds with different settings cannot leak into
// each other and a build is reproducible from its config file alone.
package buildenv

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"strconv"
	"strings"
)

// Toolchain is the explicit compiler configuration for a build.
type Toolchain struct {
	// CC and CXX are the C and C++ compilers. Empty fields are left
	// out of the environment so the build's own defaults apply.
	CC  string
	CXX string

	// CFlags, CXXFlags, and LDFlags are appended to the respective
	// environment variables.
	CFlags   []string
	CXXFlags []string
	LDFlags  []string

	// Prefix is the installation prefix the build's libraries are
	// placed under. This is also the source prefix the relocation
	// engine scopes its closure to.
	Prefix string

	// Jobs is the make parallelism. Zero means make's default.
	Jobs int

	// Extra holds additional environment variables (PKG_CONFIG_PATH
	// and friends).
	Extra map[string]string
}

// Environ renders the toolchain as environment variable assignments,
// sorted for deterministic command lines and logs. It contains only
// the toolchain's own variables; Runner composes it onto the base
// environment.
func (tc Toolchain) Environ() []string {
	env := make([]string, 0, 6+len(tc.Extra))
	if tc.CC != "" {
		env = append(env, "CC="+tc.CC)
	}
	if tc.CXX != "" {
		env = append(env, "CXX="+tc.CXX)
	}
	if len(tc.CFlags) > 0 {
		env = append(env, "CFLAGS="+strings.Join(tc.CFlags, " "))
	}
	if len(tc.CXXFlags) > 0 {
		env = append(env, "CXXFLAGS="+strings.Join(tc.CXXFlags, " "))
	}
	if len(tc.LDFlags) > 0 {
		env = append(env, "LDFLAGS="+strings.Join(tc.LDFlags, " "))
	}
	for key, value := range tc.Extra {
		env = append(env, key+"="+value)
	}
	sort.Strings(env)
	return env
}

// Runner executes build steps inside one source tree.
type Runner struct {
	// SourceDir is the unpacked source tree the steps run in.
	SourceDir string

	// Toolchain is the explicit build environment.
	Toolchain Toolchain

	// BaseEnv is the environment the toolchain variables are layered
	// onto, normally os.Environ() of the carton process.
	BaseEnv []string

	// Logger receives one line per build output line.
	Logger *slog.Logger
}

// Configure runs ./configure with the prefix and any extra arguments.
func (r *Runner) Configure(ctx context.Context, args []string) error {
	full := []string{"--prefix=" + r.Toolchain.Prefix}
	full = append(full, args...)
	return r.run(ctx, "./configure", full...)
}

// Make runs make with the toolchain's parallelism and the given
// targets ("" means the default target).
func (r *Runner) Make(ctx context.Context, targets ...string) error {
	var args []string
	if r.Toolchain.Jobs > 0 {
		args = append(args, "-j"+strconv.Itoa(r.Toolchain.Jobs))
	}
	args = append(args, targets...)
	return r.run(ctx, "make", args...)
}

// run executes one build step, streaming its combined output through
// the logger line by line so long builds remain observable.
func (r *Runner) run(ctx context.Context, name string, args ...string) error {
	r.Logger.Info("running build step", "step", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.SourceDir
	cmd.Env = append(append([]string{}, r.BaseEnv...), r.Toolchain.Environ()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	r.stream(stdout, name)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

// stream logs each output line at debug level.
func (r *Runner) stream(output io.Reader, step string) {
	scanner := bufio.NewScanner(output)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		r.Logger.Debug("build output", "step", step, "line", scanner.Text())
	}
}
