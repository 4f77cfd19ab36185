// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Target identifies the machine the bundle is built for. It only
// exists to name the embedding directory deterministically; carton
// does not cross-compile.
type Target struct {
	// Arch is the Mach-O architecture name (arm64, x86_64).
	Arch string

	// OSVersion is the major macOS version (14, 15).
	OSVersion string
}

// EmbedDirName returns the embedding directory basename for this
// target, for example "lib-arm64-14".
func (t Target) EmbedDirName() string {
	return fmt.Sprintf("lib-%s-%s", t.Arch, t.OSVersion)
}

// Validate checks that both fields are set.
func (t Target) Validate() error {
	if t.Arch == "" {
		return fmt.Errorf("target architecture is empty")
	}
	if t.OSVersion == "" {
		return fmt.Errorf("target OS version is empty")
	}
	return nil
}

// DetectTarget determines the build machine's target. The architecture
// comes from the running binary; the OS version from sw_vers, the same
// way the build toolchain sees it.
func DetectTarget() (Target, error) {
	arch := runtime.GOARCH
	if arch == "amd64" {
		arch = "x86_64"
	}

	output, err := exec.Command("sw_vers", "-productVersion").Output()
	if err != nil {
		return Target{}, fmt.Errorf("detecting macOS version: %w", err)
	}
	version := strings.TrimSpace(string(output))
	if major, _, found := strings.Cut(version, "."); found {
		version = major
	}
	if version == "" {
		return Target{}, fmt.Errorf("sw_vers returned an empty version")
	}

	return Target{Arch: arch, OSVersion: version}, nil
}
