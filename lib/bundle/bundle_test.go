// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"os"
	"path/filepath"
	"testing"
)

func testLayout(t *testing.T) Layout {
	t.Helper()
	layout := Layout{
		Root:           filepath.Join(t.TempDir(), "MyApp.app"),
		ExecutableName: "MyApp",
		Target:         Target{Arch: "arm64", OSVersion: "14"},
	}
	if err := os.MkdirAll(layout.ExecutableDir(), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(layout.Executable(), []byte("exe"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return layout
}

func TestLayoutPaths(t *testing.T) {
	layout := Layout{
		Root:           "/apps/MyApp.app",
		ExecutableName: "MyApp",
		Target:         Target{Arch: "x86_64", OSVersion: "15"},
	}

	if got, want := layout.ExecutableDir(), "/apps/MyApp.app/Contents/MacOS"; got != want {
		t.Errorf("ExecutableDir = %q, want %q", got, want)
	}
	if got, want := layout.Executable(), "/apps/MyApp.app/Contents/MacOS/MyApp"; got != want {
		t.Errorf("Executable = %q, want %q", got, want)
	}
	if got, want := layout.EmbeddingDir(), "/apps/MyApp.app/Contents/MacOS/lib-x86_64-15"; got != want {
		t.Errorf("EmbeddingDir = %q, want %q", got, want)
	}
}

func TestEmbedDirName(t *testing.T) {
	cases := []struct {
		target Target
		want   string
	}{
		{Target{Arch: "arm64", OSVersion: "14"}, "lib-arm64-14"},
		{Target{Arch: "x86_64", OSVersion: "13"}, "lib-x86_64-13"},
	}
	for _, c := range cases {
		if got := c.target.EmbedDirName(); got != c.want {
			t.Errorf("EmbedDirName(%+v) = %q, want %q", c.target, got, c.want)
		}
	}
}

func TestTargetValidate(t *testing.T) {
	if err := (Target{Arch: "arm64", OSVersion: "14"}).Validate(); err != nil {
		t.Errorf("valid target rejected: %v", err)
	}
	if err := (Target{OSVersion: "14"}).Validate(); err == nil {
		t.Error("missing arch accepted")
	}
	if err := (Target{Arch: "arm64"}).Validate(); err == nil {
		t.Error("missing OS version accepted")
	}
}

func TestLayoutValidate(t *testing.T) {
	layout := testLayout(t)
	if err := layout.Validate(); err != nil {
		t.Errorf("valid layout rejected: %v", err)
	}

	missing := layout
	missing.ExecutableName = "Other"
	if err := missing.Validate(); err == nil {
		t.Error("layout with missing executable accepted")
	}

	missing = layout
	missing.Root = filepath.Join(layout.Root, "nope")
	if err := missing.Validate(); err == nil {
		t.Error("layout with missing root accepted")
	}
}

func TestLock(t *testing.T) {
	layout := testLayout(t)

	lock, err := Acquire(layout)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}

	// Reacquire after release must succeed.
	lock, err = Acquire(layout)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}

	// Release is idempotent.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
}

func TestLock_Contention(t *testing.T) {
	layout := testLayout(t)

	lock, err := Acquire(layout)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	// A second open file description on the lock file must be refused
	// while the first holds the flock.
	if second, err := Acquire(layout); err == nil {
		second.Release()
		t.Error("second Acquire succeeded while bundle was locked")
	}
}
