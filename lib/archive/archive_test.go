// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/carton-build/carton/lib/testutil"
)

// buildBundle creates a small bundle-shaped tree with a nested
// directory, an executable, and a dylib symlink.
func buildBundle(t *testing.T, root string) string {
	t.Helper()
	bundleDir := filepath.Join(root, "MyApp.app")
	macosDir := filepath.Join(bundleDir, "Contents", "MacOS", "lib-arm64-14")
	testutil.WriteFile(t, filepath.Join(bundleDir, "Contents", "MacOS", "MyApp"), []byte("executable bytes"), 0755)
	testutil.WriteFile(t, filepath.Join(macosDir, "libA.1.dylib"), []byte("library bytes"), 0644)
	testutil.Symlink(t, "libA.1.dylib", filepath.Join(macosDir, "libA.dylib"))
	return bundleDir
}

func testRoundTrip(t *testing.T, format Format) {
	t.Helper()
	root := t.TempDir()
	bundleDir := buildBundle(t, root)

	archivePath := filepath.Join(root, "MyApp"+format.Extension())
	if err := Create(bundleDir, archivePath, format); err != nil {
		t.Fatalf("Create: %v", err)
	}

	destDir := filepath.Join(root, "extracted")
	if err := Extract(archivePath, destDir); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	executable, err := os.ReadFile(filepath.Join(destDir, "MyApp.app", "Contents", "MacOS", "MyApp"))
	if err != nil {
		t.Fatalf("reading extracted executable: %v", err)
	}
	if string(executable) != "executable bytes" {
		t.Errorf("executable content = %q", executable)
	}

	linkPath := filepath.Join(destDir, "MyApp.app", "Contents", "MacOS", "lib-arm64-14", "libA.dylib")
	link, err := os.Readlink(linkPath)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if link != "libA.1.dylib" {
		t.Errorf("symlink target = %q, want libA.1.dylib", link)
	}

	info, err := os.Stat(filepath.Join(destDir, "MyApp.app", "Contents", "MacOS", "MyApp"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Errorf("extracted executable lost its execute bit: %o", info.Mode().Perm())
	}
}

func TestRoundTrip_Zstd(t *testing.T) { testRoundTrip(t, Zstd) }
func TestRoundTrip_LZ4(t *testing.T)  { testRoundTrip(t, LZ4) }
func TestRoundTrip_Gzip(t *testing.T) { testRoundTrip(t, Gzip) }
func TestRoundTrip_None(t *testing.T) { testRoundTrip(t, None) }

func TestParseFormat(t *testing.T) {
	cases := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"zstd", Zstd, false},
		{"lz4", LZ4, false},
		{"none", None, false},
		{"gzip", Gzip, false},
		{"", Zstd, false},
		{"bzip2", "", true},
	}
	for _, c := range cases {
		got, err := ParseFormat(c.name)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q) accepted", c.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q): %v", c.name, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestFormatFromPath_Unknown(t *testing.T) {
	if _, err := formatFromPath("bundle.rar"); err == nil {
		t.Error("unknown extension accepted")
	}
}
