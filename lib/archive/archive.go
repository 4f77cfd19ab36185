// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive packs a finished application bundle into a single
// compressed tar file for distribution. Compression is selectable:
// zstd gives the better ratio for the mixed text/binary content of a
// bundle, LZ4 trades ratio for speed on large bundles.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format identifies the compression applied around the tar stream.
type Format string

const (
	// Zstd compresses with zstd at its default level.
	Zstd Format = "zstd"

	// LZ4 compresses with LZ4 frame format.
	LZ4 Format = "lz4"

	// Gzip compresses with gzip. Mostly useful for reading upstream
	// source tarballs; zstd is the better choice for bundle output.
	Gzip Format = "gzip"

	// None writes a plain tar.
	None Format = "none"
)

// ParseFormat parses a format name from configuration.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case Zstd, LZ4, Gzip, None:
		return Format(name), nil
	case "":
		return Zstd, nil
	default:
		return "", fmt.Errorf("unknown archive format: %q", name)
	}
}

// Extension returns the file extension for archives in this format,
// including the leading ".tar".
func (f Format) Extension() string {
	switch f {
	case Zstd:
		return ".tar.zst"
	case LZ4:
		return ".tar.lz4"
	case Gzip:
		return ".tar.gz"
	default:
		return ".tar"
	}
}

// Create archives the directory rooted at sourceDir into outPath.
// Entries are stored relative to sourceDir's parent, so extracting
// reproduces the bundle directory itself. Symlinks are preserved as
// links; bundles contain versioned dylib symlinks that must not be
// flattened into duplicate copies.
func Create(sourceDir, outPath string, format Format) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating archive %s: %w", outPath, err)
	}
	defer out.Close()

	compressed, closeCompressor, err := compressor(out, format)
	if err != nil {
		return err
	}

	tarWriter := tar.NewWriter(compressed)
	if err := writeTree(tarWriter, sourceDir); err != nil {
		tarWriter.Close()
		closeCompressor()
		return err
	}
	if err := tarWriter.Close(); err != nil {
		closeCompressor()
		return fmt.Errorf("finishing tar stream: %w", err)
	}
	if err := closeCompressor(); err != nil {
		return fmt.Errorf("finishing compression: %w", err)
	}
	return out.Close()
}

// compressor wraps out in the format's compressing writer. The
// returned close function flushes the compressor but not the
// underlying file.
func compressor(out io.Writer, format Format) (io.Writer, func() error, error) {
	switch format {
	case Zstd:
		writer, err := zstd.NewWriter(out)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd writer: %w", err)
		}
		return writer, writer.Close, nil
	case LZ4:
		writer := lz4.NewWriter(out)
		return writer, writer.Close, nil
	case Gzip:
		writer := gzip.NewWriter(out)
		return writer, writer.Close, nil
	case None:
		return out, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown archive format: %q", format)
	}
}

// writeTree adds sourceDir and everything under it to the tar stream.
func writeTree(tarWriter *tar.Writer, sourceDir string) error {
	parent := filepath.Dir(sourceDir)
	return filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		name, err := filepath.Rel(parent, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return fmt.Errorf("reading symlink %s: %w", path, err)
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("building tar header for %s: %w", path, err)
		}
		header.Name = filepath.ToSlash(name)

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("writing tar header for %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer file.Close()
		if _, err := io.Copy(tarWriter, file); err != nil {
			return fmt.Errorf("archiving %s: %w", path, err)
		}
		return nil
	})
}

// Extract unpacks an archive created by Create into destDir. The
// format is derived from the archive's extension.
func Extract(archivePath, destDir string) error {
	format, err := formatFromPath(archivePath)
	if err != nil {
		return err
	}

	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", archivePath, err)
	}
	defer in.Close()

	decompressed, closeDecompressor, err := decompressor(in, format)
	if err != nil {
		return err
	}
	defer closeDecompressor()

	tarReader := tar.NewReader(decompressed)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar stream: %w", err)
		}
		if err := extractEntry(tarReader, header, destDir); err != nil {
			return err
		}
	}
}

// formatFromPath derives the Format from an archive filename.
func formatFromPath(path string) (Format, error) {
	switch {
	case strings.HasSuffix(path, ".tar.zst"):
		return Zstd, nil
	case strings.HasSuffix(path, ".tar.lz4"):
		return LZ4, nil
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return Gzip, nil
	case strings.HasSuffix(path, ".tar"):
		return None, nil
	default:
		return "", fmt.Errorf("unrecognized archive extension: %s", path)
	}
}

// decompressor wraps in with the format's decompressing reader.
func decompressor(in io.Reader, format Format) (io.Reader, func(), error) {
	switch format {
	case Zstd:
		reader, err := zstd.NewReader(in)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		return reader, reader.Close, nil
	case LZ4:
		return lz4.NewReader(in), func() {}, nil
	case Gzip:
		reader, err := gzip.NewReader(in)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return reader, func() { reader.Close() }, nil
	case None:
		return in, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown archive format: %q", format)
	}
}

// extractEntry writes one tar entry under destDir, refusing paths that
// escape it.
func extractEntry(tarReader *tar.Reader, header *tar.Header, destDir string) error {
	target := filepath.Join(destDir, filepath.FromSlash(header.Name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("archive entry escapes destination: %s", header.Name)
	}

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, os.FileMode(header.Mode).Perm())
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		return os.Symlink(header.Linkname, target)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(header.Mode).Perm())
		if err != nil {
			return fmt.Errorf("creating %s: %w", target, err)
		}
		if _, err := io.Copy(file, tarReader); err != nil {
			file.Close()
			return fmt.Errorf("extracting %s: %w", target, err)
		}
		return file.Close()
	default:
		// Other entry types (devices, fifos) do not occur in
		// application bundles.
		return nil
	}
}
