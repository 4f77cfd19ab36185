// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package fetch downloads source archives with retry and checksum
// verification. Downloads are cached by checksum: if a file with the
// expected digest already sits in the downloads directory, no network
// request is made at all, which keeps repeated builds offline-friendly.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/carton-build/carton/lib/digest"
)

// Fetcher downloads source archives into a directory.
type Fetcher struct {
	// Client is the HTTP client used for downloads.
	Client *http.Client

	// Downloads is the directory downloaded archives are stored in.
	Downloads string

	// Logger receives download progress and retry events.
	Logger *slog.Logger

	// MaxRetries bounds the retry attempts per download. Zero means
	// the default of 4.
	MaxRetries uint64

	// RetryInterval overrides the initial backoff interval. Zero
	// keeps the backoff library's default; tests shorten it.
	RetryInterval time.Duration
}

// Fetch downloads rawURL unless a cached copy with the expected
// SHA-256 digest already exists, and returns the local path. Transient
// failures (network errors, 5xx responses) are retried with
// exponential backoff; a checksum mismatch is permanent, since
// retrying a corrupt upstream artifact cannot fix it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, sha256Hex string) (string, error) {
	expected, err := digest.Parse(sha256Hex)
	if err != nil {
		return "", fmt.Errorf("checksum for %s: %w", rawURL, err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing source URL: %w", err)
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("source URL has no file name: %s", rawURL)
	}

	if err := os.MkdirAll(f.Downloads, 0755); err != nil {
		return "", fmt.Errorf("creating downloads directory: %w", err)
	}
	target := filepath.Join(f.Downloads, name)

	if sum, err := digest.SHA256File(target); err == nil && sum == expected {
		f.Logger.Debug("download cached", "file", target)
		return target, nil
	}

	exponential := backoff.NewExponentialBackOff()
	if f.RetryInterval > 0 {
		exponential.InitialInterval = f.RetryInterval
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(exponential, f.maxRetries()), ctx)
	attempt := 0
	operation := func() error {
		attempt++
		if attempt > 1 {
			f.Logger.Info("retrying download", "url", rawURL, "attempt", attempt)
		}
		return f.download(ctx, rawURL, target, expected)
	}
	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("downloading %s: %w", rawURL, err)
	}

	f.Logger.Info("downloaded source archive", "url", rawURL, "file", target)
	return target, nil
}

func (f *Fetcher) maxRetries() uint64 {
	if f.MaxRetries == 0 {
		return 4
	}
	return f.MaxRetries
}

// download performs a single download attempt into a temporary file
// and renames it over target only after the checksum verifies, so a
// failed attempt never leaves a plausible-looking partial archive.
func (f *Fetcher) download(ctx context.Context, rawURL, target string, expected [32]byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return backoff.Permanent(err)
	}

	response, err := f.client().Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusOK:
	case response.StatusCode >= 500:
		return fmt.Errorf("HTTP %d", response.StatusCode)
	default:
		// 4xx responses will not improve with retries.
		return backoff.Permanent(fmt.Errorf("HTTP %d", response.StatusCode))
	}

	temp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return backoff.Permanent(err)
	}
	defer os.Remove(temp.Name())

	if _, err := io.Copy(temp, response.Body); err != nil {
		temp.Close()
		return err
	}
	if err := temp.Close(); err != nil {
		return err
	}

	sum, err := digest.SHA256File(temp.Name())
	if err != nil {
		return backoff.Permanent(err)
	}
	if sum != expected {
		return backoff.Permanent(fmt.Errorf("checksum mismatch: got %s, want %s",
			digest.Format(sum), digest.Format(expected)))
	}

	return os.Rename(temp.Name(), target)
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: 10 * time.Minute}
}
