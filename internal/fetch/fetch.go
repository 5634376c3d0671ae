// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch places the input document into the run's working directory,
// downloading it when the reference is an http(s) URL.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/pagescribe/internal/httputil"
	"github.com/pdiddy/pagescribe/pkg/types"
)

const defaultUserAgent = "pagescribe/1.0"

// fallbackName is used when neither the URL nor the response names the file.
const fallbackName = "document"

// Fetcher copies local files and downloads remote ones.
type Fetcher struct {
	// Client performs downloads. Nil uses http.DefaultClient.
	Client *http.Client

	// UserAgent is sent with downloads.
	UserAgent string

	// MaxRetries bounds throttling retries (0 uses the httputil default).
	MaxRetries int

	// Log receives throttling retries. Nil discards them.
	Log logrus.FieldLogger
}

// IsURL reports whether ref is an http or https URL.
func IsURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch places ref into destDir and returns the local path. A remote response
// other than 200 yields *types.ResourceUnreachableError; a missing local file
// yields an error wrapping types.ErrFileUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, ref, destDir string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: empty file reference", types.ErrFileUnavailable)
	}
	if IsURL(ref) {
		return f.download(ctx, ref, destDir)
	}
	return copyLocal(ref, destDir)
}

func (f *Fetcher) download(ctx context.Context, rawURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, f.MaxRetries, f.Log)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", types.ErrResourceUnreachable, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &types.ResourceUnreachableError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	destPath := filepath.Join(destDir, remoteName(rawURL, resp.Header.Get("Content-Type")))
	if err := writeAtomic(destPath, resp.Body); err != nil {
		return "", err
	}
	return destPath, nil
}

// remoteName derives a file name from the URL path, adding an extension from
// the content type when the path has none.
func remoteName(rawURL, contentType string) string {
	name := fallbackName
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." && base != "" {
			name = base
		}
	}
	if filepath.Ext(name) != "" {
		return name
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return name + ".pdf"
	}
	switch mt {
	case "image/png":
		return name + ".png"
	case "image/jpeg":
		return name + ".jpg"
	default:
		return name + ".pdf"
	}
}

func copyLocal(src, destDir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", types.ErrFileUnavailable, src)
		}
		return "", fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", src, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", types.ErrFileUnavailable, src)
	}

	destPath := filepath.Join(destDir, filepath.Base(src))
	if err := writeAtomic(destPath, in); err != nil {
		return "", err
	}
	return destPath, nil
}

// writeAtomic streams r into a temp file beside destPath and renames it.
func writeAtomic(destPath string, r io.Reader) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, r)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", destPath, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
