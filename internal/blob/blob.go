// Package blob is the media upload collaborator: store bytes, get back a URL
// that the other room members can fetch. The relay server hosts the Dir
// implementation and exposes it over HTTP; clients use the HTTP one.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidKey marks a malformed blob key, the caller's fault rather than
// the store's.
var ErrInvalidKey = errors.New("invalid blob key")

// Store uploads blobs and returns a retrievable URL.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Dir stores blobs as files under a root directory. Keys are slash-separated
// and sanitized against traversal.
type Dir struct {
	Root    string
	BaseURL string // prefix of returned URLs, e.g. "http://host:8080/blobs"
}

// Put implements Store.
func (d *Dir) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(d.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return d.BaseURL + "/" + clean, nil
}

// Open returns the blob's content for serving.
func (d *Dir) Open(key string) (io.ReadCloser, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(d.Root, filepath.FromSlash(clean)))
}

// HTTP uploads blobs to the relay server's blob endpoint with PUT
// /blobs/{key} and returns the URL the server responds with.
type HTTP struct {
	BaseURL string // e.g. "http://host:8080"
	Client  *http.Client
}

// Put implements Store.
func (h *HTTP) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	u := strings.TrimSuffix(h.BaseURL, "/") + "/blobs/" + clean
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload blob: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload blob: unexpected status %s", resp.Status)
	}
	loc, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(loc)), nil
}

// cleanKey normalizes a blob key. Rooting the path before cleaning folds any
// ".." back inside the root, so a hostile key cannot escape it.
func cleanKey(key string) (string, error) {
	unescaped, err := url.PathUnescape(key)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean("/" + unescaped)
	if clean == "/" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	return strings.TrimPrefix(clean, "/"), nil
}
