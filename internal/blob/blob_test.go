package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestDirPutAndOpen(t *testing.T) {
	d := &Dir{Root: t.TempDir(), BaseURL: "http://relay/blobs"}

	url, err := d.Put(context.Background(), "abcd/photo.jpg", []byte("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "http://relay/blobs/abcd/photo.jpg" {
		t.Errorf("url = %q", url)
	}

	rc, err := d.Open("abcd/photo.jpg")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestDirKeepsTraversalInsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	d := &Dir{Root: root, BaseURL: "http://relay/blobs"}

	for _, key := range []string{"../escape", "a/../../escape", "..%2Fescape"} {
		if _, err := d.Put(context.Background(), key, []byte("x"), ""); err != nil {
			t.Fatalf("Put(%q): %v", key, err)
		}
	}
	if _, err := os.Stat(filepath.Join(parent, "escape")); err == nil {
		t.Fatal("a hostile key escaped the blob root")
	}
	if _, err := os.Stat(filepath.Join(root, "escape")); err != nil {
		t.Errorf("sanitized key not stored under root: %v", err)
	}
}

func TestDirRejectsEmptyKey(t *testing.T) {
	d := &Dir{Root: t.TempDir(), BaseURL: "http://relay/blobs"}
	for _, key := range []string{"", ".", "/"} {
		if _, err := d.Put(context.Background(), key, []byte("x"), ""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
}
