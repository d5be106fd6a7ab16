package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/aldisr/ngobrol/internal/blob"
)

func blobRouter(blobs *blob.Dir) *chi.Mux {
	r := chi.NewRouter()
	r.Put("/blobs/*", handleUpload(blobs))
	r.Get("/blobs/*", handleDownload(blobs))
	return r
}

func put(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUploadRoundTrip(t *testing.T) {
	blobs := &blob.Dir{Root: t.TempDir(), BaseURL: "http://relay/blobs"}
	r := blobRouter(blobs)

	rec := put(t, r, "/blobs/room-1/photo.jpg", "jpeg-bytes")
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "http://relay/blobs/room-1/photo.jpg" {
		t.Errorf("returned url = %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/blobs/room-1/photo.jpg", nil)
	got := httptest.NewRecorder()
	r.ServeHTTP(got, req)
	if got.Code != http.StatusOK || got.Body.String() != "jpeg-bytes" {
		t.Errorf("download = %d %q, want the uploaded bytes", got.Code, got.Body.String())
	}
}

func TestUploadBadKeyIsClientError(t *testing.T) {
	blobs := &blob.Dir{Root: t.TempDir(), BaseURL: "http://relay/blobs"}
	rec := put(t, blobRouter(blobs), "/blobs/", "data")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty key status = %d, want 400", rec.Code)
	}
}

func TestUploadStorageFaultIsServerError(t *testing.T) {
	// A root that is a plain file makes every write fail server-side.
	root := filepath.Join(t.TempDir(), "root")
	if err := os.WriteFile(root, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	blobs := &blob.Dir{Root: root, BaseURL: "http://relay/blobs"}

	rec := put(t, blobRouter(blobs), "/blobs/room-1/photo.jpg", "data")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("storage fault status = %d, want 500", rec.Code)
	}
}
