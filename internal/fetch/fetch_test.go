package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// newTestFetcher uses the httptest server's own client so downloads do
// not go through the DNS-cached transport.
func newTestFetcher(srv *httptest.Server, opts ...Option) *Fetcher {
	opts = append([]Option{
		WithHTTPClient(srv.Client()),
		WithMaxRetries(1),
		WithBaseDelay(time.Millisecond),
	}, opts...)
	return New(opts...)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vim-9.1.0.starpack" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("archive bytes"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	dest := filepath.Join(t.TempDir(), "cache", "vim-9.1.0.starpack")

	if err := f.Download(context.Background(), srv.URL+"/vim-9.1.0.starpack", dest); err != nil {
		t.Fatalf("Download() failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if string(data) != "archive bytes" {
		t.Errorf("downloaded content = %q, want %q", data, "archive bytes")
	}
}

func TestDownload_ExistingDestIsSuccess(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "vim-9.1.0.starpack")
	if err := os.WriteFile(dest, []byte("cached"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	f := newTestFetcher(srv)
	if err := f.Download(context.Background(), srv.URL+"/vim-9.1.0.starpack", dest); err != nil {
		t.Fatalf("Download() failed: %v", err)
	}

	if requests != 0 {
		t.Errorf("server saw %d requests, want 0 for a cached file", requests)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "cached" {
		t.Errorf("cached file was overwritten: %q", data)
	}
}

func TestDownload_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	f := newTestFetcher(srv)
	dest := filepath.Join(t.TempDir(), "ghost.starpack")

	err := f.Download(context.Background(), srv.URL+"/ghost.starpack", dest)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Download() error = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("no file should remain after a failed download")
	}
}

func TestDownload_NotFoundIsNotRetried(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(srv, WithMaxRetries(3))
	dest := filepath.Join(t.TempDir(), "ghost.starpack")

	f.Download(context.Background(), srv.URL+"/ghost.starpack", dest)
	if requests != 1 {
		t.Errorf("server saw %d requests, want 1 (404 is permanent)", requests)
	}
}

func TestDownload_ServerErrorRetries(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("eventually"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv, WithMaxRetries(3))
	dest := filepath.Join(t.TempDir(), "flaky.starpack")

	if err := f.Download(context.Background(), srv.URL+"/flaky.starpack", dest); err != nil {
		t.Fatalf("Download() should succeed after retries: %v", err)
	}
	if requests != 3 {
		t.Errorf("server saw %d requests, want 3", requests)
	}
}

func TestDownload_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	dest := filepath.Join(t.TempDir(), "limited.starpack")

	err := f.Download(context.Background(), srv.URL+"/limited.starpack", dest)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Download() error = %v, want ErrRateLimited", err)
	}
}

type recordingIndex struct {
	mu      sync.Mutex
	entries []string
	sizes   []int64
}

func (r *recordingIndex) RecordFetch(url, dest string, size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, dest)
	r.sizes = append(r.sizes, size)
}

func TestDownload_Recorder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("12345"))
	}))
	defer srv.Close()

	rec := &recordingIndex{}
	f := newTestFetcher(srv, WithRecorder(rec))
	dest := filepath.Join(t.TempDir(), "vim-9.1.0.starpack")

	if err := f.Download(context.Background(), srv.URL+"/vim-9.1.0.starpack", dest); err != nil {
		t.Fatalf("Download() failed: %v", err)
	}

	if len(rec.entries) != 1 || rec.entries[0] != dest {
		t.Errorf("recorder entries = %v, want the destination path", rec.entries)
	}
	if rec.sizes[0] != 5 {
		t.Errorf("recorded size = %d, want 5", rec.sizes[0])
	}
}

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	dir := t.TempDir()
	reqs := []Request{
		{URL: srv.URL + "/a.starpack", Dest: filepath.Join(dir, "a.starpack")},
		{URL: srv.URL + "/b.starpack", Dest: filepath.Join(dir, "b.starpack")},
		{URL: srv.URL + "/c.starpack", Dest: filepath.Join(dir, "c.starpack")},
	}

	if err := f.FetchAll(context.Background(), reqs, "Fetching packages"); err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}

	for _, req := range reqs {
		if _, err := os.Stat(req.Dest); err != nil {
			t.Errorf("missing downloaded file %s: %v", req.Dest, err)
		}
	}
}

func TestFetchAll_DrainsAfterFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.starpack" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	dir := t.TempDir()
	reqs := []Request{
		{URL: srv.URL + "/missing.starpack", Dest: filepath.Join(dir, "missing.starpack")},
		{URL: srv.URL + "/present.starpack", Dest: filepath.Join(dir, "present.starpack")},
	}

	err := f.FetchAll(context.Background(), reqs, "Fetching packages")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FetchAll() error = %v, want to wrap ErrNotFound", err)
	}

	// The rest of the batch must still land.
	if _, err := os.Stat(filepath.Join(dir, "present.starpack")); err != nil {
		t.Errorf("surviving transfer should complete: %v", err)
	}
}

func TestFetchAll_Empty(t *testing.T) {
	f := New(WithMaxRetries(1), WithBaseDelay(time.Millisecond))
	if err := f.FetchAll(context.Background(), nil, "Fetching packages"); err != nil {
		t.Errorf("FetchAll() on an empty batch should succeed, got: %v", err)
	}
}
