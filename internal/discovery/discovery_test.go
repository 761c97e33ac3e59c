package discovery

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("writing fake tool: %v", err)
	}
	return path
}

func TestLocateLocalDir(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, dir, "faketool")

	loc := &Locator{LocalDirs: []string{dir}, CacheDir: t.TempDir()}
	h, err := loc.Locate(context.Background(), "faketool")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if h.Source != "local" {
		t.Fatalf("expected local source, got %q", h.Source)
	}
	if h.Path != filepath.Join(dir, "faketool") {
		t.Fatalf("unexpected path %q", h.Path)
	}
}

func TestLocateNotFoundListsChecked(t *testing.T) {
	dir := t.TempDir()
	loc := &Locator{LocalDirs: []string{dir}}

	_, err := loc.Locate(context.Background(), "definitely-not-installed-tool")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(nf.Checked) < 2 {
		t.Fatalf("expected PATH and local dir in checked list, got %v", nf.Checked)
	}
	if nf.Checked[0] != "PATH" {
		t.Fatalf("expected PATH checked first, got %v", nf.Checked)
	}
	if !strings.Contains(nf.Error(), dir) {
		t.Fatalf("error should name checked locations: %v", nf)
	}
}

func TestLocateDownloadsToCache(t *testing.T) {
	payload := []byte("#!/bin/sh\nexit 0\n")
	sum := sha256.Sum256(payload)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	cache := t.TempDir()
	loc := &Locator{
		CacheDir: cache,
		Downloads: map[string]DownloadSpec{
			"dltool": {
				Version: "1.2.3",
				URL:     func(goos, goarch string) string { return srv.URL + "/dltool" },
				SHA256:  map[string]string{runtime.GOOS + "/" + runtime.GOARCH: hex.EncodeToString(sum[:])},
			},
		},
	}

	h, err := loc.Locate(context.Background(), "dltool")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if h.Source != "cache" {
		t.Fatalf("expected cache source, got %q", h.Source)
	}
	want := filepath.Join(cache, "dltool-1.2.3", "dltool")
	if h.Path != want {
		t.Fatalf("expected %q, got %q", want, h.Path)
	}
	if !isExecutable(h.Path) {
		t.Fatalf("downloaded binary should be executable")
	}

	// Second locate hits the in-process cache; no second download happens
	// even if the server goes away.
	srv.Close()
	h2, err := loc.Locate(context.Background(), "dltool")
	if err != nil {
		t.Fatalf("second Locate: %v", err)
	}
	if h2.Path != h.Path {
		t.Fatalf("cached lookup changed path: %q vs %q", h2.Path, h.Path)
	}
}

func tarGzArchive(t *testing.T, member string, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	files := []struct {
		name string
		body []byte
	}{
		{"README.md", []byte("release notes\n")},
		{member, payload},
	}
	for _, f := range files {
		if err := tw.WriteHeader(&tar.Header{Name: f.name, Mode: 0o755, Size: int64(len(f.body))}); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if _, err := tw.Write(f.body); err != nil {
			t.Fatalf("tar body: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
	return buf.Bytes()
}

func zipArchive(t *testing.T, member string, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(member)
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestLocateExtractsTarGzArchive(t *testing.T) {
	payload := []byte("#!/bin/sh\necho tarred\n")
	asset := tarGzArchive(t, "archtool", payload)
	sum := sha256.Sum256(asset)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(asset)
	}))
	defer srv.Close()

	cache := t.TempDir()
	loc := &Locator{
		CacheDir: cache,
		Downloads: map[string]DownloadSpec{
			"archtool": {
				Version: "2.0.0",
				Binary:  "archtool",
				URL:     func(goos, goarch string) string { return srv.URL + "/archtool_2.0.0.tar.gz" },
				SHA256:  map[string]string{runtime.GOOS + "/" + runtime.GOARCH: hex.EncodeToString(sum[:])},
			},
		},
	}

	h, err := loc.Locate(context.Background(), "archtool")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if !isExecutable(h.Path) {
		t.Fatalf("extracted binary should be executable")
	}
	got, err := os.ReadFile(h.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("published file is not the extracted member:\ngot  %q", got)
	}
	// The archive temp files must not linger next to the binary.
	entries, err := os.ReadDir(filepath.Dir(h.Path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("cache dir should hold only the binary, got %v", entries)
	}
}

func TestLocateExtractsZipArchive(t *testing.T) {
	payload := []byte("#!/bin/sh\necho zipped\n")
	asset := zipArchive(t, "ziptool", payload)
	sum := sha256.Sum256(asset)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(asset)
	}))
	defer srv.Close()

	loc := &Locator{
		CacheDir: t.TempDir(),
		Downloads: map[string]DownloadSpec{
			"ziptool": {
				Version: "0.3.0",
				Binary:  "ziptool",
				URL:     func(goos, goarch string) string { return srv.URL + "/ziptool_0.3.0.zip" },
				SHA256:  map[string]string{runtime.GOOS + "/" + runtime.GOARCH: hex.EncodeToString(sum[:])},
			},
		},
	}

	h, err := loc.Locate(context.Background(), "ziptool")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	got, err := os.ReadFile(h.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("published file is not the extracted member:\ngot  %q", got)
	}
}

func TestLocateRefusesUnpinnedDownload(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("anything"))
	}))
	defer srv.Close()

	cache := t.TempDir()
	loc := &Locator{
		CacheDir: cache,
		Downloads: map[string]DownloadSpec{
			"unpinned": {
				Version: "1.0.0",
				URL:     func(goos, goarch string) string { return srv.URL + "/unpinned" },
			},
		},
	}

	_, err := loc.Locate(context.Background(), "unpinned")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError without a pinned checksum, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("download must be refused before any bytes are fetched, saw %d requests", hits.Load())
	}
	if isExecutable(filepath.Join(cache, "unpinned-1.0.0", "unpinned")) {
		t.Fatalf("unverified binary must not land in the cache")
	}
}

func TestLocateChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	cache := t.TempDir()
	loc := &Locator{
		CacheDir: cache,
		Downloads: map[string]DownloadSpec{
			"badtool": {
				Version: "0.1.0",
				URL:     func(goos, goarch string) string { return srv.URL + "/badtool" },
				SHA256:  map[string]string{runtime.GOOS + "/" + runtime.GOARCH: strings.Repeat("ab", 32)},
			},
		},
	}

	_, err := loc.Locate(context.Background(), "badtool")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError after checksum mismatch, got %v", err)
	}
	// The rejected download must not be published into the cache.
	if isExecutable(filepath.Join(cache, "badtool-0.1.0", "badtool")) {
		t.Fatalf("tampered binary must not land in the cache")
	}
}
