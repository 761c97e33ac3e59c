package discovery

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ToolHandle describes a located scanner executable.
type ToolHandle struct {
	Name string
	// Path is the absolute path to the executable.
	Path string
	// Source records which strategy found it: "path", "local" or "cache".
	Source string
}

// NotFoundError is returned when every lookup strategy failed. It names the
// locations that were checked so the caller can print actionable output.
type NotFoundError struct {
	Tool    string
	Checked []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found (checked: %s)", e.Tool, strings.Join(e.Checked, ", "))
}

// DownloadSpec describes how to fetch a tool into the cache when it is not
// installed anywhere locally.
type DownloadSpec struct {
	Version string
	// URL yields the download URL for the current platform. Empty string
	// means the tool has no downloadable build for this platform.
	URL func(goos, goarch string) string
	// Binary names the archive member holding the executable when the asset
	// is a .tar.gz or .zip archive. Empty means the asset is the binary
	// itself.
	Binary string
	// SHA256 pins the expected checksum of the downloaded asset, keyed by
	// "goos/goarch". Platforms without a pinned checksum are refused.
	SHA256 map[string]string
}

// Locator resolves tool names to executables. The cache directory is an
// explicit field rather than process-global state so tests can inject a
// temporary one.
type Locator struct {
	// LocalDirs are project-local install locations checked after PATH
	// (e.g. a configured bin dir, .venv/bin, node_modules/.bin).
	LocalDirs []string
	// CacheDir holds downloaded binaries, laid out as <name>-<version>/<name>.
	CacheDir string
	// Downloads maps tool name to its cache-download spec. Tools without an
	// entry only use the PATH and local-dir strategies.
	Downloads map[string]DownloadSpec
	// DownloadTimeout bounds the cache-download strategy. Zero means no
	// extra bound beyond ctx.
	DownloadTimeout time.Duration

	mu    sync.Mutex
	cache map[string]lookupResult
}

type lookupResult struct {
	handle ToolHandle
	err    error
}

// Locate resolves toolName using PATH, then the local dirs, then the download
// cache. The first successful strategy wins; results (including failures) are
// cached for the life of the Locator.
func (l *Locator) Locate(ctx context.Context, toolName string) (ToolHandle, error) {
	name := strings.ToLower(strings.TrimSpace(toolName))

	l.mu.Lock()
	if l.cache == nil {
		l.cache = make(map[string]lookupResult)
	}
	if res, ok := l.cache[name]; ok {
		l.mu.Unlock()
		return res.handle, res.err
	}
	l.mu.Unlock()

	handle, err := l.locate(ctx, name)

	l.mu.Lock()
	l.cache[name] = lookupResult{handle: handle, err: err}
	l.mu.Unlock()
	return handle, err
}

func (l *Locator) locate(ctx context.Context, name string) (ToolHandle, error) {
	var checked []string

	// Strategy 1: system PATH.
	if p, err := exec.LookPath(name); err == nil {
		slog.Debug("Tool located on PATH", "tool", name, "path", p)
		return ToolHandle{Name: name, Path: p, Source: "path"}, nil
	}
	checked = append(checked, "PATH")

	// Strategy 2: project-local install dirs.
	for _, dir := range l.LocalDirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			slog.Debug("Tool located in local dir", "tool", name, "path", candidate)
			return ToolHandle{Name: name, Path: candidate, Source: "local"}, nil
		}
		checked = append(checked, dir)
	}

	// Strategy 3: versioned download into the cache.
	spec, ok := l.Downloads[name]
	if !ok || l.CacheDir == "" {
		return ToolHandle{}, &NotFoundError{Tool: name, Checked: checked}
	}
	dest := l.cachePath(name, spec.Version)
	if isExecutable(dest) {
		return ToolHandle{Name: name, Path: dest, Source: "cache"}, nil
	}
	checked = append(checked, filepath.Dir(dest))

	if err := l.download(ctx, name, spec, dest); err != nil {
		slog.Warn("Tool cache download failed", "tool", name, "error", err)
		return ToolHandle{}, &NotFoundError{Tool: name, Checked: checked}
	}
	return ToolHandle{Name: name, Path: dest, Source: "cache"}, nil
}

func (l *Locator) cachePath(name, version string) string {
	return filepath.Join(l.CacheDir, fmt.Sprintf("%s-%s", name, version), name)
}

// download fetches the tool asset, verifies its pinned checksum, extracts
// the binary when the asset is an archive, and publishes it with a rename so
// two adapters discovering the same tool concurrently never observe a
// partial write.
func (l *Locator) download(ctx context.Context, name string, spec DownloadSpec, dest string) error {
	url := ""
	if spec.URL != nil {
		url = spec.URL(runtime.GOOS, runtime.GOARCH)
	}
	if url == "" {
		return fmt.Errorf("no download for %s on %s/%s", name, runtime.GOOS, runtime.GOARCH)
	}
	want := spec.SHA256[runtime.GOOS+"/"+runtime.GOARCH]
	if want == "" {
		return fmt.Errorf("no pinned checksum for %s on %s/%s", name, runtime.GOOS, runtime.GOARCH)
	}

	if l.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.DownloadTimeout)
		defer cancel()
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), name+".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	got := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", name, got, want)
	}

	binPath := tmpName
	if spec.Binary != "" {
		binPath, err = extractBinary(url, tmpName, spec.Binary)
		if err != nil {
			return fmt.Errorf("extracting %s: %w", name, err)
		}
		defer os.Remove(binPath)
	}

	if err := os.Chmod(binPath, 0o755); err != nil {
		return fmt.Errorf("marking %s executable: %w", binPath, err)
	}
	if err := os.Rename(binPath, dest); err != nil {
		return fmt.Errorf("publishing %s: %w", dest, err)
	}
	slog.Info("Tool downloaded to cache", "tool", name, "version", spec.Version, "path", dest)
	return nil
}

// extractBinary pulls the named member out of a downloaded archive into a
// sibling temp file and returns its path. The archive format is taken from
// the asset URL.
func extractBinary(url, archivePath, member string) (string, error) {
	switch {
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"):
		return extractTarGz(archivePath, member)
	case strings.HasSuffix(url, ".zip"):
		return extractZip(archivePath, member)
	default:
		return "", fmt.Errorf("unsupported archive type in %s", url)
	}
}

func extractTarGz(archivePath, member string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if hdr.Typeflag != tar.TypeReg || filepath.Base(hdr.Name) != member {
			continue
		}
		return writeMember(archivePath, member, tr)
	}
	return "", fmt.Errorf("member %q not found in archive", member)
}

func extractZip(archivePath, member string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", err
	}
	defer zr.Close()
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || filepath.Base(zf.Name) != member {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return "", err
		}
		path, err := writeMember(archivePath, member, rc)
		rc.Close()
		return path, err
	}
	return "", fmt.Errorf("member %q not found in archive", member)
}

func writeMember(archivePath, member string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(archivePath), member+".extract-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
