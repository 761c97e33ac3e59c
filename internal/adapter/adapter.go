package adapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jpoley/scantriage/internal/discovery"
	"github.com/jpoley/scantriage/models"
)

// ScanOptions contains the parameters passed to each adapter.
type ScanOptions struct {
	// TargetPath is the filesystem path (or URL, for web scanners) to scan.
	TargetPath string
	// IncludeGlobs / ExcludeGlobs restrict which paths the tool inspects.
	// Adapters forward them to the tool where it has native flags for them.
	IncludeGlobs []string
	ExcludeGlobs []string
}

// Adapter is the interface every scanning tool integration must implement.
// To add a new adapter:
//  1. Create a new file in internal/adapter/ (e.g. mynewtool.go)
//  2. Implement the Adapter interface
//  3. Register it in Build()
type Adapter interface {
	// Name returns the tool name (e.g. "semgrep").
	Name() string

	// Version returns the installed tool version, or "" when unknown.
	Version(ctx context.Context) string

	// IsAvailable reports whether the tool can be located. The underlying
	// discovery lookup is cached per process.
	IsAvailable(ctx context.Context) bool

	// Scan invokes the tool as a subprocess against opts.TargetPath and
	// parses its native output. Malformed output yields zero findings and
	// a logged warning, never an error that would abort the run.
	Scan(ctx context.Context, opts ScanOptions) ([]models.RawFinding, error)

	// InstallInstructions returns remediation text shown when the tool
	// cannot be located.
	InstallInstructions() string
}

// Build constructs Adapter instances for the given names, all sharing one
// Locator so discovery results are cached across adapters.
func Build(names []string, loc *discovery.Locator) []Adapter {
	adapters := make([]Adapter, 0, len(names))
	for _, name := range names {
		var a Adapter
		switch name {
		case "semgrep":
			a = NewSemgrepAdapter(loc)
		case "gitleaks":
			a = NewGitleaksAdapter(loc)
		case "nuclei":
			a = NewNucleiAdapter(loc)
		default:
			slog.Warn("Unknown adapter", "name", name)
			continue
		}
		adapters = append(adapters, a)
	}
	return adapters
}

// Known reports the adapter names this build supports.
func Known() map[string]bool {
	return map[string]bool{"semgrep": true, "gitleaks": true, "nuclei": true}
}

// Downloads returns the cache-download specs for the bundled adapters,
// wired into the Locator's third lookup strategy. Release assets are
// archives; Binary names the executable member to extract. Checksums are
// copied from each release's published checksums file when the pinned
// version is bumped, so platforms without an entry are refused rather than
// installed unverified.
func Downloads() map[string]discovery.DownloadSpec {
	return map[string]discovery.DownloadSpec{
		"gitleaks": {
			Version: gitleaksVersion,
			Binary:  "gitleaks",
			URL: func(goos, goarch string) string {
				arch := map[string]string{"amd64": "x64", "arm64": "arm64"}[goarch]
				if arch == "" {
					return ""
				}
				return fmt.Sprintf(
					"https://github.com/gitleaks/gitleaks/releases/download/v%s/gitleaks_%s_%s_%s.tar.gz",
					gitleaksVersion, gitleaksVersion, goos, arch)
			},
			SHA256: map[string]string{
				"linux/amd64":  "cf215b3ff18a7b86750fdcf063c1d7d2bdfa2c07476932869c383d86481bed85",
				"linux/arm64":  "b6f6d7c46e7e29f43d940f9894eef85a6fcba32473a57500d1e29562a2526d4b",
				"darwin/amd64": "fd2a081704d67842e5ea54c4fb68ac9649c2e19d9d1d3d7cc009d3db0d9f9448",
				"darwin/arm64": "0c6709a6bdb778af36851a5ebf628f140d93bced660c9b85da295667acc8fc37",
			},
		},
		"nuclei": {
			Version: nucleiVersion,
			Binary:  "nuclei",
			URL: func(goos, goarch string) string {
				// nuclei release assets spell darwin "macOS".
				osName := map[string]string{"linux": "linux", "darwin": "macOS"}[goos]
				if osName == "" {
					return ""
				}
				return fmt.Sprintf(
					"https://github.com/projectdiscovery/nuclei/releases/download/v%s/nuclei_%s_%s_%s.zip",
					nucleiVersion, nucleiVersion, osName, goarch)
			},
			SHA256: map[string]string{
				"linux/amd64":  "47bb1ce8702b1da8b2faeb82350b4c1ad148824728ef36ad18a2749107d59e81",
				"linux/arm64":  "8b5be7e62be94615b8df971931ecf89af15931e70db6ab426ef8527ddee0a60d",
				"darwin/amd64": "53e558d3a6d892bb69be79c00098144a7c4d93364e5846c24e62dc2091347652",
				"darwin/arm64": "20fc0ed2cf7885efeb07e2e9f35d820a365b64b6ff8eebc8be9e3071937ebf8f",
			},
		},
		// semgrep ships via pip; there is no single-binary release to cache.
	}
}
