package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jpoley/scantriage/internal/discovery"
	"github.com/jpoley/scantriage/models"
)

const gitleaksVersion = "8.21.2"

// GitleaksAdapter wraps gitleaks for hardcoded-secret detection.
type GitleaksAdapter struct {
	loc *discovery.Locator
}

func NewGitleaksAdapter(loc *discovery.Locator) *GitleaksAdapter {
	return &GitleaksAdapter{loc: loc}
}

func (g *GitleaksAdapter) Name() string { return "gitleaks" }

func (g *GitleaksAdapter) IsAvailable(ctx context.Context) bool {
	_, err := g.loc.Locate(ctx, "gitleaks")
	return err == nil
}

func (g *GitleaksAdapter) Version(ctx context.Context) string {
	h, err := g.loc.Locate(ctx, "gitleaks")
	if err != nil {
		return ""
	}
	return toolVersion(ctx, h.Path)
}

func (g *GitleaksAdapter) InstallInstructions() string {
	return "install gitleaks with: brew install gitleaks (or download a release from github.com/gitleaks/gitleaks)"
}

// gitleaksFinding mirrors one entry of the gitleaks JSON report.
type gitleaksFinding struct {
	RuleID      string  `json:"RuleID"`
	Description string  `json:"Description"`
	File        string  `json:"File"`
	StartLine   int     `json:"StartLine"`
	EndLine     int     `json:"EndLine"`
	StartColumn int     `json:"StartColumn"`
	Match       string  `json:"Match"`
	Entropy     float64 `json:"Entropy"`
}

func (g *GitleaksAdapter) Scan(ctx context.Context, opts ScanOptions) ([]models.RawFinding, error) {
	h, err := g.loc.Locate(ctx, "gitleaks")
	if err != nil {
		return nil, err
	}

	// gitleaks only writes reports to a file, so stage one in a temp dir.
	tmpDir, err := os.MkdirTemp("", "scantriage-gitleaks-*")
	if err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)
	report := filepath.Join(tmpDir, "report.json")

	args := []string{
		"detect",
		"--no-git",
		"--source", opts.TargetPath,
		"--report-format", "json",
		"--report-path", report,
	}

	// gitleaks exits 1 when leaks are found.
	if _, err := runTool(ctx, h.Path, args, 1); err != nil {
		return nil, fmt.Errorf("executing gitleaks: %w", err)
	}

	data, err := os.ReadFile(report)
	if err != nil {
		// No report means no leaks on some versions.
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading gitleaks report: %w", err)
	}
	return g.parse(data), nil
}

func (g *GitleaksAdapter) parse(data []byte) []models.RawFinding {
	var leaks []gitleaksFinding
	if err := json.Unmarshal(data, &leaks); err != nil {
		slog.Warn("Failed to parse gitleaks report", "error", err)
		return nil
	}
	out := make([]models.RawFinding, 0, len(leaks))
	for _, l := range leaks {
		out = append(out, models.RawFinding{
			Tool:        "gitleaks",
			RuleID:      l.RuleID,
			Message:     l.Description,
			FilePath:    l.File,
			Line:        l.StartLine,
			Column:      l.StartColumn,
			EndLine:     l.EndLine,
			RawSeverity: "HIGH", // gitleaks reports no severity; leaked credentials are high by policy
			Snippet:     l.Match,
		})
	}
	return out
}
