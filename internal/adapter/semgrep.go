package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jpoley/scantriage/internal/discovery"
	"github.com/jpoley/scantriage/models"
)

// SemgrepAdapter wraps semgrep for static analysis.
type SemgrepAdapter struct {
	loc *discovery.Locator
}

func NewSemgrepAdapter(loc *discovery.Locator) *SemgrepAdapter {
	return &SemgrepAdapter{loc: loc}
}

func (s *SemgrepAdapter) Name() string { return "semgrep" }

func (s *SemgrepAdapter) IsAvailable(ctx context.Context) bool {
	_, err := s.loc.Locate(ctx, "semgrep")
	return err == nil
}

func (s *SemgrepAdapter) Version(ctx context.Context) string {
	h, err := s.loc.Locate(ctx, "semgrep")
	if err != nil {
		return ""
	}
	return toolVersion(ctx, h.Path)
}

func (s *SemgrepAdapter) InstallInstructions() string {
	return "install semgrep with: pip install semgrep (or brew install semgrep)"
}

// semgrepOutput mirrors the semgrep JSON output schema.
type semgrepOutput struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Path    string `json:"path"`
		Start   struct {
			Line int `json:"line"`
			Col  int `json:"col"`
		} `json:"start"`
		End struct {
			Line int `json:"line"`
		} `json:"end"`
		Extra struct {
			Message  string `json:"message"`
			Severity string `json:"severity"`
			Lines    string `json:"lines"`
		} `json:"extra"`
	} `json:"results"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (s *SemgrepAdapter) Scan(ctx context.Context, opts ScanOptions) ([]models.RawFinding, error) {
	h, err := s.loc.Locate(ctx, "semgrep")
	if err != nil {
		return nil, err
	}

	args := []string{"scan", "--json", "--quiet", "--config", "auto"}
	for _, g := range opts.IncludeGlobs {
		args = append(args, "--include", g)
	}
	for _, g := range opts.ExcludeGlobs {
		args = append(args, "--exclude", g)
	}
	args = append(args, opts.TargetPath)

	// semgrep exits 1 when it finds issues.
	out, err := runTool(ctx, h.Path, args, 1)
	if err != nil {
		return nil, fmt.Errorf("executing semgrep: %w", err)
	}
	return s.parse(out), nil
}

func (s *SemgrepAdapter) parse(data []byte) []models.RawFinding {
	var output semgrepOutput
	if err := json.Unmarshal(data, &output); err != nil {
		slog.Warn("Failed to parse semgrep output", "error", err)
		return nil
	}
	out := make([]models.RawFinding, 0, len(output.Results))
	for _, r := range output.Results {
		out = append(out, models.RawFinding{
			Tool:        "semgrep",
			RuleID:      r.CheckID,
			Message:     r.Extra.Message,
			FilePath:    r.Path,
			Line:        r.Start.Line,
			Column:      r.Start.Col,
			EndLine:     r.End.Line,
			RawSeverity: r.Extra.Severity,
			Snippet:     r.Extra.Lines,
		})
	}
	return out
}
