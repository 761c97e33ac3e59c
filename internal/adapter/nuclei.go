package adapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jpoley/scantriage/internal/discovery"
	"github.com/jpoley/scantriage/models"
)

const nucleiVersion = "3.3.7"

// NucleiAdapter wraps nuclei for dynamic web scanning. nuclei emits JSONL
// (one JSON object per line).
type NucleiAdapter struct {
	loc *discovery.Locator
}

func NewNucleiAdapter(loc *discovery.Locator) *NucleiAdapter {
	return &NucleiAdapter{loc: loc}
}

func (n *NucleiAdapter) Name() string { return "nuclei" }

func (n *NucleiAdapter) IsAvailable(ctx context.Context) bool {
	_, err := n.loc.Locate(ctx, "nuclei")
	return err == nil
}

func (n *NucleiAdapter) Version(ctx context.Context) string {
	h, err := n.loc.Locate(ctx, "nuclei")
	if err != nil {
		return ""
	}
	return toolVersion(ctx, h.Path)
}

func (n *NucleiAdapter) InstallInstructions() string {
	return "install nuclei with: go install github.com/projectdiscovery/nuclei/v3/cmd/nuclei@latest"
}

// nucleiResult mirrors one JSONL record of nuclei output.
type nucleiResult struct {
	TemplateID string `json:"template-id"`
	MatchedAt  string `json:"matched-at"`
	Info       struct {
		Name           string `json:"name"`
		Severity       string `json:"severity"`
		Classification struct {
			CWEID []string `json:"cwe-id"`
		} `json:"classification"`
	} `json:"info"`
	ExtractedResults []string `json:"extracted-results"`
}

func (n *NucleiAdapter) Scan(ctx context.Context, opts ScanOptions) ([]models.RawFinding, error) {
	h, err := n.loc.Locate(ctx, "nuclei")
	if err != nil {
		return nil, err
	}

	args := []string{"-target", opts.TargetPath, "-jsonl", "-silent", "-no-color"}
	out, err := runTool(ctx, h.Path, args, 1)
	if err != nil {
		return nil, fmt.Errorf("executing nuclei: %w", err)
	}
	findings, skipped := n.parse(out)
	if skipped > 0 {
		slog.Warn("Skipped unparseable nuclei output lines", "skipped", skipped)
	}
	return findings, nil
}

func (n *NucleiAdapter) parse(data []byte) ([]models.RawFinding, int) {
	var out []models.RawFinding
	var skipped int
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec nucleiResult
		if err := json.Unmarshal(line, &rec); err != nil {
			// nuclei sometimes interleaves warnings with its JSONL output.
			skipped++
			continue
		}
		msg := strings.TrimSpace(rec.Info.Name)
		if msg == "" {
			msg = rec.TemplateID
		}
		snippet := strings.Join(rec.ExtractedResults, " ")
		if snippet == "" {
			snippet = rec.MatchedAt
		}
		out = append(out, models.RawFinding{
			Tool:        "nuclei",
			RuleID:      rec.TemplateID,
			Message:     msg,
			FilePath:    rec.MatchedAt,
			RawSeverity: rec.Info.Severity,
			Snippet:     snippet,
		})
	}
	return out, skipped
}
