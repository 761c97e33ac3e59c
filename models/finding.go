package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// RawFinding is a scanner-native finding before normalization. It lives only
// for the duration of one adapter invocation.
type RawFinding struct {
	Tool        string `json:"tool"`
	RuleID      string `json:"rule_id"`
	Message     string `json:"message"`
	FilePath    string `json:"file_path"`
	Line        int    `json:"line"`
	Column      int    `json:"column,omitempty"`
	EndLine     int    `json:"end_line,omitempty"`
	RawSeverity string `json:"raw_severity"`
	// Snippet is the matched source excerpt when the tool reports one.
	// It anchors the fingerprint so line drift does not split identities.
	Snippet string `json:"snippet,omitempty"`
}

// Source identifies one (tool, rule) pair that reported a finding.
type Source struct {
	Tool   string `json:"tool"`
	RuleID string `json:"rule_id"`
}

// Location is a file path plus a line range.
type Location struct {
	FilePath  string `json:"file_path"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
}

// UnifiedFinding is the canonical representation every downstream stage
// operates on. Two UnifiedFindings never share a fingerprint within one set;
// overlapping reports are merged into the existing entry instead.
type UnifiedFinding struct {
	Fingerprint string        `json:"fingerprint"`
	Sources     []Source      `json:"sources"`
	Category    string        `json:"category"` // CWE identifier, e.g. "CWE-89"
	Location    Location      `json:"location"`
	Severity    SeverityLevel `json:"severity"`
	Message     string        `json:"message"`
	Snippet     string        `json:"snippet,omitempty"`
}

// HasSource reports whether the finding already carries the given source.
func (u *UnifiedFinding) HasSource(s Source) bool {
	for _, have := range u.Sources {
		if have == s {
			return true
		}
	}
	return false
}

// SortedSources returns the sources ordered by tool then rule id, so merged
// output is stable regardless of adapter completion order.
func (u *UnifiedFinding) SortedSources() []Source {
	out := make([]Source, len(u.Sources))
	copy(out, u.Sources)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tool != out[j].Tool {
			return out[i].Tool < out[j].Tool
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}

// Fingerprint computes the stable identity hash for a finding: normalized
// file path, CWE category, and normalized snippet (or message when the tool
// gave no snippet). Line numbers are excluded; they drift between runs and
// across scanners.
func Fingerprint(filePath, category, snippetOrLine string) string {
	parts := []string{
		strings.ToLower(normalizePath(filePath)),
		strings.ToUpper(strings.TrimSpace(category)),
		strings.ToLower(collapseSpace(snippetOrLine)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func normalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "./")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func (l Location) String() string {
	if l.LineEnd > l.LineStart {
		return fmt.Sprintf("%s:%d-%d", l.FilePath, l.LineStart, l.LineEnd)
	}
	return fmt.Sprintf("%s:%d", l.FilePath, l.LineStart)
}
