package findings

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jpoley/scantriage/models"
	"go.yaml.in/yaml/v3"
)

//go:embed categories.yaml
var categoriesYAML []byte

// categoryUnknown is the catch-all for rules no keyword maps to.
const categoryUnknown = "CWE-1000"

type categoryRule struct {
	CWE      string   `yaml:"cwe"`
	Keywords []string `yaml:"keywords"`
}

type categoryTable struct {
	Categories []categoryRule `yaml:"categories"`
}

var categories = mustLoadCategories()

func mustLoadCategories() []categoryRule {
	var tbl categoryTable
	if err := yaml.Unmarshal(categoriesYAML, &tbl); err != nil {
		panic(fmt.Sprintf("embedded categories.yaml is invalid: %v", err))
	}
	return tbl.Categories
}

// CategoryFor maps a scanner-native rule to a CWE category. Rules that
// already carry a CWE tag keep it; otherwise keyword matching on the rule id
// and message decides, first match wins.
func CategoryFor(raw models.RawFinding) string {
	haystack := strings.ToLower(raw.RuleID + " " + raw.Message)
	if cwe := extractCWE(haystack); cwe != "" {
		return cwe
	}
	for _, rule := range categories {
		for _, kw := range rule.Keywords {
			if strings.Contains(haystack, kw) {
				return rule.CWE
			}
		}
	}
	return categoryUnknown
}

func extractCWE(s string) string {
	idx := strings.Index(s, "cwe-")
	if idx < 0 {
		return ""
	}
	rest := s[idx+4:]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return ""
	}
	n, _ := strconv.Atoi(rest[:end])
	return fmt.Sprintf("CWE-%d", n)
}

// Normalizer converts RawFindings into UnifiedFindings relative to one
// scan target.
type Normalizer struct {
	// TargetPath is stripped from reported paths so fingerprints are stable
	// across checkout locations.
	TargetPath string
	// IncludeGlobs / ExcludeGlobs drop findings whose path falls outside
	// the configured filter, giving uniform behaviour across tools that
	// lack native filter flags.
	IncludeGlobs []string
	ExcludeGlobs []string
}

// Normalize converts one RawFinding. The second return value is false when
// the finding is filtered out by the path globs.
func (n *Normalizer) Normalize(raw models.RawFinding) (models.UnifiedFinding, bool) {
	relPath := n.relativePath(raw.FilePath)
	if !n.pathIncluded(relPath) {
		return models.UnifiedFinding{}, false
	}

	category := CategoryFor(raw)

	// The fingerprint anchors on snippet content when the tool reports one;
	// the message is the fallback anchor. Never the line number.
	anchor := raw.Snippet
	if strings.TrimSpace(anchor) == "" {
		anchor = raw.Message
	}

	endLine := raw.EndLine
	if endLine < raw.Line {
		endLine = raw.Line
	}

	return models.UnifiedFinding{
		Fingerprint: models.Fingerprint(relPath, category, anchor),
		Sources:     []models.Source{{Tool: raw.Tool, RuleID: raw.RuleID}},
		Category:    category,
		Location:    models.Location{FilePath: relPath, LineStart: raw.Line, LineEnd: endLine},
		Severity:    models.MapSeverity(raw.RawSeverity),
		Message:     strings.TrimSpace(raw.Message),
		Snippet:     strings.TrimSpace(raw.Snippet),
	}, true
}

func (n *Normalizer) relativePath(path string) string {
	p := strings.TrimSpace(strings.ReplaceAll(path, "\\", "/"))
	if p == "" {
		return ""
	}
	if n.TargetPath != "" {
		target := strings.ReplaceAll(n.TargetPath, "\\", "/")
		if rel, err := filepath.Rel(target, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = filepath.ToSlash(rel)
		}
	}
	return strings.TrimPrefix(p, "./")
}

// pathIncluded applies exclude globs first, then include globs (empty include
// list means everything is included). Patterns match against the full
// relative path and against the base name.
func (n *Normalizer) pathIncluded(relPath string) bool {
	if relPath == "" {
		return true
	}
	for _, g := range n.ExcludeGlobs {
		if globMatch(g, relPath) {
			return false
		}
	}
	if len(n.IncludeGlobs) == 0 {
		return true
	}
	for _, g := range n.IncludeGlobs {
		if globMatch(g, relPath) {
			return true
		}
	}
	return false
}

func globMatch(pattern, relPath string) bool {
	if ok, _ := filepath.Match(pattern, relPath); ok {
		return true
	}
	if ok, _ := filepath.Match(pattern, filepath.Base(relPath)); ok {
		return true
	}
	// Directory-style patterns ("vendor/", "**/testdata") match by segment.
	trimmed := strings.Trim(pattern, "*/")
	if trimmed != "" && trimmed != pattern {
		for _, seg := range strings.Split(relPath, "/") {
			if seg == trimmed {
				return true
			}
		}
	}
	return false
}
