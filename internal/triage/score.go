package triage

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/jpoley/scantriage/models"
	"go.yaml.in/yaml/v3"
)

//go:embed tables.yaml
var tablesYAML []byte

// ScoringTables holds the Impact/Exploitability/DetectionTime lookup data.
// Loaded from embedded YAML by default; callers may substitute tuned tables.
type ScoringTables struct {
	Impact           map[string]float64 `yaml:"impact"`
	Exploitability   map[string]float64 `yaml:"exploitability"`
	DetectionTime    map[string]float64 `yaml:"detection_time"`
	MinDetectionTime float64            `yaml:"min_detection_time"`
}

// DefaultTables parses the embedded scoring tables.
func DefaultTables() (*ScoringTables, error) {
	var t ScoringTables
	if err := yaml.Unmarshal(tablesYAML, &t); err != nil {
		return nil, fmt.Errorf("parsing scoring tables: %w", err)
	}
	if t.MinDetectionTime <= 0 {
		t.MinDetectionTime = 1.0
	}
	return &t, nil
}

func lookup(m map[string]float64, key string, fallback float64) float64 {
	if v, ok := m[strings.ToUpper(strings.TrimSpace(key))]; ok && v > 0 {
		return v
	}
	if v, ok := m["default"]; ok && v > 0 {
		return v
	}
	return fallback
}

// Score computes (Impact × Exploitability) / DetectionTime for a finding.
// Every finding gets a score regardless of its triage verdict; DetectionTime
// is floored so the result is always finite and positive.
func (t *ScoringTables) Score(f models.UnifiedFinding) models.RiskScore {
	impact := lookup(t.Impact, string(f.Severity), 1)
	exploit := lookup(t.Exploitability, f.Category, 1)
	det := lookup(t.DetectionTime, f.Category, t.MinDetectionTime)
	if det < t.MinDetectionTime {
		det = t.MinDetectionTime
	}
	return models.RiskScore{
		Value:          impact * exploit / det,
		Impact:         impact,
		Exploitability: exploit,
		DetectionTime:  det,
	}
}
