package findings

import (
	"sort"

	"github.com/jpoley/scantriage/models"
)

// Set accumulates UnifiedFindings under the no-duplicate invariant: adding a
// finding whose fingerprint already exists merges into the existing entry
// instead of inserting a second one.
//
// The merge is commutative (sources union, severity max, longest message),
// so the final set does not depend on adapter completion order.
type Set struct {
	byFP map[string]*models.UnifiedFinding
	// locWeight tracks the severity weight of the source that supplied the
	// current location, for the higher-severity-wins tie-break.
	locWeight map[string]int
}

func NewSet() *Set {
	return &Set{
		byFP:      make(map[string]*models.UnifiedFinding),
		locWeight: make(map[string]int),
	}
}

// Add inserts or merges one finding.
func (s *Set) Add(f models.UnifiedFinding) {
	existing, ok := s.byFP[f.Fingerprint]
	if !ok {
		cp := f
		cp.Sources = append([]models.Source(nil), f.Sources...)
		s.byFP[f.Fingerprint] = &cp
		s.locWeight[f.Fingerprint] = f.Severity.Weight()
		return
	}

	for _, src := range f.Sources {
		if !existing.HasSource(src) {
			existing.Sources = append(existing.Sources, src)
		}
	}
	existing.Severity = models.MaxSeverity(existing.Severity, f.Severity)

	// A strictly higher-severity source corrects the location; ties keep
	// the first-seen one.
	if f.Severity.Weight() > s.locWeight[f.Fingerprint] {
		existing.Location = f.Location
		s.locWeight[f.Fingerprint] = f.Severity.Weight()
	}

	if len(f.Message) > len(existing.Message) {
		existing.Message = f.Message
	}
	if existing.Snippet == "" {
		existing.Snippet = f.Snippet
	}
}

// Len returns the number of distinct fingerprints.
func (s *Set) Len() int { return len(s.byFP) }

// Findings returns the merged set ordered by severity (desc) then
// fingerprint, with sources sorted, so output is deterministic.
func (s *Set) Findings() []models.UnifiedFinding {
	out := make([]models.UnifiedFinding, 0, len(s.byFP))
	for _, f := range s.byFP {
		cp := *f
		cp.Sources = cp.SortedSources()
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if wi, wj := out[i].Severity.Weight(), out[j].Severity.Weight(); wi != wj {
			return wi > wj
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}

// FilterSeverityFloor drops findings below the given level. The zero value
// keeps everything.
func FilterSeverityFloor(in []models.UnifiedFinding, floor models.SeverityLevel) []models.UnifiedFinding {
	if floor == "" || floor == models.SeverityUnknown {
		return in
	}
	out := make([]models.UnifiedFinding, 0, len(in))
	for _, f := range in {
		if f.Severity.Weight() >= floor.Weight() {
			out = append(out, f)
		}
	}
	return out
}
