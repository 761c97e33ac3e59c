package findings

import (
	"reflect"
	"testing"

	"github.com/jpoley/scantriage/models"
)

func overlapFindings() []models.UnifiedFinding {
	n := &Normalizer{}
	a, _ := n.Normalize(models.RawFinding{
		Tool: "scanner-a", RuleID: "sqli-001", FilePath: "app.py", Line: 42,
		RawSeverity: "MEDIUM", Message: "SQL injection",
		Snippet: `cursor.execute(query + user_input)`,
	})
	b, _ := n.Normalize(models.RawFinding{
		Tool: "scanner-b", RuleID: "python-sql-injection", FilePath: "app.py", Line: 43,
		RawSeverity: "HIGH", Message: "Possible SQL injection via string concatenation",
		Snippet: `cursor.execute(query + user_input)`,
	})
	c, _ := n.Normalize(models.RawFinding{
		Tool: "scanner-a", RuleID: "xss-010", FilePath: "views.py", Line: 7,
		RawSeverity: "LOW", Message: "Reflected XSS",
		Snippet: `return "<div>" + request.args["q"] + "</div>"`,
	})
	return []models.UnifiedFinding{a, b, c}
}

func TestTwoScannerOverlapMergesIntoOne(t *testing.T) {
	fs := overlapFindings()
	set := NewSet()
	for _, f := range fs {
		set.Add(f)
	}

	merged := set.Findings()
	if len(merged) != 2 {
		t.Fatalf("expected the two SQL injection reports to merge, got %d findings", len(merged))
	}

	sqli := merged[0] // highest severity sorts first
	if len(sqli.Sources) != 2 {
		t.Fatalf("merged finding should carry both sources, got %+v", sqli.Sources)
	}
	if sqli.Severity != models.SeverityHigh {
		t.Fatalf("merged severity must be the max of the inputs, got %s", sqli.Severity)
	}
	// Scanner B reported higher severity, so its line anchoring wins.
	if sqli.Location.LineStart != 43 {
		t.Fatalf("higher-severity source should correct the location, got line %d", sqli.Location.LineStart)
	}
}

func TestMergeCommutative(t *testing.T) {
	fs := overlapFindings()
	perms := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	var want []models.UnifiedFinding
	for i, perm := range perms {
		set := NewSet()
		for _, idx := range perm {
			set.Add(fs[idx])
		}
		got := set.Findings()
		if i == 0 {
			want = got
			continue
		}
		if len(got) != len(want) {
			t.Fatalf("perm %v: set size changed: %d vs %d", perm, len(got), len(want))
		}
		for j := range got {
			if got[j].Fingerprint != want[j].Fingerprint ||
				got[j].Severity != want[j].Severity ||
				!reflect.DeepEqual(got[j].Sources, want[j].Sources) {
				t.Fatalf("perm %v: fingerprints/severities/sources differ at %d:\n%+v\n%+v",
					perm, j, got[j], want[j])
			}
		}
	}
}

func TestNoDuplicateFingerprints(t *testing.T) {
	fs := overlapFindings()
	set := NewSet()
	// Add everything twice; the invariant must still hold.
	for _, f := range append(fs, fs...) {
		set.Add(f)
	}
	seen := map[string]bool{}
	for _, f := range set.Findings() {
		if seen[f.Fingerprint] {
			t.Fatalf("duplicate fingerprint in result set: %s", f.Fingerprint)
		}
		seen[f.Fingerprint] = true
	}
}

func TestLocationTieKeepsFirstSeen(t *testing.T) {
	n := &Normalizer{}
	a, _ := n.Normalize(models.RawFinding{Tool: "a", RuleID: "sqli-001", FilePath: "app.py",
		Line: 10, RawSeverity: "HIGH", Snippet: "x"})
	b, _ := n.Normalize(models.RawFinding{Tool: "b", RuleID: "sqli-002", FilePath: "app.py",
		Line: 12, RawSeverity: "HIGH", Snippet: "x"})

	set := NewSet()
	set.Add(a)
	set.Add(b)
	got := set.Findings()
	if len(got) != 1 {
		t.Fatalf("expected one merged finding, got %d", len(got))
	}
	if got[0].Location.LineStart != 10 {
		t.Fatalf("equal severity must keep the first-seen location, got line %d", got[0].Location.LineStart)
	}
}

func TestFilterSeverityFloor(t *testing.T) {
	in := []models.UnifiedFinding{
		{Fingerprint: "a", Severity: models.SeverityCritical},
		{Fingerprint: "b", Severity: models.SeverityMedium},
		{Fingerprint: "c", Severity: models.SeverityInfo},
	}
	out := FilterSeverityFloor(in, models.SeverityMedium)
	if len(out) != 2 {
		t.Fatalf("expected floor to drop INFO finding, got %d", len(out))
	}
	if got := FilterSeverityFloor(in, ""); len(got) != 3 {
		t.Fatalf("empty floor must keep everything")
	}
}
