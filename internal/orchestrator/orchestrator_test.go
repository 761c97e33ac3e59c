package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jpoley/scantriage/internal/adapter"
	"github.com/jpoley/scantriage/models"
)

// fakeAdapter is a scripted Adapter for orchestration tests.
type fakeAdapter struct {
	name      string
	available bool
	findings  []models.RawFinding
	err       error
	delay     time.Duration
	panics    bool
}

func (f *fakeAdapter) Name() string                         { return f.name }
func (f *fakeAdapter) Version(ctx context.Context) string   { return "1.0.0" }
func (f *fakeAdapter) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeAdapter) InstallInstructions() string          { return "install " + f.name }

func (f *fakeAdapter) Scan(ctx context.Context, opts adapter.ScanOptions) ([]models.RawFinding, error) {
	if f.panics {
		panic("scripted crash")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.findings, f.err
}

func raw(tool, rule, file, snippet, sev string, line int) models.RawFinding {
	return models.RawFinding{
		Tool: tool, RuleID: rule, FilePath: file, Line: line,
		RawSeverity: sev, Message: rule, Snippet: snippet,
	}
}

func TestRunMergesOverlap(t *testing.T) {
	a := &fakeAdapter{name: "scanner-a", available: true, findings: []models.RawFinding{
		raw("scanner-a", "sqli-001", "app.py", "q = build(uid)", "MEDIUM", 42),
	}}
	b := &fakeAdapter{name: "scanner-b", available: true, findings: []models.RawFinding{
		raw("scanner-b", "python-sql-injection", "app.py", "q = build(uid)", "HIGH", 43),
	}}

	o := New(Config{AdapterTimeout: time.Second})
	res, err := o.Run(context.Background(), t.TempDir(), []adapter.Adapter{a, b})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != "completed" {
		t.Fatalf("expected completed status, got %q", res.Status)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("expected the overlapping reports to merge into 1 finding, got %d", len(res.Findings))
	}
	f := res.Findings[0]
	if len(f.Sources) != 2 {
		t.Fatalf("expected both sources on the merged finding, got %+v", f.Sources)
	}
	if f.Severity != models.SeverityHigh {
		t.Fatalf("merged severity should be HIGH, got %s", f.Severity)
	}
}

func TestRunGracefulDegradation(t *testing.T) {
	cases := []struct {
		name string
		bad  *fakeAdapter
		why  string
	}{
		{"failing adapter", &fakeAdapter{name: "broken", available: true, err: errors.New("boom")}, "boom"},
		{"timing out adapter", &fakeAdapter{name: "slow", available: true, delay: time.Second}, "timeout"},
		{"panicking adapter", &fakeAdapter{name: "crashy", available: true, panics: true}, "panic"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			good := &fakeAdapter{name: "good", available: true, findings: []models.RawFinding{
				raw("good", "xss-1", "views.py", "echo(input)", "HIGH", 7),
			}}
			good2 := &fakeAdapter{name: "good2", available: true, findings: []models.RawFinding{
				raw("good2", "sqli-1", "db.py", "exec(q)", "LOW", 3),
			}}

			o := New(Config{AdapterTimeout: 50 * time.Millisecond})
			res, err := o.Run(context.Background(), t.TempDir(), []adapter.Adapter{good, tc.bad, good2})
			if err != nil {
				t.Fatalf("Run must not fail because one adapter did: %v", err)
			}
			if res.Status != "partial" {
				t.Fatalf("expected partial status, got %q", res.Status)
			}
			if len(res.Failed) != 1 {
				t.Fatalf("expected exactly one failed adapter, got %+v", res.Failed)
			}
			if got := res.Failed[0].Reason; tc.why == "timeout" && got != "timeout" {
				t.Fatalf("expected timeout reason, got %q", got)
			}
			if len(res.Findings) != 2 {
				t.Fatalf("findings from the healthy adapters must survive, got %d", len(res.Findings))
			}
		})
	}
}

func TestRunSkipsUnavailableAdapter(t *testing.T) {
	missing := &fakeAdapter{name: "notinstalled", available: false}
	good := &fakeAdapter{name: "good", available: true, findings: []models.RawFinding{
		raw("good", "sqli-1", "app.py", "exec(q)", "HIGH", 1),
	}}

	o := New(Config{AdapterTimeout: time.Second})
	res, err := o.Run(context.Background(), t.TempDir(), []adapter.Adapter{missing, good})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Name != "notinstalled" {
		t.Fatalf("expected the missing tool under skipped, got %+v", res.Skipped)
	}
	if res.Skipped[0].Reason == "" {
		t.Fatalf("skip reason should carry install instructions")
	}
	if len(res.Findings) != 1 {
		t.Fatalf("findings from the installed adapter must be present, got %d", len(res.Findings))
	}
	if res.Status != "partial" {
		t.Fatalf("expected partial status, got %q", res.Status)
	}
}

func TestRunAppliesSeverityFloor(t *testing.T) {
	a := &fakeAdapter{name: "a", available: true, findings: []models.RawFinding{
		raw("a", "sqli-1", "app.py", "exec(q)", "CRITICAL", 1),
		raw("a", "style-1", "app.py", "minor nit", "INFO", 9),
	}}

	o := New(Config{AdapterTimeout: time.Second, SeverityFloor: models.SeverityMedium})
	res, err := o.Run(context.Background(), t.TempDir(), []adapter.Adapter{a})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Findings) != 1 || res.Findings[0].Severity != models.SeverityCritical {
		t.Fatalf("severity floor should drop the INFO finding, got %+v", res.Findings)
	}
}

func TestRunDeterministicAcrossCompletionOrder(t *testing.T) {
	// Uneven delays shuffle completion order; the merged output must not care.
	mk := func(d1, d2 time.Duration) *Result {
		a := &fakeAdapter{name: "a", available: true, delay: d1, findings: []models.RawFinding{
			raw("a", "sqli-001", "app.py", "q+uid", "MEDIUM", 42),
			raw("a", "xss-1", "views.py", "echo(x)", "LOW", 5),
		}}
		b := &fakeAdapter{name: "b", available: true, delay: d2, findings: []models.RawFinding{
			raw("b", "python-sql-injection", "app.py", "q+uid", "HIGH", 44),
		}}
		o := New(Config{AdapterTimeout: time.Second})
		res, err := o.Run(context.Background(), t.TempDir(), []adapter.Adapter{a, b})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}

	r1 := mk(30*time.Millisecond, 0)
	r2 := mk(0, 30*time.Millisecond)

	if len(r1.Findings) != len(r2.Findings) {
		t.Fatalf("finding count depends on completion order: %d vs %d", len(r1.Findings), len(r2.Findings))
	}
	for i := range r1.Findings {
		f1, f2 := r1.Findings[i], r2.Findings[i]
		if f1.Fingerprint != f2.Fingerprint || f1.Severity != f2.Severity || len(f1.Sources) != len(f2.Sources) {
			t.Fatalf("merged output depends on completion order:\n%+v\n%+v", f1, f2)
		}
	}
}
