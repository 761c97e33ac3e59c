package triage

import (
	"errors"
	"reflect"
	"testing"

	"github.com/jpoley/scantriage/models"
)

func mkFinding(path, category, severity, snippet string) models.UnifiedFinding {
	return models.UnifiedFinding{
		Fingerprint: models.Fingerprint(path, category, snippet),
		Sources:     []models.Source{{Tool: "semgrep", RuleID: "rule-1"}},
		Category:    category,
		Location:    models.Location{FilePath: path, LineStart: 10, LineEnd: 10},
		Severity:    models.SeverityLevel(severity),
		Message:     "finding in " + path,
		Snippet:     snippet,
	}
}

func TestTriageDispatchesSpecializedClassifiers(t *testing.T) {
	eng, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	in := []models.UnifiedFinding{
		mkFinding("app/db.go", "CWE-89", "HIGH", `query := "SELECT * FROM users WHERE id=" + id`),
		mkFinding("app/auth.go", "CWE-798", "HIGH", `apiKey := "sk_live_9f8e7d6c5b4a"`),
		mkFinding("app/misc.go", "CWE-1000", "HIGH", "something odd"),
	}
	res := eng.Triage(in)
	if len(res.Findings) != 3 {
		t.Fatalf("expected 3 triaged findings, got %d", len(res.Findings))
	}

	byPath := map[string]models.TriagedFinding{}
	for _, tf := range res.Findings {
		byPath[tf.Finding.Location.FilePath] = tf
	}

	tests := []struct {
		path       string
		classifier string
		verdict    models.Verdict
	}{
		{"app/db.go", "injection", models.VerdictTruePositive},
		{"app/auth.go", "secrets", models.VerdictTruePositive},
		{"app/misc.go", "default", models.VerdictTruePositive},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			tf, ok := byPath[tc.path]
			if !ok {
				t.Fatalf("no triaged finding for %s", tc.path)
			}
			if tf.Classification.Classifier != tc.classifier {
				t.Fatalf("classifier = %q, want %q", tf.Classification.Classifier, tc.classifier)
			}
			if tf.Classification.Verdict != tc.verdict {
				t.Fatalf("verdict = %q, want %q", tf.Classification.Verdict, tc.verdict)
			}
			if tf.Explanation == "" {
				t.Fatal("expected a non-empty explanation")
			}
		})
	}
}

type erroringClassifier struct{}

func (erroringClassifier) Name() string { return "broken" }

func (erroringClassifier) Classify(models.UnifiedFinding) (models.Classification, error) {
	return models.Classification{}, errors.New("boom")
}

func TestTriageClassifierErrorFallsBackToDefault(t *testing.T) {
	eng, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	eng.classifiers = []classifierRule{
		{categoryIs("CWE-89"), erroringClassifier{}},
		{func(string) bool { return true }, defaultClassifier{}},
	}

	in := []models.UnifiedFinding{
		mkFinding("app/db.go", "CWE-89", "HIGH", "unstable snippet"),
		mkFinding("app/other.go", "CWE-79", "MEDIUM", "document.write(input)"),
	}
	res := eng.Triage(in)

	for _, tf := range res.Findings {
		if tf.Finding.Category == "CWE-89" {
			if tf.Classification.Classifier != "default" {
				t.Fatalf("errored finding classifier = %q, want default fallback", tf.Classification.Classifier)
			}
			if tf.Classification.Verdict != models.VerdictTruePositive {
				t.Fatalf("HIGH default verdict = %q, want true_positive", tf.Classification.Verdict)
			}
		} else {
			// The failure must not leak into other findings.
			if tf.Classification.Classifier != "default" {
				t.Fatalf("unmatched finding classifier = %q, want default", tf.Classification.Classifier)
			}
			if tf.Classification.Verdict != models.VerdictNeedsReview {
				t.Fatalf("MEDIUM default verdict = %q, want needs_review", tf.Classification.Verdict)
			}
		}
	}
}

func TestTriageScoresEveryFinding(t *testing.T) {
	eng, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	in := []models.UnifiedFinding{
		// Parameterized query, classified false positive, still scored.
		mkFinding("app/db.go", "CWE-89", "LOW", `stmt, _ := db.Prepare("SELECT name FROM t WHERE id = ?")`),
		mkFinding("app/x.go", "CWE-1000", "UNKNOWN", ""),
	}
	res := eng.Triage(in)
	for _, tf := range res.Findings {
		if tf.Risk.Value <= 0 {
			t.Fatalf("finding %s has non-positive risk %v", tf.Finding.Fingerprint, tf.Risk.Value)
		}
	}
}

func TestTriageIdempotent(t *testing.T) {
	eng, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	in := []models.UnifiedFinding{
		mkFinding("a.go", "CWE-798", "HIGH", `token := "abc123"`),
		mkFinding("b.go", "CWE-89", "CRITICAL", `exec("SELECT " + col)`),
		mkFinding("c.go", "CWE-79", "MEDIUM", "innerHTML = data"),
	}

	first := eng.Triage(in)
	second := eng.Triage(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("re-triage of identical input produced a different result")
	}
}

func TestTriageOrdersByRiskDescending(t *testing.T) {
	eng, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	in := []models.UnifiedFinding{
		mkFinding("low.go", "CWE-1000", "INFO", "x"),
		mkFinding("high.go", "CWE-89", "CRITICAL", `run("rm " + arg)`),
		mkFinding("mid.go", "CWE-327", "MEDIUM", "md5.New()"),
	}
	res := eng.Triage(in)
	for i := 1; i < len(res.Findings); i++ {
		prev, cur := res.Findings[i-1], res.Findings[i]
		if prev.Risk.Value < cur.Risk.Value {
			t.Fatalf("findings out of order: %v before %v", prev.Risk.Value, cur.Risk.Value)
		}
		if prev.Risk.Value == cur.Risk.Value && prev.Finding.Fingerprint > cur.Finding.Fingerprint {
			t.Fatal("risk ties not broken by fingerprint")
		}
	}
}

func TestTruePositivesFilter(t *testing.T) {
	eng, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	in := []models.UnifiedFinding{
		mkFinding("prod/secret.go", "CWE-798", "HIGH", `password := "hunter2secret"`),
		mkFinding("tests/fixtures/secret.go", "CWE-798", "HIGH", `password := "hunter2secret"`),
	}
	res := eng.Triage(in)
	tps := TruePositives(res)
	if len(tps) != 1 {
		t.Fatalf("expected 1 true positive, got %d", len(tps))
	}
	if tps[0].Finding.Location.FilePath != "prod/secret.go" {
		t.Fatalf("wrong finding survived the filter: %s", tps[0].Finding.Location.FilePath)
	}
}
