package triage

import (
	"strings"

	"github.com/jpoley/scantriage/models"
)

// Classifier assigns a verdict to one finding.
type Classifier interface {
	Name() string
	Classify(f models.UnifiedFinding) (models.Classification, error)
}

// classifierRule pairs a category predicate with a classifier. Dispatch is an
// ordered scan over these pairs, first match wins; the default classifier
// sits last with an always-true predicate.
type classifierRule struct {
	matches    func(category string) bool
	classifier Classifier
}

func categoryIs(cwes ...string) func(string) bool {
	return func(category string) bool {
		for _, c := range cwes {
			if strings.EqualFold(category, c) {
				return true
			}
		}
		return false
	}
}

// defaultClassifiers returns the built-in dispatch order: specialized
// classifiers first, the severity-heuristic default last.
func defaultClassifiers() []classifierRule {
	return []classifierRule{
		{categoryIs("CWE-89", "CWE-78"), injectionClassifier{}},
		{categoryIs("CWE-22"), pathTraversalClassifier{}},
		{categoryIs("CWE-327"), weakCryptoClassifier{}},
		{categoryIs("CWE-798"), secretsClassifier{}},
		{categoryIs("CWE-79"), xssClassifier{}},
		{func(string) bool { return true }, defaultClassifier{}},
	}
}

// defaultClassifier assigns a baseline verdict from severity alone.
type defaultClassifier struct{}

func (defaultClassifier) Name() string { return "default" }

func (defaultClassifier) Classify(f models.UnifiedFinding) (models.Classification, error) {
	c := models.Classification{Classifier: "default"}
	switch f.Severity {
	case models.SeverityCritical, models.SeverityHigh:
		c.Verdict = models.VerdictTruePositive
		c.Confidence = 0.65
	case models.SeverityMedium:
		c.Verdict = models.VerdictNeedsReview
		c.Confidence = 0.5
	default:
		c.Verdict = models.VerdictNeedsReview
		c.Confidence = 0.4
	}
	// Multiple independent scanners agreeing raises confidence.
	if len(f.Sources) > 1 {
		c.Confidence = clamp01(c.Confidence + 0.15)
	}
	return c, nil
}

// injectionClassifier covers SQL and OS command injection.
type injectionClassifier struct{}

func (injectionClassifier) Name() string { return "injection" }

func (injectionClassifier) Classify(f models.UnifiedFinding) (models.Classification, error) {
	c := models.Classification{Classifier: "injection"}
	snippet := strings.ToLower(f.Snippet)
	switch {
	case strings.Contains(snippet, "prepare") || strings.Contains(snippet, "parameteriz") ||
		strings.Contains(snippet, "?;") || strings.Contains(snippet, "= ?"):
		// Parameterized statement in the matched code: likely a rule false fire.
		c.Verdict = models.VerdictFalsePositive
		c.Confidence = 0.7
	case strings.Contains(snippet, "+") || strings.Contains(snippet, "%s") ||
		strings.Contains(snippet, "format(") || strings.Contains(snippet, "sprintf") ||
		strings.Contains(snippet, "f\""):
		// String-built query or command.
		c.Verdict = models.VerdictTruePositive
		c.Confidence = 0.85
	default:
		c.Verdict = models.VerdictNeedsReview
		c.Confidence = 0.55
	}
	return c, nil
}

// pathTraversalClassifier covers CWE-22.
type pathTraversalClassifier struct{}

func (pathTraversalClassifier) Name() string { return "path-traversal" }

func (pathTraversalClassifier) Classify(f models.UnifiedFinding) (models.Classification, error) {
	c := models.Classification{Classifier: "path-traversal"}
	snippet := strings.ToLower(f.Snippet)
	switch {
	case strings.Contains(snippet, "filepath.clean") || strings.Contains(snippet, "securejoin") ||
		strings.Contains(snippet, "os.path.realpath") || strings.Contains(snippet, "basename"):
		c.Verdict = models.VerdictFalsePositive
		c.Confidence = 0.65
	case strings.Contains(snippet, "..") || strings.Contains(snippet, "request") ||
		strings.Contains(snippet, "params") || strings.Contains(snippet, "args"):
		c.Verdict = models.VerdictTruePositive
		c.Confidence = 0.8
	default:
		c.Verdict = models.VerdictNeedsReview
		c.Confidence = 0.5
	}
	return c, nil
}

// weakCryptoClassifier covers CWE-327.
type weakCryptoClassifier struct{}

func (weakCryptoClassifier) Name() string { return "weak-crypto" }

func (weakCryptoClassifier) Classify(f models.UnifiedFinding) (models.Classification, error) {
	c := models.Classification{Classifier: "weak-crypto"}
	if isNonProductionPath(f.Location.FilePath) {
		c.Verdict = models.VerdictFalsePositive
		c.Confidence = 0.7
		return c, nil
	}
	snippet := strings.ToLower(f.Snippet + " " + f.Message)
	if strings.Contains(snippet, "md5") || strings.Contains(snippet, "sha1") ||
		strings.Contains(snippet, "des") || strings.Contains(snippet, "ecb") {
		c.Verdict = models.VerdictTruePositive
		c.Confidence = 0.85
	} else {
		c.Verdict = models.VerdictNeedsReview
		c.Confidence = 0.55
	}
	return c, nil
}

// secretsClassifier covers hardcoded credentials (CWE-798).
type secretsClassifier struct{}

func (secretsClassifier) Name() string { return "secrets" }

func (secretsClassifier) Classify(f models.UnifiedFinding) (models.Classification, error) {
	c := models.Classification{Classifier: "secrets"}
	switch {
	case isNonProductionPath(f.Location.FilePath):
		// Placeholder credentials in fixtures and examples dominate the
		// false positives for secret scanners.
		c.Verdict = models.VerdictFalsePositive
		c.Confidence = 0.75
	case looksLikePlaceholder(f.Snippet):
		c.Verdict = models.VerdictFalsePositive
		c.Confidence = 0.7
	default:
		c.Verdict = models.VerdictTruePositive
		c.Confidence = 0.9
	}
	return c, nil
}

// xssClassifier covers CWE-79.
type xssClassifier struct{}

func (xssClassifier) Name() string { return "xss" }

func (xssClassifier) Classify(f models.UnifiedFinding) (models.Classification, error) {
	c := models.Classification{Classifier: "xss"}
	snippet := strings.ToLower(f.Snippet)
	switch {
	case strings.Contains(snippet, "escape") || strings.Contains(snippet, "sanitize") ||
		strings.Contains(snippet, "htmlspecialchars") || strings.Contains(snippet, "textcontent"):
		c.Verdict = models.VerdictFalsePositive
		c.Confidence = 0.65
	case strings.Contains(snippet, "innerhtml") || strings.Contains(snippet, "document.write") ||
		strings.Contains(snippet, "dangerouslysetinnerhtml") || strings.Contains(snippet, "request"):
		c.Verdict = models.VerdictTruePositive
		c.Confidence = 0.8
	default:
		c.Verdict = models.VerdictNeedsReview
		c.Confidence = 0.5
	}
	return c, nil
}

func isNonProductionPath(path string) bool {
	p := strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	markers := []string{"/test/", "/tests/", "/testdata/", "/fixtures/", "/fixture/",
		"/examples/", "/example/", "/docs/", "_test.", ".example", "readme"}
	for _, m := range markers {
		if strings.Contains(p, m) || strings.HasPrefix(p, strings.TrimPrefix(m, "/")) {
			return true
		}
	}
	return false
}

func looksLikePlaceholder(snippet string) bool {
	s := strings.ToLower(snippet)
	markers := []string{"example", "changeme", "change-me", "placeholder", "dummy",
		"xxxx", "your-", "<insert", "todo"}
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
