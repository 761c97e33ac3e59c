package triage

import (
	"fmt"
	"strings"

	"github.com/jpoley/scantriage/models"
)

// categoryNames gives the plain-language name for the common CWE categories.
var categoryNames = map[string]string{
	"CWE-89":   "SQL injection",
	"CWE-78":   "OS command injection",
	"CWE-79":   "cross-site scripting",
	"CWE-22":   "path traversal",
	"CWE-798":  "hardcoded credential",
	"CWE-327":  "weak cryptography",
	"CWE-502":  "unsafe deserialization",
	"CWE-918":  "server-side request forgery",
	"CWE-611":  "XML external entity",
	"CWE-352":  "cross-site request forgery",
	"CWE-200":  "information exposure",
	"CWE-1000": "potential weakness",
}

var verdictPhrases = map[models.Verdict]string{
	models.VerdictTruePositive:  "assessed as a real issue",
	models.VerdictFalsePositive: "assessed as a likely false positive",
	models.VerdictNeedsReview:   "flagged for manual review",
}

// explain renders the plain-language description for one triaged finding.
// Purely templated: category + location + verdict, nothing generative.
func explain(f models.UnifiedFinding, c models.Classification) string {
	name := categoryNames[f.Category]
	if name == "" {
		name = "potential weakness"
	}
	tools := make([]string, 0, len(f.Sources))
	seen := map[string]bool{}
	for _, s := range f.Sources {
		if !seen[s.Tool] {
			tools = append(tools, s.Tool)
			seen[s.Tool] = true
		}
	}
	return fmt.Sprintf("A %s (%s) was reported at %s by %s, %s (classifier: %s, confidence %.0f%%).",
		name, f.Category, f.Location.String(), strings.Join(tools, ", "),
		verdictPhrases[c.Verdict], c.Classifier, c.Confidence*100)
}
