package triage

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/jpoley/scantriage/models"
)

// Engine runs the classification, scoring, clustering and explanation passes
// over a deduplicated finding set. Triage is deterministic: the same input
// and tables always produce identical output.
type Engine struct {
	classifiers []classifierRule
	tables      *ScoringTables
	fallback    Classifier
}

// NewEngine builds an Engine with the built-in classifiers. tables may be nil
// to use the embedded defaults.
func NewEngine(tables *ScoringTables) (*Engine, error) {
	if tables == nil {
		var err error
		tables, err = DefaultTables()
		if err != nil {
			return nil, err
		}
	}
	return &Engine{
		classifiers: defaultClassifiers(),
		tables:      tables,
		fallback:    defaultClassifier{},
	}, nil
}

// Result is the full triage output: the per-finding results plus the
// clusters discovered over the whole set.
type Result struct {
	Findings []models.TriagedFinding `json:"findings"`
	Clusters []models.Cluster        `json:"clusters"`
}

// Triage classifies, scores and clusters the finding set. Every finding gets
// a risk score regardless of verdict; downstream consumers filter on verdict,
// not on absence of score.
func (e *Engine) Triage(in []models.UnifiedFinding) *Result {
	triaged := make([]models.TriagedFinding, 0, len(in))
	for _, f := range in {
		cls := e.classify(f)
		tf := models.TriagedFinding{
			Finding:        f,
			Classification: cls,
			Risk:           e.tables.Score(f),
		}
		tf.Explanation = explain(f, cls)
		triaged = append(triaged, tf)
	}

	clusters := clusterFindings(triaged)

	sort.SliceStable(triaged, func(i, j int) bool {
		if triaged[i].Risk.Value != triaged[j].Risk.Value {
			return triaged[i].Risk.Value > triaged[j].Risk.Value
		}
		return triaged[i].Finding.Fingerprint < triaged[j].Finding.Fingerprint
	})

	return &Result{Findings: triaged, Clusters: clusters}
}

// classify dispatches to the first classifier whose predicate matches the
// finding's category. A classifier failure on one finding falls back to the
// default verdict for that finding instead of aborting the rest.
func (e *Engine) classify(f models.UnifiedFinding) models.Classification {
	for _, rule := range e.classifiers {
		if !rule.matches(f.Category) {
			continue
		}
		cls, err := rule.classifier.Classify(f)
		if err != nil {
			slog.Warn("Classifier failed, falling back to default",
				"classifier", rule.classifier.Name(),
				"fingerprint", f.Fingerprint,
				"error", err,
			)
			break
		}
		return cls
	}
	cls, err := e.fallback.Classify(f)
	if err != nil {
		// The default classifier cannot fail, but keep the result sane if
		// a substituted one does.
		return models.Classification{
			Verdict:    models.VerdictNeedsReview,
			Confidence: 0,
			Classifier: fmt.Sprintf("%s (errored)", e.fallback.Name()),
		}
	}
	return cls
}

// TruePositives filters a triage result down to the findings handed to the
// fix-generation collaborator.
func TruePositives(res *Result) []models.TriagedFinding {
	out := make([]models.TriagedFinding, 0, len(res.Findings))
	for _, tf := range res.Findings {
		if tf.Classification.Verdict == models.VerdictTruePositive {
			out = append(out, tf)
		}
	}
	return out
}
