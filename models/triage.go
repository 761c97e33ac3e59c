package models

// Verdict is the triage outcome for a single finding.
type Verdict string

const (
	VerdictTruePositive  Verdict = "true_positive"
	VerdictFalsePositive Verdict = "false_positive"
	VerdictNeedsReview   Verdict = "needs_review"
)

// Classification records the verdict for a finding and which classifier
// produced it.
type Classification struct {
	Verdict    Verdict `json:"verdict"`
	Confidence float64 `json:"confidence"` // [0,1]
	Classifier string  `json:"classifier"`
}

// RiskScore is the computed priority of a finding together with the inputs
// that produced it, so scoring stays auditable.
type RiskScore struct {
	Value          float64 `json:"value"`
	Impact         float64 `json:"impact"`
	Exploitability float64 `json:"exploitability"`
	DetectionTime  float64 `json:"detection_time"`
}

// Cluster groups related findings by fingerprint. Membership is many-to-one:
// a finding belongs to at most one cluster per clustering run.
type Cluster struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"` // "file" or "pattern"
	Category     string   `json:"category"`
	Signature    string   `json:"signature"` // file path or helper-function name
	Fingerprints []string `json:"fingerprints"`
}

// TriagedFinding is a UnifiedFinding with triage results attached. The
// underlying finding keeps its identity across re-triage runs; only the
// attached data is recomputed.
type TriagedFinding struct {
	Finding        UnifiedFinding `json:"finding"`
	Classification Classification `json:"classification"`
	Risk           RiskScore      `json:"risk"`
	ClusterID      string         `json:"cluster_id,omitempty"`
	Explanation    string         `json:"explanation"`
}
