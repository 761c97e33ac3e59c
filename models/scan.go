package models

import "time"

// ScanRun tracks one orchestration run against a target.
type ScanRun struct {
	ID               int64      `json:"id"                db:"id"`
	Target           string     `json:"target"            db:"target"`
	Status           string     `json:"status"            db:"status"` // running|completed|partial|failed
	FindingsTotal    int        `json:"findings_total"    db:"findings_total"`
	FindingsCritical int        `json:"findings_critical" db:"findings_critical"`
	FindingsHigh     int        `json:"findings_high"     db:"findings_high"`
	FindingsMedium   int        `json:"findings_medium"   db:"findings_medium"`
	FindingsLow      int        `json:"findings_low"      db:"findings_low"`
	StartedAt        time.Time  `json:"started_at"        db:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"      db:"completed_at"`
}

// ScanRunAdapter tracks one adapter's outcome within a run.
type ScanRunAdapter struct {
	ID            int64  `json:"id"             db:"id"`
	ScanRunID     int64  `json:"scan_run_id"    db:"scan_run_id"`
	AdapterName   string `json:"adapter_name"   db:"adapter_name"`
	Status        string `json:"status"         db:"status"` // completed|failed|skipped
	Reason        string `json:"reason"         db:"reason"`
	FindingsCount int    `json:"findings_count" db:"findings_count"`
	DurationMs    int64  `json:"duration_ms"    db:"duration_ms"`
}

// StoredFinding is the flattened row shape used for finding history.
type StoredFinding struct {
	ID          int64   `json:"id"           db:"id"`
	ScanRunID   int64   `json:"scan_run_id"  db:"scan_run_id"`
	Fingerprint string  `json:"fingerprint"  db:"fingerprint"`
	Category    string  `json:"category"     db:"category"`
	Severity    string  `json:"severity"     db:"severity"`
	FilePath    string  `json:"file_path"    db:"file_path"`
	LineStart   int     `json:"line_start"   db:"line_start"`
	LineEnd     int     `json:"line_end"     db:"line_end"`
	Message     string  `json:"message"      db:"message"`
	Sources     string  `json:"sources"      db:"sources"` // JSON array of tool:rule pairs
	Verdict     string  `json:"verdict"      db:"verdict"`
	Classifier  string  `json:"classifier"   db:"classifier"`
	Confidence  float64 `json:"confidence"   db:"confidence"`
	RiskScore   float64 `json:"risk_score"   db:"risk_score"`
	ClusterID   string  `json:"cluster_id"   db:"cluster_id"`
}
