package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jpoley/scantriage/internal/orchestrator"
	"github.com/jpoley/scantriage/models"
)

// RecordRun persists a completed scan-and-triage run: the run header, one
// row per adapter, and one row per triaged finding. Returns the run ID.
func RecordRun(ctx context.Context, db DB, target string, startedAt time.Time, res *orchestrator.Result, triaged []models.TriagedFinding) (int64, error) {
	now := time.Now().UTC()
	run := models.ScanRun{
		Target:      target,
		Status:      res.Status,
		StartedAt:   startedAt.UTC(),
		CompletedAt: &now,
	}
	for _, f := range res.Findings {
		run.FindingsTotal++
		switch f.Severity {
		case models.SeverityCritical:
			run.FindingsCritical++
		case models.SeverityHigh:
			run.FindingsHigh++
		case models.SeverityMedium:
			run.FindingsMedium++
		case models.SeverityLow:
			run.FindingsLow++
		}
	}

	runID, err := db.Insert(ctx, "scan_runs", run)
	if err != nil {
		return 0, fmt.Errorf("recording scan run: %w", err)
	}

	outcomes := make([]orchestrator.AdapterOutcome, 0,
		len(res.Ran)+len(res.Skipped)+len(res.Failed))
	outcomes = append(outcomes, res.Ran...)
	outcomes = append(outcomes, res.Skipped...)
	outcomes = append(outcomes, res.Failed...)
	for _, o := range outcomes {
		row := models.ScanRunAdapter{
			ScanRunID:     runID,
			AdapterName:   o.Name,
			Status:        o.Status,
			Reason:        o.Reason,
			FindingsCount: o.FindingsCount,
			DurationMs:    o.Duration.Milliseconds(),
		}
		if _, err := db.Insert(ctx, "scan_run_adapters", row); err != nil {
			return 0, fmt.Errorf("recording adapter outcome %s: %w", o.Name, err)
		}
	}

	for _, tf := range triaged {
		row, err := storedFinding(runID, tf)
		if err != nil {
			return 0, err
		}
		if _, err := db.Insert(ctx, "findings", row); err != nil {
			return 0, fmt.Errorf("recording finding %s: %w", tf.Finding.Fingerprint, err)
		}
	}
	return runID, nil
}

func storedFinding(runID int64, tf models.TriagedFinding) (models.StoredFinding, error) {
	sources, err := json.Marshal(tf.Finding.SortedSources())
	if err != nil {
		return models.StoredFinding{}, fmt.Errorf("encoding sources for %s: %w", tf.Finding.Fingerprint, err)
	}
	return models.StoredFinding{
		ScanRunID:   runID,
		Fingerprint: tf.Finding.Fingerprint,
		Category:    tf.Finding.Category,
		Severity:    string(tf.Finding.Severity),
		FilePath:    tf.Finding.Location.FilePath,
		LineStart:   tf.Finding.Location.LineStart,
		LineEnd:     tf.Finding.Location.LineEnd,
		Message:     tf.Finding.Message,
		Sources:     string(sources),
		Verdict:     string(tf.Classification.Verdict),
		Classifier:  tf.Classification.Classifier,
		Confidence:  tf.Classification.Confidence,
		RiskScore:   tf.Risk.Value,
		ClusterID:   tf.ClusterID,
	}, nil
}

// RecentRuns returns the most recent scan runs for a target, newest first.
// An empty target returns runs across all targets.
func RecentRuns(ctx context.Context, db DB, target string, limit int) ([]models.ScanRun, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []models.ScanRun
	var err error
	if target == "" {
		err = db.Select(ctx, &runs,
			`SELECT * FROM scan_runs ORDER BY started_at DESC LIMIT ?`, limit)
	} else {
		err = db.Select(ctx, &runs,
			`SELECT * FROM scan_runs WHERE target = ? ORDER BY started_at DESC LIMIT ?`, target, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}
	return runs, nil
}

// FindingHistory returns every stored occurrence of a fingerprint across
// runs, newest first. Useful for spotting findings that keep coming back.
func FindingHistory(ctx context.Context, db DB, fingerprint string) ([]models.StoredFinding, error) {
	var rows []models.StoredFinding
	err := db.Select(ctx, &rows,
		`SELECT * FROM findings WHERE fingerprint = ? ORDER BY id DESC`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("loading finding history: %w", err)
	}
	return rows, nil
}
