package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpoley/scantriage/internal/adapter"
	"github.com/jpoley/scantriage/internal/findings"
	"github.com/jpoley/scantriage/models"
)

// Config parameterises one orchestration run.
type Config struct {
	// AdapterTimeout is the per-adapter subprocess budget.
	AdapterTimeout time.Duration
	// RunTimeout is the wall-clock budget for the whole run. Zero means the
	// run is bounded only by the sum of adapter timeouts.
	RunTimeout time.Duration
	// MaxWorkers caps the worker pool; the pool is sized to the adapter
	// count when smaller.
	MaxWorkers int

	IncludeGlobs []string
	ExcludeGlobs []string
	// SeverityFloor drops merged findings below this level ("" keeps all).
	SeverityFloor models.SeverityLevel
}

// AdapterOutcome records how one adapter fared within a run.
type AdapterOutcome struct {
	Name          string        `json:"name"`
	Status        string        `json:"status"` // completed|failed|skipped
	Reason        string        `json:"reason,omitempty"`
	FindingsCount int           `json:"findings_count"`
	Duration      time.Duration `json:"duration"`
}

// Result is the outcome of an orchestration run: the deduplicated finding
// set plus per-adapter bookkeeping.
type Result struct {
	// Status: "completed" (all adapters ran), "partial" (some failed or
	// were skipped), "failed" (none produced findings).
	Status   string                  `json:"status"`
	Findings []models.UnifiedFinding `json:"findings"`
	Ran      []AdapterOutcome        `json:"ran"`
	Skipped  []AdapterOutcome        `json:"skipped"`
	Failed   []AdapterOutcome        `json:"failed"`
}

// Orchestrator runs a set of adapters against a target and merges their
// findings. Adapter invocations share no mutable state; merging happens only
// after every worker has returned or timed out.
type Orchestrator struct {
	cfg Config
}

func New(cfg Config) *Orchestrator {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = 5 * time.Minute
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	return &Orchestrator{cfg: cfg}
}

type workerReport struct {
	outcome AdapterOutcome
	raw     []models.RawFinding
}

// Run executes the configured adapters against targetPath. One slow or
// crashing adapter never blocks or aborts the others; its failure is recorded
// in the result instead.
func (o *Orchestrator) Run(ctx context.Context, targetPath string, adapters []adapter.Adapter) (*Result, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters configured")
	}

	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	result := &Result{}

	// Availability filter: unavailable adapters are skipped, not errors.
	runnable := make([]adapter.Adapter, 0, len(adapters))
	for _, a := range adapters {
		if !a.IsAvailable(ctx) {
			slog.Warn("Adapter unavailable, skipping", "adapter", a.Name())
			result.Skipped = append(result.Skipped, AdapterOutcome{
				Name:   a.Name(),
				Status: "skipped",
				Reason: "tool not found; " + a.InstallInstructions(),
			})
			continue
		}
		runnable = append(runnable, a)
	}

	reports := o.runAll(ctx, targetPath, runnable)

	norm := &findings.Normalizer{
		TargetPath:   targetPath,
		IncludeGlobs: o.cfg.IncludeGlobs,
		ExcludeGlobs: o.cfg.ExcludeGlobs,
	}
	set := findings.NewSet()
	for _, rep := range reports {
		switch rep.outcome.Status {
		case "completed":
			count := 0
			for _, raw := range rep.raw {
				if uf, ok := norm.Normalize(raw); ok {
					set.Add(uf)
					count++
				}
			}
			rep.outcome.FindingsCount = count
			result.Ran = append(result.Ran, rep.outcome)
		default:
			result.Failed = append(result.Failed, rep.outcome)
		}
	}

	result.Findings = findings.FilterSeverityFloor(set.Findings(), o.cfg.SeverityFloor)

	switch {
	case len(result.Failed) == 0 && len(result.Skipped) == 0:
		result.Status = "completed"
	case len(result.Ran) > 0:
		result.Status = "partial"
	default:
		result.Status = "failed"
	}

	slog.Info("Orchestration finished",
		"status", result.Status,
		"findings", len(result.Findings),
		"ran", len(result.Ran),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
	)
	return result, nil
}

// runAll fans the adapters out over a bounded worker pool and joins on all of
// them before returning. No merging happens before the join point.
func (o *Orchestrator) runAll(ctx context.Context, targetPath string, adapters []adapter.Adapter) []workerReport {
	workers := o.cfg.MaxWorkers
	if len(adapters) < workers {
		workers = len(adapters)
	}

	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	reportCh := make(chan workerReport, len(adapters))
	var wg sync.WaitGroup

	for _, a := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			reportCh <- o.runOne(ctx, targetPath, a)
		}(a)
	}

	wg.Wait()
	close(reportCh)

	out := make([]workerReport, 0, len(adapters))
	for rep := range reportCh {
		out = append(out, rep)
	}
	return out
}

func (o *Orchestrator) runOne(ctx context.Context, targetPath string, a adapter.Adapter) (rep workerReport) {
	start := time.Now()
	rep.outcome = AdapterOutcome{Name: a.Name(), Status: "completed"}

	// A panicking adapter counts as a failed adapter, nothing more.
	defer func() {
		rep.outcome.Duration = time.Since(start)
		if r := recover(); r != nil {
			slog.Error("Adapter panicked", "adapter", a.Name(), "panic", r)
			rep.outcome.Status = "failed"
			rep.outcome.Reason = fmt.Sprintf("panic: %v", r)
			rep.raw = nil
		}
	}()

	scanCtx, cancel := context.WithTimeout(ctx, o.cfg.AdapterTimeout)
	defer cancel()

	slog.Info("Running adapter", "adapter", a.Name(), "target", targetPath)
	raw, err := a.Scan(scanCtx, adapter.ScanOptions{
		TargetPath:   targetPath,
		IncludeGlobs: o.cfg.IncludeGlobs,
		ExcludeGlobs: o.cfg.ExcludeGlobs,
	})
	if err != nil {
		rep.outcome.Status = "failed"
		// Partial output from a timed-out subprocess is discarded rather
		// than parsed as truncated JSON.
		rep.raw = nil
		if errors.Is(err, context.DeadlineExceeded) || scanCtx.Err() != nil {
			rep.outcome.Reason = "timeout"
		} else {
			rep.outcome.Reason = err.Error()
		}
		slog.Error("Adapter failed", "adapter", a.Name(), "reason", rep.outcome.Reason)
		return rep
	}

	rep.raw = raw
	slog.Info("Adapter completed",
		"adapter", a.Name(),
		"raw_findings", len(raw),
		"duration", fmt.Sprintf("%.1fs", time.Since(start).Seconds()),
	)
	return rep
}
