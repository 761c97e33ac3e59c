package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jpoley/scantriage/internal/adapter"
	"github.com/jpoley/scantriage/internal/config"
	"github.com/jpoley/scantriage/internal/database"
	"github.com/jpoley/scantriage/internal/discovery"
	"github.com/jpoley/scantriage/internal/orchestrator"
	"github.com/jpoley/scantriage/internal/snapshot"
	"github.com/jpoley/scantriage/internal/target"
	"github.com/jpoley/scantriage/internal/triage"
	"github.com/jpoley/scantriage/models"
	"github.com/spf13/cobra"
)

var (
	scanAdapters      []string
	scanBranch        string
	scanSeverityFloor string
	scanSnapshotPath  string
	scanNoHistory     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <path|git-url>",
	Short: "Scan a local path or git repository and triage the findings",
	Long: `Runs the configured scanner adapters against the target, merges their
findings into one deduplicated set, and triages the result.

Examples:
  scantriage scan .
  scantriage scan /work/myapp --adapters semgrep,gitleaks
  scantriage scan https://github.com/example/myapp --branch develop`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanAdapters, "adapters", nil,
		"Comma-separated adapters to run (overrides config)")
	scanCmd.Flags().StringVar(&scanBranch, "branch", "",
		"Branch to scan when the target is a git URL")
	scanCmd.Flags().StringVar(&scanSeverityFloor, "severity-floor", "",
		"Drop findings below this severity (overrides config)")
	scanCmd.Flags().StringVar(&scanSnapshotPath, "snapshot", "",
		"Snapshot output path (default: snapshot dir from config)")
	scanCmd.Flags().BoolVar(&scanNoHistory, "no-history", false,
		"Skip recording the run in the scan-history database")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	startedAt := time.Now()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(scanAdapters) > 0 {
		cfg.Scan.Adapters = scanAdapters
	}
	if scanSeverityFloor != "" {
		cfg.Scan.SeverityFloor = scanSeverityFloor
	}
	if err := config.EnsureDirs(cfg); err != nil {
		return fmt.Errorf("preparing directories: %w", err)
	}

	tgt, err := target.Resolve(ctx, args[0], target.Options{
		Token:  os.Getenv("SCANTRIAGE_GIT_TOKEN"),
		Branch: scanBranch,
	})
	if err != nil {
		return fmt.Errorf("resolving target: %w", err)
	}
	defer tgt.Cleanup()

	if tgt.Commit != "" {
		slog.Info("Target cloned", "url", tgt.Name, "commit", tgt.Commit, "path", tgt.Path)
	}

	if err := config.ValidateScan(cfg, tgt.Path, adapter.Known()); err != nil {
		return err
	}

	loc := &discovery.Locator{
		LocalDirs: localToolDirs(cfg, tgt.Path),
		CacheDir:  cfg.Tools.CacheDir,
		Downloads: adapter.Downloads(),
	}
	adapters := adapter.Build(cfg.Scan.Adapters, loc)

	floor, _ := models.ParseSeverityFloor(cfg.Scan.SeverityFloor)
	orch := orchestrator.New(orchestrator.Config{
		AdapterTimeout: time.Duration(cfg.Scan.AdapterTimeoutSec) * time.Second,
		RunTimeout:     time.Duration(cfg.Scan.RunTimeoutSec) * time.Second,
		MaxWorkers:     cfg.Scan.MaxWorkers,
		IncludeGlobs:   cfg.Scan.IncludeGlobs,
		ExcludeGlobs:   cfg.Scan.ExcludeGlobs,
		SeverityFloor:  floor,
	})

	fmt.Printf("Scanning %s with %s\n\n", tgt.Name, strings.Join(cfg.Scan.Adapters, ", "))

	res, err := orch.Run(ctx, tgt.Path, adapters)
	if err != nil {
		return fmt.Errorf("running scan: %w", err)
	}

	eng, err := triage.NewEngine(nil)
	if err != nil {
		return fmt.Errorf("building triage engine: %w", err)
	}
	triaged := eng.Triage(res.Findings)

	snapPath := scanSnapshotPath
	if snapPath == "" {
		snapPath = snapshot.DefaultPath(cfg.Snapshot.Dir, tgt.Name)
	}
	snap := snapshot.New(tgt.Name, res, triaged.Findings, triaged.Clusters)
	if err := snap.Write(snapPath); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	if !scanNoHistory {
		db, err := database.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		runID, err := database.RecordRun(ctx, db, tgt.Name, startedAt, res, triaged.Findings)
		if err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
		slog.Info("Run recorded", "run_id", runID, "driver", db.Driver())
	}

	printScanSummary(res, triaged, snapPath)
	return nil
}

// localToolDirs lists project-local install locations checked after PATH.
func localToolDirs(cfg *config.Config, targetPath string) []string {
	dirs := []string{
		filepath.Join(targetPath, ".bin"),
		filepath.Join(targetPath, ".venv", "bin"),
		filepath.Join(targetPath, "node_modules", ".bin"),
	}
	if cfg.Tools.BinDir != "" {
		dirs = append([]string{cfg.Tools.BinDir}, dirs...)
	}
	return dirs
}

func printScanSummary(res *orchestrator.Result, triaged *triage.Result, snapPath string) {
	fmt.Println(headerStyle.Render("=== Scan Results ==="))
	fmt.Printf("Status: %s\n\n", res.Status)

	for _, o := range res.Ran {
		fmt.Printf("  %s %-10s %d findings (%.1fs)\n",
			successStyle.Render("[completed]"), o.Name, o.FindingsCount, o.Duration.Seconds())
	}
	for _, o := range res.Failed {
		fmt.Printf("  %s %-10s %s\n", failStyle.Render("[failed]"), o.Name, o.Reason)
	}
	for _, o := range res.Skipped {
		fmt.Printf("  %s %-10s %s\n", warnStyle.Render("[skipped]"), o.Name, o.Reason)
	}
	fmt.Println()

	bySeverity := map[string]int{}
	for _, f := range res.Findings {
		bySeverity[string(f.Severity)]++
	}
	for _, sev := range []string{"CRITICAL", "HIGH", "MEDIUM", "LOW", "INFO", "UNKNOWN"} {
		if n := bySeverity[sev]; n > 0 {
			fmt.Printf("  %s %d\n", severityStyle(sev).Render(fmt.Sprintf("%-9s", sev)), n)
		}
	}
	fmt.Printf("\n%d unique findings", len(res.Findings))
	if tp := len(triage.TruePositives(triaged)); tp > 0 {
		fmt.Printf(", %s", failStyle.Render(fmt.Sprintf("%d likely true positives", tp)))
	}
	if len(triaged.Clusters) > 0 {
		fmt.Printf(", %d clusters", len(triaged.Clusters))
	}
	fmt.Println()

	printTopFindings(triaged, 5)
	fmt.Println(dimStyle.Render("Snapshot written to " + snapPath))
}

func printTopFindings(triaged *triage.Result, limit int) {
	if len(triaged.Findings) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(headerStyle.Render("Top findings by risk:"))
	for i, tf := range triaged.Findings {
		if i >= limit {
			fmt.Println(dimStyle.Render(fmt.Sprintf("  ... and %d more", len(triaged.Findings)-limit)))
			break
		}
		fmt.Printf("  %5.1f %s %s %s\n",
			tf.Risk.Value,
			severityStyle(string(tf.Finding.Severity)).Render(string(tf.Finding.Severity)),
			tf.Finding.Location.String(),
			dimStyle.Render("["+string(tf.Classification.Verdict)+"]"),
		)
	}
	fmt.Println()
}
