package cmd

import (
	"context"
	"fmt"

	"github.com/jpoley/scantriage/internal/config"
	"github.com/jpoley/scantriage/internal/database"
	"github.com/spf13/cobra"
)

var (
	historyTarget      string
	historyLimit       int
	historyFingerprint string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent scan runs and finding recurrence",
	Long: `Reads the scan-history database and prints recent runs, newest first.
With --fingerprint, prints every recorded occurrence of that finding
across runs instead, which is useful for spotting findings that keep
coming back.

Examples:
  scantriage history
  scantriage history --target /work/myapp --limit 5
  scantriage history --fingerprint 3f1c9a...`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyTarget, "target", "",
		"Only show runs for this target")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10,
		"Maximum number of runs to show")
	historyCmd.Flags().StringVar(&historyFingerprint, "fingerprint", "",
		"Show the recorded history of one finding instead of run listings")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if historyFingerprint != "" {
		return printFindingHistory(ctx, db, historyFingerprint)
	}
	return printRecentRuns(ctx, db)
}

func printRecentRuns(ctx context.Context, db database.DB) error {
	runs, err := database.RecentRuns(ctx, db, historyTarget, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println(dimStyle.Render("No recorded runs. Run 'scantriage scan' first."))
		return nil
	}

	fmt.Println(headerStyle.Render("=== Recent Runs ==="))
	for _, run := range runs {
		style := successStyle
		switch run.Status {
		case "failed":
			style = failStyle
		case "partial":
			style = warnStyle
		}
		fmt.Printf("  #%-4d %s %s %4d findings", run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			style.Render(fmt.Sprintf("%-9s", run.Status)),
			run.FindingsTotal)
		if run.FindingsCritical+run.FindingsHigh > 0 {
			fmt.Printf(" (%s)", failStyle.Render(fmt.Sprintf("%d crit, %d high",
				run.FindingsCritical, run.FindingsHigh)))
		}
		fmt.Printf("  %s\n", dimStyle.Render(run.Target))
	}
	return nil
}

func printFindingHistory(ctx context.Context, db database.DB, fingerprint string) error {
	rows, err := database.FindingHistory(ctx, db, fingerprint)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println(dimStyle.Render("No recorded occurrences of that fingerprint."))
		return nil
	}

	latest := rows[0]
	fmt.Println(headerStyle.Render("=== Finding History ==="))
	fmt.Printf("%s %s %s\n\n",
		severityStyle(latest.Severity).Render(latest.Severity),
		latest.Category, latest.Message)
	for _, row := range rows {
		fmt.Printf("  run #%-4d %s %s:%d %s risk %.1f\n",
			row.ScanRunID,
			severityStyle(row.Severity).Render(fmt.Sprintf("%-8s", row.Severity)),
			row.FilePath, row.LineStart,
			dimStyle.Render("["+row.Verdict+"]"),
			row.RiskScore)
	}
	fmt.Printf("\nSeen in %d recorded runs.\n", len(rows))
	return nil
}
