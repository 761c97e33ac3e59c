package cmd

import (
	"fmt"

	"github.com/jpoley/scantriage/internal/orchestrator"
	"github.com/jpoley/scantriage/internal/snapshot"
	"github.com/jpoley/scantriage/internal/triage"
	"github.com/spf13/cobra"
)

var (
	triageSnapshotPath string
	triageOutPath      string
	triageExplain      bool
)

var triageCmd = &cobra.Command{
	Use:   "triage --snapshot <file>",
	Short: "Re-triage a stored scan snapshot without re-scanning",
	Long: `Loads the merged findings from a snapshot and reruns classification,
scoring and clustering. Finding identities are preserved, so verdicts can
be compared across triage runs.

Examples:
  scantriage triage --snapshot ~/.scantriage/snapshots/myapp.json
  scantriage triage --snapshot myapp.json --explain`,
	RunE: runTriage,
}

func init() {
	triageCmd.Flags().StringVar(&triageSnapshotPath, "snapshot", "",
		"Snapshot file to re-triage (required)")
	triageCmd.Flags().StringVar(&triageOutPath, "out", "",
		"Write the re-triaged snapshot here (default: overwrite in place)")
	triageCmd.Flags().BoolVar(&triageExplain, "explain", false,
		"Print the explanation for every finding")
	_ = triageCmd.MarkFlagRequired("snapshot")
}

func runTriage(cmd *cobra.Command, args []string) error {
	snap, err := snapshot.Load(triageSnapshotPath)
	if err != nil {
		return err
	}

	eng, err := triage.NewEngine(nil)
	if err != nil {
		return fmt.Errorf("building triage engine: %w", err)
	}
	triaged := eng.Triage(snap.Findings)

	out := triageOutPath
	if out == "" {
		out = triageSnapshotPath
	}
	updated := snapshot.New(snap.Target, &orchestrator.Result{
		Status:   snap.Status,
		Findings: snap.Findings,
		Ran:      snap.Ran,
		Skipped:  snap.Skipped,
		Failed:   snap.Failed,
	}, triaged.Findings, triaged.Clusters)
	if err := updated.Write(out); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	fmt.Printf("Re-triaged %d findings from %s (scanned %s)\n\n",
		len(snap.Findings), triageSnapshotPath, snap.CreatedAt.Format("2006-01-02 15:04"))

	verdicts := map[string]int{}
	for _, tf := range triaged.Findings {
		verdicts[string(tf.Classification.Verdict)]++
	}
	fmt.Printf("  %s %d\n", failStyle.Render("true_positive "), verdicts["true_positive"])
	fmt.Printf("  %s %d\n", warnStyle.Render("needs_review  "), verdicts["needs_review"])
	fmt.Printf("  %s %d\n", dimStyle.Render("false_positive"), verdicts["false_positive"])

	printTopFindings(triaged, 5)

	if triageExplain {
		for _, tf := range triaged.Findings {
			fmt.Println(tf.Explanation)
		}
		fmt.Println()
	}

	fmt.Println(dimStyle.Render("Snapshot written to " + out))
	return nil
}
