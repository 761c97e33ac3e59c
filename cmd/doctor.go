package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jpoley/scantriage/internal/adapter"
	"github.com/jpoley/scantriage/internal/config"
	"github.com/jpoley/scantriage/internal/database"
	"github.com/jpoley/scantriage/internal/discovery"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify scanner tools and system health",
	Long: `Checks that every configured scanner adapter can be located (PATH,
configured bin dir, or download cache) and that the history database is
reachable. Missing tools are reported with install instructions.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println(headerStyle.Render("=== scantriage doctor ==="))
	fmt.Println()

	fmt.Print("Database ............ ")
	db, err := database.New(cfg.Database)
	if err != nil {
		fmt.Println(failStyle.Render(fmt.Sprintf("FAIL (%s)", err)))
		allOK = false
	} else {
		if err := db.Ping(ctx); err != nil {
			fmt.Println(failStyle.Render(fmt.Sprintf("FAIL (%s)", err)))
			allOK = false
		} else {
			fmt.Printf("%s (%s)\n", successStyle.Render("OK"), db.Driver())
		}
		db.Close()
	}

	fmt.Print("Snapshot dir ........ ")
	fmt.Printf("%s (%s)\n", successStyle.Render("OK"), cfg.Snapshot.Dir)

	fmt.Println()
	fmt.Println("Scanner tools:")

	loc := &discovery.Locator{
		LocalDirs: localToolDirs(cfg, "."),
		CacheDir:  cfg.Tools.CacheDir,
		// Doctor only reports; it never triggers a download.
	}

	names := cfg.Scan.Adapters
	if len(names) == 0 {
		names = config.DefaultAdapters
	}
	for _, a := range adapter.Build(names, loc) {
		fmt.Printf("  %-10s ... ", a.Name())
		handle, err := loc.Locate(ctx, a.Name())
		if err != nil {
			var nf *discovery.NotFoundError
			if errors.As(err, &nf) {
				fmt.Println(warnStyle.Render("MISSING"))
				fmt.Println(dimStyle.Render("      " + a.InstallInstructions()))
			} else {
				fmt.Println(failStyle.Render(fmt.Sprintf("FAIL (%s)", err)))
			}
			allOK = false
			continue
		}
		version := a.Version(ctx)
		if version == "" {
			version = "unknown version"
		}
		fmt.Printf("%s (%s, %s, %s)\n",
			successStyle.Render("OK"), handle.Path, handle.Source, version)
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed."))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed; missing tools will be skipped during scans."))
	}
	return nil
}
