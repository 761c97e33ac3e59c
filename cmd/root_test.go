package cmd

import "testing"

func TestRootRegistersSubcommands(t *testing.T) {
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range []string{"scan", "triage", "doctor", "history"} {
		if !have[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootConfigFlag(t *testing.T) {
	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Fatal("persistent --config flag missing")
	}
}

func TestHistoryFlags(t *testing.T) {
	for _, name := range []string{"target", "limit", "fingerprint"} {
		if historyCmd.Flags().Lookup(name) == nil {
			t.Errorf("history flag %q missing", name)
		}
	}
}
