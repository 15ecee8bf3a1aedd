package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/guardian/internal/audit"
	"github.com/danielpatrickdp/guardian/internal/replay"
	"github.com/danielpatrickdp/guardian/internal/supervisor"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	dbPath := flag.String("db", "", "optional: compare replayed transitions against an audit db")
	verbose := flag.Bool("v", false, "print every step, not just steps with output")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--db path/to/guardian.db] [-v]")
		os.Exit(2)
	}

	f, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(2)
	}

	results, summary, err := replay.Replay(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(2)
	}

	printRun(f, results, summary, *verbose)

	exitCode := 0
	if mismatches := replay.Verify(f, results); len(mismatches) > 0 {
		fmt.Println("\nFixture expectations not met:")
		for _, m := range mismatches {
			fmt.Printf("  %s\n", m)
		}
		exitCode = 1
	}

	if *dbPath != "" {
		diverged, err := compareWithAuditLog(*dbPath, results)
		if err != nil {
			fmt.Fprintf(os.Stderr, "compare with audit log: %v\n", err)
			os.Exit(2)
		}
		if diverged {
			exitCode = 1
		}
	}

	os.Exit(exitCode)
}

// #endregion main

// #region output

func printRun(f *replay.Fixture, results []replay.StepResult, summary replay.Summary, verbose bool) {
	if f.Description != "" {
		fmt.Printf("%s\n\n", f.Description)
	}

	fmt.Printf("%-6s  %-10s  %-24s  %s\n", "Step", "Severity", "Transitions", "Commands")
	for _, r := range results {
		if !verbose && len(r.Transitions) == 0 && len(r.Commands) == 0 {
			continue
		}
		fmt.Printf("%-6d  %-10s  %-24s  %s\n",
			r.Step, r.Severity, formatTransitions(r.Transitions), formatCommands(r.Commands))
	}

	fmt.Printf("\nSummary: %d steps, %d transitions, %d kills, %d degrades, %d throttles, %d alerts, final state %s\n",
		summary.TotalSteps, summary.Transitions, summary.Kills, summary.Degrades,
		summary.Throttles, summary.Alerts, summary.FinalState)
}

func formatTransitions(transitions []supervisor.Transition) string {
	if len(transitions) == 0 {
		return "-"
	}
	out := ""
	for i, t := range transitions {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s->%s", t.From, t.To)
	}
	return out
}

func formatCommands(commands []replay.CommandResult) string {
	if len(commands) == 0 {
		return "-"
	}
	out := ""
	for i, c := range commands {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s %s", c.Kind, c.Target)
	}
	return out
}

// #endregion output

// #region audit-compare

// compareWithAuditLog checks that the replayed transition sequence matches
// the recorded one, oldest first. Reports true when the sequences diverge.
func compareWithAuditLog(dbPath string, results []replay.StepResult) (bool, error) {
	store, err := audit.NewStore(dbPath)
	if err != nil {
		return false, err
	}
	defer store.Close()

	recorded, err := store.RecentTransitions(1000)
	if err != nil {
		return false, err
	}
	// Store returns newest first.
	for i, j := 0, len(recorded)-1; i < j; i, j = i+1, j-1 {
		recorded[i], recorded[j] = recorded[j], recorded[i]
	}

	var replayed []string
	for _, r := range results {
		for _, t := range r.Transitions {
			replayed = append(replayed, fmt.Sprintf("%s->%s", t.From, t.To))
		}
	}

	fmt.Printf("\n%-6s  %-22s  %-22s  %s\n", "#", "Recorded", "Replayed", "Match")
	total := len(recorded)
	if len(replayed) > total {
		total = len(replayed)
	}

	diverged := false
	for i := 0; i < total; i++ {
		rec, rep := "-", "-"
		if i < len(recorded) {
			rec = fmt.Sprintf("%s->%s", recorded[i].FromState, recorded[i].ToState)
		}
		if i < len(replayed) {
			rep = replayed[i]
		}
		match := "OK"
		if rec != rep {
			match = "DIFF"
			diverged = true
		}
		fmt.Printf("%-6d  %-22s  %-22s  %s\n", i, rec, rep, match)
	}

	if diverged {
		fmt.Println("\nReplay diverged from the recorded transitions.")
	} else {
		fmt.Println("\nReplay matches the recorded transitions.")
	}
	return diverged, nil
}

// #endregion audit-compare
