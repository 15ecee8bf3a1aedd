package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/guardian/internal/audit"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to guardian.db")
	last := flag.Int("last", 20, "show N most recent rows per log")
	table := flag.String("table", "all", "which log to show: actions | transitions | promotions | all")
	jsonOut := flag.Bool("json", false, "output as JSON instead of tables")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/guardian.db [--last N] [--table actions|transitions|promotions|all] [--json]")
		os.Exit(2)
	}

	store, err := audit.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(store, *table, *last, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(store *audit.Store, table string, last int, jsonOut bool) error {
	switch table {
	case "actions":
		return showActions(store, last, jsonOut)
	case "transitions":
		return showTransitions(store, last, jsonOut)
	case "promotions":
		return showPromotions(store, last, jsonOut)
	case "all":
		if err := showTransitions(store, last, jsonOut); err != nil {
			return err
		}
		if err := showActions(store, last, jsonOut); err != nil {
			return err
		}
		return showPromotions(store, last, jsonOut)
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

// #endregion main

// #region actions

func showActions(store *audit.Store, last int, jsonOut bool) error {
	entries, err := store.RecentActions(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(entries)
	}

	fmt.Printf("\nActions (%d):\n", len(entries))
	fmt.Printf("%-10s  %-16s  %-14s  %-24s  %s\n", "ID", "Kind", "Target", "Outcome", "Time")
	for _, e := range entries {
		fmt.Printf("%-10s  %-16s  %-14s  %-24s  %s\n",
			shortID(e.ID), e.Kind, e.Target, e.Outcome, e.CreatedAt.Format("2006-01-02T15:04:05Z"))
		if e.Reason != "" {
			fmt.Printf("            reason: %s\n", e.Reason)
		}
	}
	return nil
}

// #endregion actions

// #region transitions

func showTransitions(store *audit.Store, last int, jsonOut bool) error {
	entries, err := store.RecentTransitions(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(entries)
	}

	fmt.Printf("\nTransitions (%d):\n", len(entries))
	fmt.Printf("%-10s  %-10s  %-10s  %-10s  %s\n", "ID", "From", "To", "Severity", "Time")
	for _, e := range entries {
		fmt.Printf("%-10s  %-10s  %-10s  %-10s  %s\n",
			shortID(e.ID), e.FromState, e.ToState, e.Severity, e.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion transitions

// #region promotions

func showPromotions(store *audit.Store, last int, jsonOut bool) error {
	entries, err := store.RecentPromotions(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(entries)
	}

	fmt.Printf("\nPromotion decisions (%d):\n", len(entries))
	fmt.Printf("%-10s  %-12s  %-12s  %-20s  %s\n", "ID", "From", "To", "Manifest", "Time")
	for _, e := range entries {
		fmt.Printf("%-10s  %-12s  %-12s  %-20s  %s\n",
			shortID(e.ID), e.FromStage, e.ToStage, shortHash(e.ManifestHash),
			e.CreatedAt.Format("2006-01-02T15:04:05Z"))
		if e.Rationale != "" {
			fmt.Printf("            rationale: %s\n", e.Rationale)
		}
	}
	return nil
}

// #endregion promotions

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortHash(hash string) string {
	if len(hash) > 20 {
		return hash[:20]
	}
	return hash
}

// #endregion output
