package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/lawnchairsociety/questsim/internal/database"
	"github.com/lawnchairsociety/questsim/internal/logger"
)

// reportStudies prints the best stored loadouts of each study.
func reportStudies(args []string) int {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := inputFlags(fs)
	top := fs.Int("top", 10, "Loadouts to print per study (0 prints all)")
	fs.Parse(args)

	w, err := load(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	db, err := database.FromConfig(w.cfg.Storage)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		return exitError
	}
	if db == nil {
		fmt.Fprintf(os.Stderr, "Error: report needs the sqlite or postgres checkpoint driver, got %q\n", w.cfg.Storage.Checkpoint)
		return exitError
	}
	defer db.Close()

	ids := fs.Args()
	if len(ids) == 0 {
		for _, entry := range w.docket.Studies {
			ids = append(ids, entry.ID)
		}
	}

	ctx := context.Background()
	for _, id := range ids {
		rows, err := db.LoadoutResults(ctx, id)
		if err != nil {
			logger.Error("Failed to load results", "study", id, "error", err)
			return exitError
		}
		printReport(id, rows, *top)
	}
	return exitOK
}

func printReport(studyID string, rows []database.LoadoutResult, top int) {
	fmt.Printf("=== %s ===\n", studyID)
	if len(rows) == 0 {
		fmt.Println("No stored results")
		fmt.Println()
		return
	}

	slices.SortStableFunc(rows, func(a, b database.LoadoutResult) int {
		if c := cmp.Compare(b.Cleared, a.Cleared); c != 0 {
			return c
		}
		return cmp.Compare(b.WinRate, a.WinRate)
	})
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}

	fmt.Printf("%-4s %-8s %-7s %-14s %s\n", "Rank", "Win%", "Cleared", "Dungeon", "Loadout")
	for i, r := range rows {
		fmt.Printf("%-4d %-8.2f %-7d %-14s %s\n", i+1, r.WinRate, r.Cleared, r.Dungeon, r.Loadout)
	}
	fmt.Println()
}
