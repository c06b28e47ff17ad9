// Package export writes study results as CSV files.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/lawnchairsociety/questsim/internal/study"
	"github.com/lawnchairsociety/questsim/internal/trial"
)

var loadoutHeader = []string{
	"run_id", "study_id", "index", "loadout", "dungeon", "cleared",
	"simulations", "wins", "losses", "timed_out", "win_rate",
	"avg_rounds", "min_rounds", "max_rounds", "avg_encounter_hp", "avg_loot", "miniboss_spawns",
}

var simulationHeader = []string{
	"trial_id", "index", "success", "timed_out", "rounds", "encounter_hp", "survivors", "loot",
}

// Writer is a concurrency-safe CSV writer that flushes after every row.
type Writer struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
}

func newWriter(out io.Writer, header []string) (*Writer, error) {
	w := &Writer{w: csv.NewWriter(out)}
	if c, ok := out.(io.Closer); ok {
		w.closer = c
	}
	if err := w.write(header); err != nil {
		return nil, err
	}
	return w, nil
}

// create opens path for writing, creating parent directories.
func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

func (w *Writer) write(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Write(record); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes and closes the underlying file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.w.Flush()
	err := w.w.Error()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// LoadoutWriter writes one row per evaluated loadout.
type LoadoutWriter struct{ *Writer }

// NewLoadoutWriter writes the header to out.
func NewLoadoutWriter(out io.Writer) (*LoadoutWriter, error) {
	w, err := newWriter(out, loadoutHeader)
	if err != nil {
		return nil, err
	}
	return &LoadoutWriter{w}, nil
}

// CreateLoadoutFile creates path and writes the header.
func CreateLoadoutFile(path string) (*LoadoutWriter, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewLoadoutWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *LoadoutWriter) WriteLoadout(_ context.Context, row study.LoadoutRow) error {
	s := row.Summary
	return w.write([]string{
		row.RunID,
		row.StudyID,
		strconv.FormatUint(row.Index, 10),
		row.LoadoutString(),
		row.Dungeon,
		strconv.Itoa(row.Cleared),
		strconv.Itoa(s.Simulations),
		strconv.Itoa(s.Wins),
		strconv.Itoa(s.Losses),
		strconv.Itoa(s.TimedOut),
		formatFloat(s.WinRate),
		formatFloat(s.AvgRounds),
		strconv.Itoa(s.MinRounds),
		strconv.Itoa(s.MaxRounds),
		formatFloat(s.AvgEncounterHP),
		formatFloat(s.AvgLoot),
		strconv.Itoa(s.MinibossSpawns),
	})
}

// SimulationWriter writes one row per simulation.
type SimulationWriter struct{ *Writer }

// NewSimulationWriter writes the header to out.
func NewSimulationWriter(out io.Writer) (*SimulationWriter, error) {
	w, err := newWriter(out, simulationHeader)
	if err != nil {
		return nil, err
	}
	return &SimulationWriter{w}, nil
}

// CreateSimulationFile creates path and writes the header.
func CreateSimulationFile(path string) (*SimulationWriter, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewSimulationWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *SimulationWriter) RecordSimulation(_ context.Context, rec trial.SimulationRecord) error {
	r := rec.Result
	return w.write([]string{
		rec.TrialID,
		strconv.Itoa(rec.Index),
		strconv.FormatBool(r.Success),
		strconv.FormatBool(r.TimedOut),
		strconv.Itoa(r.Rounds),
		formatFloat(r.EncounterHPRemaining()),
		strconv.Itoa(r.Survivors()),
		formatFloat(r.Loot),
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
