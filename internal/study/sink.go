package study

import (
	"context"
	"errors"
	"strings"

	"github.com/lawnchairsociety/questsim/internal/trial"
)

// LoadoutRow is the aggregate result of one loadout.
type LoadoutRow struct {
	RunID   string
	StudyID string
	Index   uint64   // cursor position of the loadout
	Loadout []string // preset skills first
	Dungeon string   // hardest dungeon attempted
	Cleared int      // dungeons whose win rate reached the escalation threshold
	Summary trial.Summary
}

// LoadoutString joins the loadout for tabular output.
func (r LoadoutRow) LoadoutString() string {
	return strings.Join(r.Loadout, " / ")
}

// ResultSink receives one row per evaluated loadout.
type ResultSink interface {
	WriteLoadout(ctx context.Context, row LoadoutRow) error
}

// MultiSink writes every row to each sink in turn.
type MultiSink []ResultSink

func (m MultiSink) WriteLoadout(ctx context.Context, row LoadoutRow) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteLoadout(ctx, row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiRecorder fans per-simulation rows out to several recorders.
type MultiRecorder []trial.Recorder

func (m MultiRecorder) RecordSimulation(ctx context.Context, rec trial.SimulationRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordSimulation(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
