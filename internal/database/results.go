package database

import (
	"context"
	"fmt"

	"github.com/lawnchairsociety/questsim/internal/study"
	"github.com/lawnchairsociety/questsim/internal/trial"
)

// WriteLoadout stores one loadout's aggregate result.
func (d *Database) WriteLoadout(ctx context.Context, row study.LoadoutRow) error {
	s := row.Summary
	_, err := d.db.ExecContext(ctx,
		d.qb.Build(`INSERT INTO loadout_results (
				run_id, study_id, loadout_index, loadout, dungeon, cleared,
				simulations, wins, timed_out, win_rate, avg_rounds,
				avg_encounter_hp, avg_loot, miniboss_spawns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		row.RunID, row.StudyID, int64(row.Index), row.LoadoutString(), row.Dungeon, row.Cleared,
		s.Simulations, s.Wins, s.TimedOut, s.WinRate, s.AvgRounds,
		s.AvgEncounterHP, s.AvgLoot, s.MinibossSpawns)
	if err != nil {
		if d.dialect.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s #%d: %w", row.StudyID, row.Index, ErrDuplicateRow)
		}
		return fmt.Errorf("failed to write loadout %s #%d: %w", row.StudyID, row.Index, err)
	}
	return nil
}

// RecordSimulation stores one simulation outcome.
func (d *Database) RecordSimulation(ctx context.Context, rec trial.SimulationRecord) error {
	r := rec.Result
	_, err := d.db.ExecContext(ctx,
		d.qb.Build(`INSERT INTO simulation_results (
				trial_id, sim_index, success, timed_out, rounds, encounter_hp, survivors, loot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.TrialID, rec.Index, r.Success, r.TimedOut, r.Rounds,
		r.EncounterHPRemaining(), r.Survivors(), r.Loot)
	if err != nil {
		return fmt.Errorf("failed to record simulation %s/%d: %w", rec.TrialID, rec.Index, err)
	}
	return nil
}

// LoadoutResult is a stored loadout row.
type LoadoutResult struct {
	RunID       string
	StudyID     string
	Index       uint64
	Loadout     string
	Dungeon     string
	Cleared     int
	Simulations int
	Wins        int
	WinRate     float64
}

// LoadoutResults returns a study's rows ordered by run and loadout index.
func (d *Database) LoadoutResults(ctx context.Context, studyID string) ([]LoadoutResult, error) {
	rows, err := d.db.QueryContext(ctx,
		d.qb.Build(`SELECT run_id, study_id, loadout_index, loadout, dungeon, cleared, simulations, wins, win_rate
			FROM loadout_results WHERE study_id = ? ORDER BY run_id, loadout_index`),
		studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query loadout results: %w", err)
	}
	defer rows.Close()

	var out []LoadoutResult
	for rows.Next() {
		var (
			r     LoadoutResult
			index int64
		)
		if err := rows.Scan(&r.RunID, &r.StudyID, &index, &r.Loadout, &r.Dungeon,
			&r.Cleared, &r.Simulations, &r.Wins, &r.WinRate); err != nil {
			return nil, fmt.Errorf("failed to scan loadout result: %w", err)
		}
		r.Index = uint64(index)
		out = append(out, r)
	}
	return out, rows.Err()
}
