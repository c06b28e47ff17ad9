package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lawnchairsociety/questsim/internal/study"
)

// LoadCursor returns the stored checkpoint for a study.
func (d *Database) LoadCursor(ctx context.Context, studyID string) (study.Checkpoint, bool, error) {
	var (
		cp        study.Checkpoint
		next      int64
		total     int64
		updatedAt int64
	)
	err := d.db.QueryRowContext(ctx,
		d.qb.Build(`SELECT study_id, next_index, total, fingerprint, completed, updated_at
			FROM study_checkpoints WHERE study_id = ?`),
		studyID,
	).Scan(&cp.StudyID, &next, &total, &cp.Fingerprint, &cp.Completed, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return study.Checkpoint{}, false, nil
	}
	if err != nil {
		return study.Checkpoint{}, false, fmt.Errorf("failed to load checkpoint %s: %w", studyID, err)
	}

	cp.Cursor = uint64(next)
	cp.Total = uint64(total)
	cp.UpdatedAt = time.UnixMilli(updatedAt)
	return cp, true, nil
}

// SaveCursor upserts a study checkpoint.
func (d *Database) SaveCursor(ctx context.Context, cp study.Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	_, err := d.db.ExecContext(ctx,
		d.qb.Build(`INSERT INTO study_checkpoints (study_id, next_index, total, fingerprint, completed, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (study_id) DO UPDATE SET
				next_index = excluded.next_index,
				total = excluded.total,
				fingerprint = excluded.fingerprint,
				completed = excluded.completed,
				updated_at = excluded.updated_at`),
		cp.StudyID, int64(cp.Cursor), int64(cp.Total), cp.Fingerprint, cp.Completed, cp.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", cp.StudyID, err)
	}
	return nil
}

// ClearCursor removes a study checkpoint. Clearing a missing one is not an error.
func (d *Database) ClearCursor(ctx context.Context, studyID string) error {
	_, err := d.db.ExecContext(ctx,
		d.qb.Build(`DELETE FROM study_checkpoints WHERE study_id = ?`), studyID)
	if err != nil {
		return fmt.Errorf("failed to clear checkpoint %s: %w", studyID, err)
	}
	return nil
}
