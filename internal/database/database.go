// Package database persists study checkpoints and results in SQLite or
// PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/lawnchairsociety/questsim/internal/config"
)

// ErrDuplicateRow is returned when a loadout row is written twice for the
// same run.
var ErrDuplicateRow = errors.New("loadout row already recorded")

// Postgres pool settings.
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// Database wraps the connection and its dialect.
type Database struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*Database, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return open(NewDialect(DialectSQLite), path, false)
}

// Connect opens a PostgreSQL database from a connection URL.
func Connect(url string) (*Database, error) {
	return open(NewDialect(DialectPostgres), url, true)
}

// FromConfig opens the store selected by cfg.Checkpoint. It returns nil
// without error when checkpointing is disabled or uses redis.
func FromConfig(cfg config.StorageConfig) (*Database, error) {
	switch cfg.Checkpoint {
	case config.CheckpointSQLite:
		return Open(cfg.SQLitePath)
	case config.CheckpointPostgres:
		return Connect(cfg.PostgresURL)
	default:
		return nil, nil
	}
}

func open(dialect Dialect, dsn string, pooled bool) (*Database, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if pooled {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
	} else {
		// One writer; WAL lets readers proceed.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect.DriverName(), err)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}

	d := &Database{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// migrate creates the schema if it doesn't exist.
func (d *Database) migrate() error {
	serial := d.dialect.SerialPrimaryKey()
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			docket TEXT NOT NULL,
			started_at BIGINT NOT NULL,
			finished_at BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS study_checkpoints (
			study_id TEXT PRIMARY KEY,
			next_index BIGINT NOT NULL,
			total BIGINT NOT NULL,
			fingerprint TEXT NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS loadout_results (
			id ` + serial + `,
			run_id TEXT NOT NULL,
			study_id TEXT NOT NULL,
			loadout_index BIGINT NOT NULL,
			loadout TEXT NOT NULL,
			dungeon TEXT NOT NULL,
			cleared INTEGER NOT NULL,
			simulations INTEGER NOT NULL,
			wins INTEGER NOT NULL,
			timed_out INTEGER NOT NULL,
			win_rate DOUBLE PRECISION NOT NULL,
			avg_rounds DOUBLE PRECISION NOT NULL,
			avg_encounter_hp DOUBLE PRECISION NOT NULL,
			avg_loot DOUBLE PRECISION NOT NULL,
			miniboss_spawns INTEGER NOT NULL,
			UNIQUE (run_id, study_id, loadout_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loadout_results_study ON loadout_results(study_id)`,

		`CREATE TABLE IF NOT EXISTS simulation_results (
			id ` + serial + `,
			trial_id TEXT NOT NULL,
			sim_index INTEGER NOT NULL,
			success BOOLEAN NOT NULL,
			timed_out BOOLEAN NOT NULL,
			rounds INTEGER NOT NULL,
			encounter_hp DOUBLE PRECISION NOT NULL,
			survivors INTEGER NOT NULL,
			loot DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_simulation_results_trial ON simulation_results(trial_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// DB returns the underlying sql.DB for advanced operations.
func (d *Database) DB() *sql.DB {
	return d.db
}

// StartRun records a new run of the named docket and returns its id.
func (d *Database) StartRun(ctx context.Context, docket string) (string, error) {
	id := uuid.NewString()
	_, err := d.db.ExecContext(ctx,
		d.qb.Build(`INSERT INTO runs (id, docket, started_at) VALUES (?, ?, ?)`),
		id, docket, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the run's completion time.
func (d *Database) FinishRun(ctx context.Context, runID string) error {
	_, err := d.db.ExecContext(ctx,
		d.qb.Build(`UPDATE runs SET finished_at = ? WHERE id = ?`),
		time.Now().UnixMilli(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}
