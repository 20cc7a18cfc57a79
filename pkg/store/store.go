// Package store records runs and their jump records in a sqlite database.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fdd/internal/models"
)

// Run is the persisted summary of one model run
type Run struct {
	RunID      string
	Dataset    string
	Device     string
	Shape      []int
	Level      int
	Lambda     float64
	Nu         float64
	Threshold  float64
	Iterations int
	Energy     []float64
	Gap        []float64
	CreatedAt  int64
}

// Store wraps the database holding runs and jumps
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and ensures
// the schema exists. Use ":memory:" for a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			dataset           TEXT,
			device            TEXT,
			shape_json        TEXT,
			level             INTEGER,
			lambda            DOUBLE,
			nu                DOUBLE,
			threshold         DOUBLE,
			iterations        INTEGER,
			energy_json       TEXT,
			gap_json          TEXT,
			created_at        BIGINT
		);
		CREATE TABLE IF NOT EXISTS jumps (
			run_id            TEXT NOT NULL,
			seq               INTEGER NOT NULL,
			location_json     TEXT,
			jump_from         DOUBLE,
			jump_to           DOUBLE,
			jump_size         DOUBLE,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun persists run and its jumps in one transaction. An empty RunID is
// replaced by a new UUID and a zero CreatedAt by the current time.
func (s *Store) SaveRun(run *Run, jumps models.JumpRecords) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	shape, err := json.Marshal(run.Shape)
	if err != nil {
		return fmt.Errorf("encode shape: %w", err)
	}
	energy, err := json.Marshal(run.Energy)
	if err != nil {
		return fmt.Errorf("encode energy: %w", err)
	}
	gap, err := json.Marshal(run.Gap)
	if err != nil {
		return fmt.Errorf("encode gap: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			run_id, dataset, device, shape_json, level, lambda, nu,
			threshold, iterations, energy_json, gap_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Dataset, run.Device, string(shape), run.Level, run.Lambda, run.Nu,
		run.Threshold, run.Iterations, string(energy), string(gap), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO jumps (run_id, seq, location_json, jump_from, jump_to, jump_size)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare jumps: %w", err)
	}
	defer stmt.Close()

	for i, j := range jumps {
		loc, err := json.Marshal(j.Location)
		if err != nil {
			return fmt.Errorf("encode jump %d: %w", i, err)
		}
		if _, err := stmt.Exec(run.RunID, i, string(loc), j.From, j.To, j.Size); err != nil {
			return fmt.Errorf("insert jump %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetRun loads the run with the given ID, or sql.ErrNoRows
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, dataset, device, shape_json, level, lambda, nu,
		       threshold, iterations, energy_json, gap_json, created_at
		FROM runs WHERE run_id = ?`, runID)

	var run Run
	var shape, energy, gap string
	err := row.Scan(&run.RunID, &run.Dataset, &run.Device, &shape, &run.Level, &run.Lambda, &run.Nu,
		&run.Threshold, &run.Iterations, &energy, &gap, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeRun(&run, shape, energy, gap); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &run, nil
}

// ListRuns returns all runs, newest first
func (s *Store) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, dataset, device, shape_json, level, lambda, nu,
		       threshold, iterations, energy_json, gap_json, created_at
		FROM runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var shape, energy, gap string
		if err := rows.Scan(&run.RunID, &run.Dataset, &run.Device, &shape, &run.Level, &run.Lambda, &run.Nu,
			&run.Threshold, &run.Iterations, &energy, &gap, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := decodeRun(&run, shape, energy, gap); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.RunID, err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// Jumps returns the jump records of a run in insertion order
func (s *Store) Jumps(runID string) (models.JumpRecords, error) {
	rows, err := s.db.Query(`
		SELECT location_json, jump_from, jump_to, jump_size
		FROM jumps
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query jumps: %w", err)
	}
	defer rows.Close()

	var jumps models.JumpRecords
	for rows.Next() {
		var j models.JumpRecord
		var loc string
		if err := rows.Scan(&loc, &j.From, &j.To, &j.Size); err != nil {
			return nil, fmt.Errorf("scan jump: %w", err)
		}
		if err := json.Unmarshal([]byte(loc), &j.Location); err != nil {
			return nil, fmt.Errorf("decode jump location: %w", err)
		}
		jumps = append(jumps, j)
	}
	return jumps, rows.Err()
}

// DeleteRun removes a run and its jumps
func (s *Store) DeleteRun(runID string) error {
	_, err := s.db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
	return err
}

// decodeRun fills the JSON encoded columns of run
func decodeRun(run *Run, shape, energy, gap string) error {
	if err := json.Unmarshal([]byte(shape), &run.Shape); err != nil {
		return fmt.Errorf("decode shape: %w", err)
	}
	if err := json.Unmarshal([]byte(energy), &run.Energy); err != nil {
		return fmt.Errorf("decode energy: %w", err)
	}
	if err := json.Unmarshal([]byte(gap), &run.Gap); err != nil {
		return fmt.Errorf("decode gap: %w", err)
	}
	return nil
}
