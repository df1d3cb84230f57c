// Package db persists planning-cycle records to sqlite for offline analysis
// and replay debugging. Recording is optional; the planner runs without it.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/path.planner/internal/planner"
)

// DB wraps the sqlite handle.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the recorder database and applies pending
// migrations.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder db: %w", err)
	}
	db := &DB{handle}
	if err := db.MigrateUp(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// Run identifies one recorded planning session.
type Run struct {
	ID        string
	StartedAt time.Time
}

// StartRun registers a new planning session and returns its id.
func (db *DB) StartRun(mapPath string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO runs (run_id, started_unix, map_path) VALUES (?, ?, ?)`,
		run.ID, run.StartedAt.Unix(), mapPath,
	)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recently started run id.
func (db *DB) LatestRun() (string, error) {
	var id string
	err := db.QueryRow(
		`SELECT run_id FROM runs ORDER BY started_unix DESC, rowid DESC LIMIT 1`,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

// Recorder adapts a run to the planner's sink interface.
type Recorder struct {
	db    *DB
	runID string
}

// NewRecorder returns a sink that appends cycle records under the run id.
func NewRecorder(db *DB, runID string) *Recorder {
	return &Recorder{db: db, runID: runID}
}

// RecordCycle implements planner.Sink.
func (r *Recorder) RecordCycle(rec planner.CycleRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO cycles (
			run_id, cycle, unix_nanos, ego_s, ego_d, ego_speed,
			lane, intent, target_lane, target_speed, chosen_cost,
			path_len, cycle_micros
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, rec.Cycle, rec.UnixNanos, rec.EgoS, rec.EgoD, rec.EgoSpeed,
		rec.Lane, rec.Intent, rec.TargetLane, rec.TargetSpeed, rec.ChosenCost,
		rec.PathLen, rec.CycleMicros,
	)
	if err != nil {
		return fmt.Errorf("record cycle %d: %w", rec.Cycle, err)
	}
	return nil
}

var _ planner.Sink = (*Recorder)(nil)

// Cycles returns the recorded cycles of a run in cycle order.
func (db *DB) Cycles(runID string) ([]planner.CycleRecord, error) {
	rows, err := db.Query(`
		SELECT cycle, unix_nanos, ego_s, ego_d, ego_speed,
		       lane, intent, target_lane, target_speed, chosen_cost,
		       path_len, cycle_micros
		FROM cycles WHERE run_id = ? ORDER BY cycle`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var recs []planner.CycleRecord
	for rows.Next() {
		var rec planner.CycleRecord
		if err := rows.Scan(
			&rec.Cycle, &rec.UnixNanos, &rec.EgoS, &rec.EgoD, &rec.EgoSpeed,
			&rec.Lane, &rec.Intent, &rec.TargetLane, &rec.TargetSpeed,
			&rec.ChosenCost, &rec.PathLen, &rec.CycleMicros,
		); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
