// Package store persists runs, their stage progress, error records and result
// documents in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"

	harvesterr "tabnet-harvester/internal/errors"
	"tabnet-harvester/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	params TEXT,
	status TEXT,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	job TEXT,
	stage TEXT,
	category TEXT,
	message TEXT,
	attempts INTEGER,
	created_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_run_errors_run ON run_errors(run_id);
CREATE TABLE IF NOT EXISTS stage_progress (
	run_id TEXT,
	stage TEXT,
	status TEXT,
	jobs INTEGER,
	stored INTEGER,
	empty INTEGER,
	failed INTEGER,
	started_at DATETIME,
	finished_at DATETIME,
	PRIMARY KEY (run_id, stage)
);
CREATE TABLE IF NOT EXISTS run_results (
	run_id TEXT PRIMARY KEY,
	encoding TEXT,
	size INTEGER,
	data BLOB,
	created_at DATETIME
);
`

// Store is the SQLite-backed run store
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, harvesterr.Wrap(harvesterr.ErrCategoryStore, harvesterr.CodeWriteFailed, "open database", err)
	}
	// Error records arrive from many workers; one writer avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, harvesterr.Wrap(harvesterr.ErrCategoryStore, harvesterr.CodeWriteFailed, "create tables", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun stores a new pending run
func (s *Store) CreateRun(runID string, params model.RunParams) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO runs (id, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(paramsJSON), model.RunPending, now, now)
	if err != nil {
		return harvesterr.Wrap(harvesterr.ErrCategoryStore, harvesterr.CodeWriteFailed, "insert run", err)
	}
	return nil
}

// UpdateRunStatus updates run status
func (s *Store) UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	if err != nil {
		return harvesterr.Wrap(harvesterr.ErrCategoryStore, harvesterr.CodeWriteFailed, "update run status", err)
	}
	return nil
}

// ListRuns returns all runs, newest first
func (s *Store) ListRuns() ([]model.RunInfo, error) {
	rows, err := s.db.Query(`SELECT id, params, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]model.RunInfo, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches one run
func (s *Store) GetRun(runID string) (model.RunInfo, error) {
	row := s.db.QueryRow(`SELECT id, params, status, created_at, updated_at FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return run, harvesterr.Newf(harvesterr.ErrCategoryStore, harvesterr.CodeNotFound, "run %s not found", runID)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (model.RunInfo, error) {
	var run model.RunInfo
	var paramsJSON string
	if err := sc.Scan(&run.ID, &paramsJSON, &run.Status, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return run, err
	}
	if err := json.Unmarshal([]byte(paramsJSON), &run.Params); err != nil {
		return run, err
	}
	return run, nil
}

// SaveRunError records a failed job for a run
func (s *Store) SaveRunError(runID string, rec model.ErrorRecord) error {
	_, err := s.db.Exec(`INSERT INTO run_errors (run_id, job, stage, category, message, attempts, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Job, string(rec.Stage), rec.Category, rec.Message, rec.Attempts, rec.Timestamp)
	if err != nil {
		return harvesterr.Wrap(harvesterr.ErrCategoryStore, harvesterr.CodeWriteFailed, "insert run error", err)
	}
	return nil
}

// ListRunErrors returns the error records of a run in insertion order
func (s *Store) ListRunErrors(runID string) ([]model.ErrorRecord, error) {
	rows, err := s.db.Query(`SELECT job, stage, category, message, attempts, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]model.ErrorRecord, 0)
	for rows.Next() {
		var rec model.ErrorRecord
		var stage string
		if err := rows.Scan(&rec.Job, &stage, &rec.Category, &rec.Message, &rec.Attempts, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.Stage = model.Stage(stage)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveStageProgress upserts the counters of one stage
func (s *Store) SaveStageProgress(runID string, stats model.StageStats, status string) error {
	var finished interface{}
	if !stats.Finished.IsZero() {
		finished = stats.Finished
	}
	_, err := s.db.Exec(`
		INSERT INTO stage_progress (run_id, stage, status, jobs, stored, empty, failed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage) DO UPDATE SET
			status = excluded.status, jobs = excluded.jobs, stored = excluded.stored,
			empty = excluded.empty, failed = excluded.failed, finished_at = excluded.finished_at`,
		runID, string(stats.Stage), status, stats.Jobs, stats.Stored, stats.Empty, stats.Failed, stats.Started, finished)
	if err != nil {
		return harvesterr.Wrap(harvesterr.ErrCategoryStore, harvesterr.CodeWriteFailed, "save stage progress", err)
	}
	return nil
}

// ListStageProgress returns the stages of a run in the order they started
func (s *Store) ListStageProgress(runID string) ([]model.StageProgress, error) {
	rows, err := s.db.Query(`SELECT stage, status, jobs, stored, empty, failed, started_at, finished_at FROM stage_progress WHERE run_id = ? ORDER BY started_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]model.StageProgress, 0)
	for rows.Next() {
		var p model.StageProgress
		var stage string
		var finished sql.NullTime
		if err := rows.Scan(&stage, &p.Status, &p.Jobs, &p.Stored, &p.Empty, &p.Failed, &p.Started, &finished); err != nil {
			return nil, err
		}
		p.Stage = model.Stage(stage)
		if finished.Valid {
			p.Finished = finished.Time
			p.Duration = p.Finished.Sub(p.Started)
		}
		stages = append(stages, p)
	}
	return stages, rows.Err()
}

// SaveRunResult stores the final document, snappy-compressed
func (s *Store) SaveRunResult(runID string, doc []byte) error {
	compressed := snappy.Encode(nil, doc)
	_, err := s.db.Exec(`INSERT OR REPLACE INTO run_results (run_id, encoding, size, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, "snappy", len(doc), compressed, time.Now().UTC())
	if err != nil {
		return harvesterr.Wrap(harvesterr.ErrCategoryStore, harvesterr.CodeWriteFailed, "save result", err)
	}
	return nil
}

// GetRunResult returns the decompressed document of a run
func (s *Store) GetRunResult(runID string) ([]byte, error) {
	var encoding string
	var data []byte
	err := s.db.QueryRow(`SELECT encoding, data FROM run_results WHERE run_id = ?`, runID).Scan(&encoding, &data)
	if err == sql.ErrNoRows {
		return nil, harvesterr.Newf(harvesterr.ErrCategoryStore, harvesterr.CodeNotFound, "no result for run %s", runID)
	}
	if err != nil {
		return nil, err
	}
	if encoding != "snappy" {
		return data, nil
	}
	doc, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, harvesterr.Wrap(harvesterr.ErrCategoryStore, harvesterr.CodeUnexpected, "decompress result", err)
	}
	return doc, nil
}
