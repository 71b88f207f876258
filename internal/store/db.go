package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-report-pipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("not found")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		task TEXT,
		kind TEXT,
		spec TEXT,
		status TEXT,
		report_id TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		error_message TEXT,
		created_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS run_stages (
		run_id TEXT,
		stage TEXT,
		status TEXT,
		started_at DATETIME,
		ended_at DATETIME,
		processed INTEGER,
		failed INTEGER,
		PRIMARY KEY (run_id, stage)
	);`,
	`CREATE TABLE IF NOT EXISTS report_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		kind TEXT,
		line INTEGER,
		entity_key TEXT,
		data TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_report_rows_run ON report_rows (run_id, line);`,
	`CREATE INDEX IF NOT EXISTS idx_report_rows_kind_key ON report_rows (kind, entity_key);`,
	`CREATE TABLE IF NOT EXISTS run_outputs (
		run_id TEXT PRIMARY KEY,
		summary TEXT,
		csv_filename TEXT,
		csv_content TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS fee_previews (
		sku TEXT,
		asin TEXT,
		product_name TEXT,
		your_price REAL,
		sales_price REAL,
		estimated_fee_total REAL,
		estimated_referral_fee REAL,
		estimated_fulfillment_fee REAL,
		run_id TEXT,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS enriched_entities (
		run_id TEXT,
		family TEXT,
		entity_id TEXT,
		attributes TEXT,
		fields TEXT,
		error INTEGER,
		error_message TEXT,
		PRIMARY KEY (run_id, family, entity_id)
	);`,
	`CREATE TABLE IF NOT EXISTS shipments (
		shipment_id TEXT PRIMARY KEY,
		name TEXT,
		status TEXT,
		month TEXT,
		quantity_shipped INTEGER,
		quantity_received INTEGER,
		discrepancy INTEGER,
		error INTEGER,
		run_id TEXT,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS order_fees (
		amazon_order_id TEXT PRIMARY KEY,
		fba_fee REAL,
		commission_fee REAL,
		digital_services_fee REAL,
		error INTEGER,
		run_id TEXT,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS cogs (
		sku TEXT PRIMARY KEY,
		cost REAL,
		updated_at DATETIME
	);`,
}

// Initialize DB connection
func InitDB(dbPath string) error {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	db = conn
	return Migrate()
}

// SetDB replaces the connection, e.g. with a mock in tests
func SetDB(conn *sql.DB) { db = conn }

// Close closes the connection
func Close() error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// Migrate creates tables if they do not exist
func Migrate() error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ------------------- Runs -------------------

// SaveRun stores a new pipeline run
func SaveRun(run model.Run) error {
	specJSON, err := json.Marshal(run.Spec)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO runs (id, task, kind, spec, status, report_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Spec.Task, string(run.Spec.Kind), string(specJSON), run.Status, run.ReportID, run.CreatedAt, run.UpdatedAt)
	return err
}

// UpdateRunStatus updates run status
func UpdateRunStatus(runID, status string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// FailInterruptedRuns marks every run that is neither completed nor failed as
// failed and records an "interrupted" error for it. Call it before starting
// background runs, when no run in the database can still be executing.
func FailInterruptedRuns() (n int64, err error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.Exec(`INSERT INTO run_errors (run_id, stage, error_message, created_at)
		SELECT id, 'startup', 'interrupted before it finished', ? FROM runs WHERE status NOT IN (?, ?)`,
		now, model.RunCompleted, model.RunFailed); err != nil {
		return 0, err
	}
	res, err := tx.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE status NOT IN (?, ?)`,
		model.RunFailed, now, model.RunCompleted, model.RunFailed)
	if err != nil {
		return 0, err
	}
	if n, err = res.RowsAffected(); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// SetRunReportID records the remote report id of a run
func SetRunReportID(runID, reportID string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET report_id = ?, updated_at = ? WHERE id = ?`, reportID, now, runID)
	return err
}

// SaveRunError records an error for a run
func SaveRunError(runID, stage string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, stage, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, stage, err.Error(), now)
	return e
}

// SaveStageProgress upserts the progress of one stage
func SaveStageProgress(runID string, p model.StageProgress) error {
	_, err := db.Exec(`INSERT INTO run_stages (run_id, stage, status, started_at, ended_at, processed, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage) DO UPDATE SET
			status = excluded.status, started_at = excluded.started_at, ended_at = excluded.ended_at,
			processed = excluded.processed, failed = excluded.failed`,
		runID, p.Stage, p.Status, p.StartedAt, p.EndedAt, p.Processed, p.Failed)
	return err
}

const runColumns = `id, spec, status, report_id, created_at, updated_at`

func scanRun(scan func(dest ...interface{}) error) (*model.Run, error) {
	var (
		run      model.Run
		specJSON string
		reportID sql.NullString
	)
	if err := scan(&run.ID, &specJSON, &run.Status, &reportID, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(specJSON), &run.Spec); err != nil {
		return nil, fmt.Errorf("decode spec of run %s: %w", run.ID, err)
	}
	run.ReportID = reportID.String
	return &run, nil
}

// ListRuns returns the most recent runs first
func ListRuns(limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run by id
func GetRun(runID string) (*model.Run, error) {
	run, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// GetRunErrors lists the errors recorded for a run, oldest first
func GetRunErrors(runID string) ([]model.RunError, error) {
	rows, err := db.Query(`SELECT id, run_id, stage, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RunError{}
	for rows.Next() {
		var e model.RunError
		if err := rows.Scan(&e.ID, &e.RunID, &e.Stage, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetRunStages lists the stage progress of a run
func GetRunStages(runID string) ([]model.StageProgress, error) {
	rows, err := db.Query(`SELECT stage, status, started_at, ended_at, processed, failed FROM run_stages WHERE run_id = ? ORDER BY started_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StageProgress{}
	for rows.Next() {
		var (
			p              model.StageProgress
			started, ended sql.NullTime
		)
		if err := rows.Scan(&p.Stage, &p.Status, &started, &ended, &p.Processed, &p.Failed); err != nil {
			return nil, err
		}
		if started.Valid {
			p.StartedAt = &started.Time
		}
		if ended.Valid {
			p.EndedAt = &ended.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
