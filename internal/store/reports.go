package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go-report-pipeline/internal/model"
)

// columns that identify the entity of a report row, in preference order
var entityKeyColumns = []string{"amazon-order-id", "amazon_order_id", "shipment-id", "shipment_id", "asin", "sku"}

// SaveReportRows stores decoded rows of a run, one JSON document per line
func SaveReportRows(runID string, rows []model.Row) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`INSERT INTO report_rows (run_id, kind, line, entity_key, data)
		VALUES (?, (SELECT kind FROM runs WHERE id = ?), ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		key, _ := row.Get(entityKeyColumns...)
		if _, err := stmt.Exec(runID, runID, i, key, string(data)); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetReportRows pages through the rows of a run in line order
func GetReportRows(runID string, limit, offset int) ([]model.Row, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT data FROM report_rows WHERE run_id = ? ORDER BY line LIMIT ? OFFSET ?`, runID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Row{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var row model.Row
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SaveRunSummary stores the aggregation result of a run as JSON
func SaveRunSummary(runID string, summary interface{}) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO run_outputs (run_id, summary) VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET summary = excluded.summary`, runID, string(data))
	return err
}

// GetRunSummary returns the stored summary JSON of a run
func GetRunSummary(runID string) (json.RawMessage, error) {
	var summary sql.NullString
	err := db.QueryRow(`SELECT summary FROM run_outputs WHERE run_id = ?`, runID).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !summary.Valid) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(summary.String), nil
}

// SaveCSV stores the CSV blob of a run
func SaveCSV(runID string, blob model.CSVBlob) error {
	_, err := db.Exec(`INSERT INTO run_outputs (run_id, csv_filename, csv_content) VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET csv_filename = excluded.csv_filename, csv_content = excluded.csv_content`,
		runID, blob.Filename, blob.Content)
	return err
}

// GetCSV returns the CSV blob of a run
func GetCSV(runID string) (model.CSVBlob, error) {
	var filename, content sql.NullString
	err := db.QueryRow(`SELECT csv_filename, csv_content FROM run_outputs WHERE run_id = ?`, runID).Scan(&filename, &content)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !filename.Valid) {
		return model.CSVBlob{}, ErrNotFound
	}
	if err != nil {
		return model.CSVBlob{}, err
	}
	return model.CSVBlob{Filename: filename.String, Content: content.String}, nil
}
