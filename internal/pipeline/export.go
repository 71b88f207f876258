package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	"go-report-pipeline/internal/model"
	"go-report-pipeline/pkg/utils"

	"go.uber.org/zap"
)

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "file", "archive"
	Path        string    `json:"path"`
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}

// Archiver stores an object under key
type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// ExportManager writes run outputs to EXPORT_DIR and, when an archiver is
// configured, to object storage.
type ExportManager struct {
	outputs  *utils.OutputManager
	archiver Archiver
	logger   *zap.Logger
}

// NewExportManager returns a manager. Either outputs or archiver may be nil.
func NewExportManager(outputs *utils.OutputManager, archiver Archiver, logger *zap.Logger) *ExportManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportManager{outputs: outputs, archiver: archiver, logger: logger}
}

// ------------------- CSV blobs -------------------

// CSVFilename is the download name suggested for a run's CSV
func CSVFilename(kind model.ReportKind, reportID string) string {
	return fmt.Sprintf("%s-%s.csv", kind, reportID)
}

// RowsToCSV writes rows as CSV with the header of the first row.
func RowsToCSV(rows []model.Row) (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if len(rows) > 0 {
		if err := writer.Write(rows[0].Columns); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
		for _, row := range rows {
			if err := writer.Write(row.Fields()); err != nil {
				return "", fmt.Errorf("failed to write row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.String(), nil
}

// ------------------- Export -------------------

// ExportRun writes the CSV blob and the JSON summary of a run. Failures are
// reported in the results and never fail the run.
func (em *ExportManager) ExportRun(ctx context.Context, runID string, kind model.ReportKind, blob model.CSVBlob, summary interface{}) []ExportResult {
	var results []ExportResult

	if em.outputs != nil {
		results = append(results, em.exportFile(runID, blob.Filename, []byte(blob.Content), 0))
		if summary != nil {
			data, err := json.MarshalIndent(map[string]interface{}{
				"export_info": map[string]interface{}{
					"run_id":      runID,
					"kind":        kind,
					"exported_at": time.Now().UTC(),
				},
				"data": summary,
			}, "", "  ")
			if err != nil {
				results = append(results, em.failed("file", "summary.json", err))
			} else {
				results = append(results, em.exportFile(runID, "summary.json", data, 1))
			}
		}
	}

	if em.archiver != nil {
		results = append(results, em.archiveGZ(ctx, ArchiveKey(kind, runID, blob.Filename), []byte(blob.Content)))
	}
	return results
}

// ArchiveRaw stores the decompressed artifact of a run, gzipped.
func (em *ExportManager) ArchiveRaw(ctx context.Context, runID string, kind model.ReportKind, data []byte) *ExportResult {
	if em.archiver == nil {
		return nil
	}
	res := em.archiveGZ(ctx, ArchiveKey(kind, runID, "artifact.txt"), data)
	return &res
}

// ArchiveKey is <kind>/<run_id>/<filename>
func ArchiveKey(kind model.ReportKind, runID, filename string) string {
	return path.Join(string(kind), runID, path.Base(filename))
}

func (em *ExportManager) exportFile(runID, fileName string, data []byte, records int) ExportResult {
	filePath, err := em.outputs.GetOutputFilePath(runID, fileName)
	if err != nil {
		return em.failed("file", fileName, err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return em.failed("file", filePath, fmt.Errorf("failed to write file: %w", err))
	}
	if records == 0 {
		records = bytes.Count(data, []byte("\n"))
	}
	em.logger.Info("export written", zap.String("run_id", runID), zap.String("path", filePath))
	return ExportResult{Type: "file", Path: filePath, RecordCount: records, Success: true, ExportedAt: time.Now()}
}

func (em *ExportManager) archiveGZ(ctx context.Context, key string, raw []byte) ExportResult {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return em.failed("archive", key, err)
	}
	if err := zw.Close(); err != nil {
		return em.failed("archive", key, err)
	}
	key += ".gz"
	if err := em.archiver.Put(ctx, key, buf.Bytes(), "application/gzip"); err != nil {
		return em.failed("archive", key, err)
	}
	em.logger.Info("archived", zap.String("key", key), zap.Int("bytes", buf.Len()))
	return ExportResult{Type: "archive", Path: key, Success: true, ExportedAt: time.Now()}
}

func (em *ExportManager) failed(kind, where string, err error) ExportResult {
	em.logger.Warn("export failed", zap.String("type", kind), zap.String("path", where), zap.Error(err))
	return ExportResult{Type: kind, Path: where, Error: err.Error(), ExportedAt: time.Now()}
}
