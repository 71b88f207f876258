package pipeline

import (
	"time"

	"go-report-pipeline/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================
// Prometheus Metrics
// =============================

var (
	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_pipeline_polls_total",
			Help: "Report status polls by kind and returned status",
		},
		[]string{"kind", "status"},
	)

	jobOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_pipeline_job_outcomes_total",
			Help: "Report jobs by final outcome",
		},
		[]string{"kind", "outcome"}, // done, failed, timeout, rejected
	)

	artifactBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_pipeline_artifact_bytes",
			Help:    "Size of downloaded artifacts after decompression",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB to ~256MiB
		},
		[]string{"kind"},
	)

	rowsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_pipeline_rows_decoded_total",
			Help: "Rows decoded from report artifacts",
		},
		[]string{"decoder"}, // csv, tsv
	)

	rowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_pipeline_rows_dropped_total",
			Help: "Records dropped because their field count did not match the header",
		},
		[]string{"decoder"},
	)

	enrichItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_pipeline_enrich_items_total",
			Help: "Per-item enrichment lookups by result",
		},
		[]string{"result"}, // ok, failed
	)

	scanWindows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_pipeline_scan_windows_total",
			Help: "Listing windows scanned by result",
		},
		[]string{"result"}, // ok, failed
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
		},
		[]string{"kind", "status"},
	)
)

// ------------------- Run tracking -------------------

// RunStore records run state transitions
type RunStore interface {
	UpdateRunStatus(runID, status string) error
	SaveRunError(runID, stage string, err error) error
	SaveStageProgress(runID string, p model.StageProgress) error
}

// RunTracker writes status, stage progress and errors of one run
type RunTracker struct {
	RunID  string
	Kind   string
	store  RunStore
	logger *zap.Logger
	start  time.Time
	failed bool
}

// NewRunTracker creates a tracker for runID. Store failures are logged, never
// returned, so bookkeeping can't fail a run.
func NewRunTracker(runID, kind string, store RunStore, logger *zap.Logger) *RunTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunTracker{
		RunID:  runID,
		Kind:   kind,
		store:  store,
		logger: logger.With(zap.String("run_id", runID), zap.String("kind", kind)),
		start:  time.Now(),
	}
}

// Logger returns the run-scoped logger.
func (t *RunTracker) Logger() *zap.Logger { return t.logger }

// Status moves the run to status.
func (t *RunTracker) Status(status string) {
	if err := t.store.UpdateRunStatus(t.RunID, status); err != nil {
		t.logger.Warn("failed to update run status", zap.String("status", status), zap.Error(err))
	}
	t.logger.Info("run status", zap.String("status", status))
}

// Stage records the start of a stage and returns a func that records its end.
func (t *RunTracker) Stage(name string) func(processed, failed int, err error) {
	started := time.Now()
	t.saveStage(model.StageProgress{Stage: name, Status: "started", StartedAt: &started})

	return func(processed, failed int, err error) {
		ended := time.Now()
		status := "completed"
		if err != nil {
			status = "failed"
		}
		t.saveStage(model.StageProgress{
			Stage:     name,
			Status:    status,
			StartedAt: &started,
			EndedAt:   &ended,
			Processed: processed,
			Failed:    failed,
		})
		t.logger.Info("stage finished",
			zap.String("stage", name),
			zap.String("status", status),
			zap.Int("processed", processed),
			zap.Int("failed", failed),
			zap.Duration("duration", ended.Sub(started)))
	}
}

// Fail records err against stage and marks the run failed.
func (t *RunTracker) Fail(stage string, err error) {
	t.failed = true
	if saveErr := t.store.SaveRunError(t.RunID, stage, err); saveErr != nil {
		t.logger.Warn("failed to save run error", zap.Error(saveErr))
	}
	t.logger.Error("run failed", zap.String("stage", stage), zap.Error(err))
	t.Status(model.RunFailed)
	runDuration.WithLabelValues(t.Kind, model.RunFailed).Observe(time.Since(t.start).Seconds())
}

// Failed reports whether Fail has been called.
func (t *RunTracker) Failed() bool { return t.failed }

// Complete marks the run completed.
func (t *RunTracker) Complete() {
	t.Status(model.RunCompleted)
	runDuration.WithLabelValues(t.Kind, model.RunCompleted).Observe(time.Since(t.start).Seconds())
}

func (t *RunTracker) saveStage(p model.StageProgress) {
	if err := t.store.SaveStageProgress(t.RunID, p); err != nil {
		t.logger.Warn("failed to save stage progress", zap.String("stage", p.Stage), zap.Error(err))
	}
}
