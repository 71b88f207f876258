package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-report-pipeline/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence the runner needs
type Store interface {
	RunStore
	CreateRun(run model.Run) error
	GetRun(runID string) (*model.Run, error)
	SetRunReportID(runID, reportID string) error
	SaveReportRows(runID string, rows []model.Row) error
	SaveRunSummary(runID string, summary interface{}) error
	SaveCSV(runID string, blob model.CSVBlob) error
	ReplaceFeePreviews(runID string, previews []model.FeePreview) error
	SaveEnrichedEntities(runID, family string, entities []model.EnrichedEntity) error
	ReplaceShipments(runID string, shipments []model.ShipmentSummary) error
	PendingOrderIDs(limit int) ([]string, error)
	SaveOrderFees(runID string, fees []model.OrderFee) error
}

// Notifier publishes run events
type Notifier interface {
	Publish(ctx context.Context, event model.RunEvent) error
}

// Options are the pacing and limits of a runner
type Options struct {
	MarketplaceID    string
	PollInterval     time.Duration
	MaxPolls         int
	Enrich           EnrichOptions
	ScanMaxWindows   int
	ScanTargetCount  int
	ScanWindowDelay  time.Duration
	RunTimeout       time.Duration
	PendingFeeLimit  int
	ReturnsLookback  int // months
	OrdersWindowDays int
}

// Deps wires a runner to its collaborators. Lister, Shipments and Fees are
// only needed for the sync tasks; Export and Events are optional. Runs begun
// with Start derive their context from BaseContext, so cancelling it fails them.
type Deps struct {
	BaseContext context.Context
	API       ReportAPI
	Lister    WindowLister
	Shipments EnrichSource
	Fees      EnrichSource
	Store     Store
	Export    *ExportManager
	Events    Notifier
	Sleeper   Sleeper
	Logger    *zap.Logger
}

// Runner executes pipeline runs: report acquisition, shipment sync and
// order fee sync.
type Runner struct {
	deps Deps
	opts Options
	jobs *JobController
	now  func() time.Time
	wg   sync.WaitGroup
}

// NewRunner builds a runner, filling unset options with defaults.
func NewRunner(deps Deps, opts Options) *Runner {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Sleeper = sleeperOrDefault(deps.Sleeper)
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = DefaultMaxPolls
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 30 * time.Minute
	}
	if opts.PendingFeeLimit <= 0 {
		opts.PendingFeeLimit = 100
	}
	if opts.ReturnsLookback <= 0 {
		opts.ReturnsLookback = 13
	}
	if opts.OrdersWindowDays <= 0 {
		opts.OrdersWindowDays = 30
	}
	return &Runner{
		deps: deps,
		opts: opts,
		jobs: NewJobController(deps.API, deps.Sleeper, deps.Logger),
		now:  time.Now,
	}
}

// ------------------- Run lifecycle -------------------

// CreateRun records a pending run for spec
func (r *Runner) CreateRun(spec model.RunSpec) (model.Run, error) {
	if spec.Task == "" {
		spec.Task = model.TaskReport
	}
	if spec.Task == model.TaskReport && spec.Kind.ReportType() == "" {
		return model.Run{}, fmt.Errorf("unknown report kind %q", spec.Kind)
	}
	now := r.now().UTC()
	run := model.Run{
		ID:        uuid.NewString(),
		Spec:      spec,
		Status:    model.RunPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.deps.Store.CreateRun(run); err != nil {
		return model.Run{}, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// Start creates a run and executes it in the background under the run
// timeout. The returned run is still pending.
func (r *Runner) Start(spec model.RunSpec) (model.Run, error) {
	run, err := r.CreateRun(spec)
	if err != nil {
		return model.Run{}, err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(r.deps.BaseContext, r.opts.RunTimeout)
		defer cancel()
		_ = r.Execute(ctx, run)
	}()
	return run, nil
}

// Wait blocks until every run begun with Start has returned.
func (r *Runner) Wait() { r.wg.Wait() }

// Execute runs a created run to completion and publishes its outcome.
func (r *Runner) Execute(ctx context.Context, run model.Run) (err error) {
	tracker := NewRunTracker(run.ID, run.Spec.Label(), r.deps.Store, r.deps.Logger)
	event := model.RunEvent{RunID: run.ID, Spec: run.Spec}

	defer func() {
		event.At = r.now().UTC()
		if err != nil {
			if !tracker.Failed() {
				tracker.Fail("run", err)
			}
			event.Type = "run.failed"
			event.Error = err.Error()
			event.Retryable = IsRetryable(err)
		} else {
			event.Type = "run.completed"
			tracker.Complete()
		}
		r.publish(ctx, event)
	}()

	switch run.Spec.Task {
	case model.TaskReport, "":
		event.ReportID, event.Records, err = r.RunReport(ctx, tracker, run.Spec)
	case model.TaskShipmentSync:
		event.Records, err = r.SyncShipments(ctx, tracker)
	case model.TaskOrderFeeSync:
		event.Records, err = r.SyncOrderFees(ctx, tracker)
	default:
		err = fmt.Errorf("unknown run task %q", run.Spec.Task)
		tracker.Fail("dispatch", err)
	}
	return err
}

func (r *Runner) publish(ctx context.Context, event model.RunEvent) {
	if r.deps.Events == nil {
		return
	}
	// the run context may already be expired
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.deps.Events.Publish(pubCtx, event); err != nil {
		r.deps.Logger.Warn("failed to publish run event", zap.String("run_id", event.RunID), zap.Error(err))
	}
}

// ------------------- Report runs -------------------

// ReportParameters builds the submission parameters of a report run
func (r *Runner) ReportParameters(spec model.RunSpec) model.ReportParameters {
	params := model.ReportParameters{MarketplaceIDs: []string{r.opts.MarketplaceID}}
	now := r.now().UTC()

	switch spec.Kind {
	case model.KindOrders, model.KindShipments:
		days := r.opts.OrdersWindowDays
		end := now.AddDate(0, 0, -spec.Offset*days)
		start := end.AddDate(0, 0, -days)
		params.DataStartTime, params.DataEndTime = &start, &end
	case model.KindReturns:
		months := spec.Months
		if months <= 0 {
			months = r.opts.ReturnsLookback
		}
		start := now.AddDate(0, -months, 0)
		params.DataStartTime, params.DataEndTime = &start, &now
	}
	return params
}

// acquire submits the report, polls it and returns the artifact bytes
func (r *Runner) acquire(ctx context.Context, t *RunTracker, spec model.RunSpec) (model.ReportJob, []byte, error) {
	t.Status(model.RunSubmitting)
	done := t.Stage("submit")
	job, err := r.jobs.Submit(ctx, spec.Kind, r.ReportParameters(spec))
	done(0, 0, err)
	if err != nil {
		t.Fail("submit", err)
		return job, nil, err
	}
	if err := r.deps.Store.SetRunReportID(t.RunID, job.ID); err != nil {
		t.Logger().Warn("failed to store report id", zap.Error(err))
	}

	t.Status(model.RunPolling)
	done = t.Stage("poll")
	job, err = r.jobs.PollUntilDone(ctx, job, r.opts.PollInterval, r.opts.MaxPolls)
	done(job.Polls, 0, err)
	if err != nil {
		t.Fail("poll", err)
		return job, nil, err
	}

	t.Status(model.RunDownloading)
	done = t.Stage("download")
	data, ref, err := r.jobs.FetchArtifact(ctx, job)
	done(len(data), 0, err)
	if err != nil {
		t.Fail("download", err)
		return job, nil, err
	}
	job.ArtifactRef = &ref

	if r.deps.Export != nil {
		r.deps.Export.ArchiveRaw(ctx, t.RunID, spec.Kind, data)
	}
	return job, data, nil
}

// RunReport acquires one report and decodes, aggregates and persists it. It
// returns the remote report id and the number of decoded rows.
func (r *Runner) RunReport(ctx context.Context, t *RunTracker, spec model.RunSpec) (string, int, error) {
	job, data, err := r.acquire(ctx, t, spec)
	if err != nil {
		return job.ID, 0, err
	}

	t.Status(model.RunDecoding)
	done := t.Stage("decode")
	var (
		rows    []model.Row
		csvText string
	)
	switch spec.Kind {
	case model.KindReturns:
		csvText = TabToCSV(data)
		rows, err = DecodeRows(csvText, PassThrough)
	case model.KindFeePreviews:
		rows = DecodeTSV(data, PassThrough)
	default:
		rows = DecodeTSV(data, SnakeCase)
	}
	if err == nil && csvText == "" {
		csvText, err = RowsToCSV(rows)
	}
	done(len(rows), 0, err)
	if err != nil {
		t.Fail("decode", err)
		return job.ID, 0, err
	}

	t.Status(model.RunAggregating)
	done = t.Stage("persist")
	err = r.persistReport(t.RunID, spec.Kind, rows)
	blob := model.CSVBlob{Filename: CSVFilename(spec.Kind, job.ID), Content: csvText}
	if err == nil {
		err = r.deps.Store.SaveCSV(t.RunID, blob)
	}
	done(len(rows), 0, err)
	if err != nil {
		t.Fail("persist", err)
		return job.ID, len(rows), err
	}

	if r.deps.Export != nil {
		var summary interface{}
		if spec.Kind == model.KindReturns {
			summary = BuildReturnsView(rows, nil)
		}
		r.deps.Export.ExportRun(ctx, t.RunID, spec.Kind, blob, summary)
	}
	return job.ID, len(rows), nil
}

func (r *Runner) persistReport(runID string, kind model.ReportKind, rows []model.Row) error {
	if err := r.deps.Store.SaveReportRows(runID, rows); err != nil {
		return err
	}
	switch kind {
	case model.KindReturns:
		return r.deps.Store.SaveRunSummary(runID, BuildReturnsView(rows, nil))
	case model.KindFeePreviews:
		return r.deps.Store.ReplaceFeePreviews(runID, FeePreviewsFromRows(rows))
	}
	return nil
}

// ------------------- Sync runs -------------------

// SyncShipments scans inbound shipments month by month, looks up their items
// and replaces the shipment snapshot.
func (r *Runner) SyncShipments(ctx context.Context, t *RunTracker) (int, error) {
	if r.deps.Lister == nil || r.deps.Shipments == nil {
		err := errors.New("shipment sync is not configured")
		t.Fail("scan", err)
		return 0, err
	}

	t.Status(model.RunScanning)
	done := t.Stage("scan")
	scanner := NewScanner(r.deps.Lister, r.deps.Sleeper, t.Logger())
	entities, err := scanner.Scan(ctx, ScanOptions{
		InitialWindow:    MonthWindowEndingAt(r.now().UTC()),
		WindowStepMonths: 1,
		MaxWindows:       r.opts.ScanMaxWindows,
		TargetCount:      r.opts.ScanTargetCount,
		InterWindowDelay: r.opts.ScanWindowDelay,
	}, NewSeenSet())
	done(len(entities), 0, err)
	if err != nil {
		t.Fail("scan", err)
		return 0, err
	}

	attrs := make(map[string]map[string]string, len(entities))
	for _, e := range entities {
		attrs[e.ID] = e.Attributes
	}

	t.Status(model.RunEnriching)
	done = t.Stage("enrich")
	opts := r.opts.Enrich
	opts.Fields = ShipmentFields
	enriched, err := NewBatchEnricher(r.deps.Shipments, r.deps.Sleeper, t.Logger()).Enrich(ctx, EntityIDs(entities), opts)
	// listing attributes win only where the chunk listing returned none
	for i := range enriched {
		if len(enriched[i].Attributes) == 0 {
			enriched[i].Attributes = attrs[enriched[i].ID]
		}
	}
	done(len(enriched), countFailed(enriched), err)
	if err != nil {
		t.Fail("enrich", err)
		return len(enriched), err
	}

	done = t.Stage("persist")
	summaries := ShipmentSummaries(enriched)
	err = r.deps.Store.SaveEnrichedEntities(t.RunID, "shipments", enriched)
	if err == nil {
		err = r.deps.Store.ReplaceShipments(t.RunID, summaries)
	}
	done(len(summaries), 0, err)
	if err != nil {
		t.Fail("persist", err)
		return len(summaries), err
	}
	return len(summaries), nil
}

// SyncOrderFees looks up fees for orders that have none yet.
func (r *Runner) SyncOrderFees(ctx context.Context, t *RunTracker) (int, error) {
	if r.deps.Fees == nil {
		err := errors.New("order fee sync is not configured")
		t.Fail("enrich", err)
		return 0, err
	}

	ids, err := r.deps.Store.PendingOrderIDs(r.opts.PendingFeeLimit)
	if err != nil {
		t.Fail("pending", err)
		return 0, err
	}
	t.Logger().Info("pending orders", zap.Int("count", len(ids)))

	t.Status(model.RunEnriching)
	done := t.Stage("enrich")
	opts := r.opts.Enrich
	opts.Fields = OrderFeeFields
	enriched, enrichErr := NewBatchEnricher(r.deps.Fees, r.deps.Sleeper, t.Logger()).Enrich(ctx, ids, opts)
	done(len(enriched), countFailed(enriched), enrichErr)

	// fees already looked up are kept even when a later chunk failed
	fees := OrderFees(enriched)
	if err := r.deps.Store.SaveOrderFees(t.RunID, fees); err != nil {
		t.Fail("persist", err)
		return len(fees), err
	}
	if enrichErr != nil {
		t.Fail("enrich", enrichErr)
		return len(fees), enrichErr
	}
	return len(fees), nil
}

func countFailed(entities []model.EnrichedEntity) int {
	n := 0
	for _, e := range entities {
		if e.Error {
			n++
		}
	}
	return n
}
