package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-report-pipeline/internal/model"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultMaxPolls     = 20
)

// ReportAPI is the part of the marketplace report API the controller needs
type ReportAPI interface {
	CreateReport(ctx context.Context, reportType string, params model.ReportParameters) (string, error)
	GetReport(ctx context.Context, reportID string) (model.ReportStatus, error)
	GetReportDocument(ctx context.Context, documentID string) (model.ReportDocument, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// httpStatusError is implemented by transport errors that carry a response
type httpStatusError interface {
	HTTPStatus() int
	ResponseBody() string
}

// JobController submits report jobs, polls them to a terminal state and
// fetches the artifact of a DONE job. A job that ended FAILED or CANCELLED is
// never polled again; retrying means submitting a new job.
type JobController struct {
	api     ReportAPI
	sleeper Sleeper
	logger  *zap.Logger
}

// NewJobController creates a controller. A nil sleeper waits on real timers.
func NewJobController(api ReportAPI, sleeper Sleeper, logger *zap.Logger) *JobController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobController{
		api:     api,
		sleeper: sleeperOrDefault(sleeper),
		logger:  logger,
	}
}

// Submit requests a new report. It does not retry.
func (c *JobController) Submit(ctx context.Context, kind model.ReportKind, params model.ReportParameters) (model.ReportJob, error) {
	reportType := kind.ReportType()
	if reportType == "" {
		return model.ReportJob{}, &SubmissionError{Kind: kind, Err: fmt.Errorf("unknown report kind %q", kind)}
	}
	if err := ValidateParameters(params); err != nil {
		return model.ReportJob{}, &SubmissionError{Kind: kind, Err: err}
	}

	reportID, err := c.api.CreateReport(ctx, reportType, params)
	if err != nil {
		subErr := &SubmissionError{Kind: kind, Err: err}
		var se httpStatusError
		if errors.As(err, &se) {
			subErr.StatusCode = se.HTTPStatus()
			subErr.Body = se.ResponseBody()
		}
		jobOutcomes.WithLabelValues(string(kind), "rejected").Inc()
		return model.ReportJob{}, subErr
	}

	c.logger.Info("report submitted",
		zap.String("kind", string(kind)),
		zap.String("report_type", reportType),
		zap.String("job_id", reportID))

	return model.ReportJob{ID: reportID, Kind: kind, Status: model.StatusQueued}, nil
}

// PollUntilDone waits interval, fetches the status and repeats until the job
// is terminal. FAILED and CANCELLED return a JobFailedError; more than
// maxPolls polls returns a PollTimeoutError. maxPolls <= 0 uses DefaultMaxPolls.
func (c *JobController) PollUntilDone(ctx context.Context, job model.ReportJob, interval time.Duration, maxPolls int) (model.ReportJob, error) {
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	if interval < 0 {
		interval = DefaultPollInterval
	}

	for {
		if job.Status.Terminal() {
			if job.Status == model.StatusDone {
				jobOutcomes.WithLabelValues(string(job.Kind), "done").Inc()
				return job, nil
			}
			jobOutcomes.WithLabelValues(string(job.Kind), "failed").Inc()
			return job, &JobFailedError{JobID: job.ID, Status: job.Status}
		}

		if job.Polls >= maxPolls {
			jobOutcomes.WithLabelValues(string(job.Kind), "timeout").Inc()
			return job, &PollTimeoutError{JobID: job.ID, Polls: job.Polls}
		}

		if err := c.sleeper.Sleep(ctx, interval); err != nil {
			return job, &PollTimeoutError{JobID: job.ID, Polls: job.Polls, Err: err}
		}

		status, err := c.api.GetReport(ctx, job.ID)
		if err != nil {
			if ctx.Err() != nil {
				return job, &PollTimeoutError{JobID: job.ID, Polls: job.Polls, Err: ctx.Err()}
			}
			return job, fmt.Errorf("poll report %s: %w", job.ID, err)
		}
		next, err := model.ParseJobStatus(status.ProcessingStatus)
		if err != nil {
			return job, fmt.Errorf("poll report %s: %w", job.ID, err)
		}

		job.Polls++
		job.Status = next
		job.DocumentID = status.ReportDocumentID
		pollsTotal.WithLabelValues(string(job.Kind), next.String()).Inc()

		c.logger.Debug("report polled",
			zap.String("job_id", job.ID),
			zap.Int("poll", job.Polls),
			zap.Stringer("status", next))
	}
}

// FetchArtifact resolves the document of a DONE job and downloads it,
// gunzipping GZIP payloads. It never retries.
func (c *JobController) FetchArtifact(ctx context.Context, job model.ReportJob) ([]byte, model.ArtifactRef, error) {
	if job.Status != model.StatusDone {
		return nil, model.ArtifactRef{}, &JobNotDoneError{JobID: job.ID, Status: job.Status}
	}
	if job.DocumentID == "" {
		return nil, model.ArtifactRef{}, &ArtifactMissingError{JobID: job.ID}
	}

	doc, err := c.api.GetReportDocument(ctx, job.DocumentID)
	if err != nil {
		return nil, model.ArtifactRef{}, fmt.Errorf("get report document %s: %w", job.DocumentID, err)
	}
	if doc.URL == "" {
		return nil, model.ArtifactRef{}, &ArtifactMissingError{JobID: job.ID}
	}
	compression, ok := model.ParseCompression(doc.CompressionAlgorithm)
	if !ok {
		return nil, model.ArtifactRef{}, &UnsupportedCompressionError{Value: doc.CompressionAlgorithm}
	}
	ref := model.ArtifactRef{URL: doc.URL, Compression: compression}

	raw, err := c.api.Download(ctx, ref.URL)
	if err != nil {
		return nil, ref, fmt.Errorf("download artifact for report %s: %w", job.ID, err)
	}
	data, err := Decompress(raw, compression)
	if err != nil {
		return nil, ref, err
	}

	artifactBytes.WithLabelValues(string(job.Kind)).Observe(float64(len(data)))
	c.logger.Info("artifact fetched",
		zap.String("job_id", job.ID),
		zap.Stringer("compression", compression),
		zap.Int("bytes", len(data)))

	return data, ref, nil
}

// ValidateParameters rejects an inverted or empty data window before it is
// sent to the remote endpoint.
func ValidateParameters(params model.ReportParameters) error {
	if len(params.MarketplaceIDs) == 0 {
		return errors.New("at least one marketplace id is required")
	}
	if params.DataStartTime != nil && params.DataEndTime != nil && !params.DataStartTime.Before(*params.DataEndTime) {
		return fmt.Errorf("invalid date range: start %s is not before end %s",
			params.DataStartTime.Format(time.RFC3339), params.DataEndTime.Format(time.RFC3339))
	}
	return nil
}
