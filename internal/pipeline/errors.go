package pipeline

import (
	"fmt"
	"strings"

	"go-report-pipeline/internal/model"
)

// SubmissionError is returned when the report API rejects a submission
type SubmissionError struct {
	Kind       model.ReportKind
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submit %s report: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("submit %s report: http %d: %s", e.Kind, e.StatusCode, e.Body)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// JobFailedError is returned when a job reaches FAILED or CANCELLED
type JobFailedError struct {
	JobID  string
	Status model.JobStatus
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("report job %s ended with status %s", e.JobID, e.Status)
}

// PollTimeoutError is returned when a job is still running after maxPolls
// polls, or when the run deadline expires while polling.
type PollTimeoutError struct {
	JobID string
	Polls int
	Err   error
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("report job %s not done after %d polls", e.JobID, e.Polls)
}

func (e *PollTimeoutError) Unwrap() error { return e.Err }

// JobNotDoneError is returned when an artifact is requested from a job that
// is not DONE.
type JobNotDoneError struct {
	JobID  string
	Status model.JobStatus
}

func (e *JobNotDoneError) Error() string {
	return fmt.Sprintf("report job %s is %s, artifact only available when DONE", e.JobID, e.Status)
}

// ArtifactMissingError signals a DONE job without a document reference
type ArtifactMissingError struct {
	JobID string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("report job %s is DONE but has no report document", e.JobID)
}

// UnsupportedCompressionError is returned for any compression other than GZIP
type UnsupportedCompressionError struct {
	Value string
}

func (e *UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("unsupported artifact compression: %q", e.Value)
}

// ChunkError is a listing failure that aborted enrichment of one chunk
type ChunkError struct {
	Index int
	IDs   []string
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("enrich chunk %d [%s]: %v", e.Index, strings.Join(e.IDs, ","), e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// WindowError is a listing failure that aborted a window scan
type WindowError struct {
	Index  int
	Window model.Window
	Err    error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("scan window %d [%s, %s): %v", e.Index,
		e.Window.Start.Format("2006-01-02"), e.Window.End.Format("2006-01-02"), e.Err)
}

func (e *WindowError) Unwrap() error { return e.Err }
