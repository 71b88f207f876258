package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go-report-pipeline/internal/model"

	"go.uber.org/zap"
)

// ErrRunActive is returned when retrying a run that has not finished
var ErrRunActive = errors.New("run is still active")

// IsRetryable reports whether starting a fresh run may succeed where err
// failed. Remote rejections are retryable only for throttling and server
// errors; decoding and unsupported artifacts are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var (
		subErr   *SubmissionError
		compErr  *UnsupportedCompressionError
		missErr  *ArtifactMissingError
		jobErr   *JobFailedError
		pollErr  *PollTimeoutError
		chunkErr *ChunkError
		winErr   *WindowError
	)
	switch {
	case errors.As(err, &subErr):
		return subErr.StatusCode == http.StatusTooManyRequests || subErr.StatusCode >= 500
	case errors.As(err, &compErr), errors.As(err, &missErr):
		return false
	case errors.As(err, &jobErr), errors.As(err, &pollErr),
		errors.As(err, &chunkErr), errors.As(err, &winErr):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// RetryRun starts a new run with the spec of a finished run. The remote job
// of the old run is never polled again.
func (r *Runner) RetryRun(runID string) (model.Run, error) {
	old, err := r.deps.Store.GetRun(runID)
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if !old.Terminal() {
		return model.Run{}, ErrRunActive
	}

	run, err := r.Start(old.Spec)
	if err != nil {
		return model.Run{}, err
	}
	r.deps.Logger.Info("run retried", zap.String("run_id", runID), zap.String("new_run_id", run.ID))
	return run, nil
}
