package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go-report-pipeline/internal/model"
	"go-report-pipeline/pkg/utils"

	"go.uber.org/zap"
)

// Runner starts pipeline runs in the background
type Runner interface {
	Start(spec model.RunSpec) (model.Run, error)
	RetryRun(runID string) (model.Run, error)
}

// Handler serves the pipeline API. Reads go straight to the store; runs are
// started through the runner.
type Handler struct {
	runner  Runner
	outputs *utils.OutputManager
	logger  *zap.Logger
}

func New(runner Runner, outputs *utils.OutputManager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: runner, outputs: outputs, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// queryInt reads a non-negative integer query parameter
func queryInt(r *http.Request, name string, def int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func started(run model.Run) map[string]interface{} {
	return map[string]interface{}{
		"message":   "Run started",
		"run_id":    run.ID,
		"task":      run.Spec.Task,
		"kind":      run.Spec.Kind,
		"status":    run.Status,
		"createdAt": run.CreatedAt,
	}
}
