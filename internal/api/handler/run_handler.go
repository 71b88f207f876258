package handler

import (
	"errors"
	"fmt"
	"net/http"

	"go-report-pipeline/internal/model"
	"go-report-pipeline/internal/pipeline"
	"go-report-pipeline/internal/store"
	"go-report-pipeline/pkg/router"

	"go.uber.org/zap"
)

// CreateReportRun starts a report run
// @Summary Request a report
// @Description Submit a report of the given kind and process it in the background
// @Tags reports
// @Produce json
// @Param kind path string true "Report kind" Enums(orders, returns, shipments, fees)
// @Param offset query int false "30-day windows back from now (orders, shipments)"
// @Param months query int false "Lookback in months (returns)"
// @Success 202 {object} map[string]interface{} "Run started"
// @Failure 400 {object} map[string]interface{} "Unknown kind or bad parameters"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /reports/{kind} [post]
func (h *Handler) CreateReportRun(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseReportKind(router.Segment(r, 3))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		http.Error(w, "offset must be a non-negative integer", http.StatusBadRequest)
		return
	}
	months, ok := queryInt(r, "months", 0)
	if !ok {
		http.Error(w, "months must be a non-negative integer", http.StatusBadRequest)
		return
	}

	run, err := h.runner.Start(model.RunSpec{Task: model.TaskReport, Kind: kind, Offset: offset, Months: months})
	if err != nil {
		h.logger.Error("failed to start report run", zap.String("kind", string(kind)), zap.Error(err))
		http.Error(w, "Failed to start run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, started(run))
}

// ListRuns lists recent runs
// @Summary List runs
// @Tags runs
// @Produce json
// @Param limit query int false "Maximum runs returned" default(50)
// @Success 200 {array} model.Run
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 50)
	if !ok {
		http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return
	}
	runs, err := store.ListRuns(limit)
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns a run with its stage progress
// @Summary Get run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	stages, err := store.GetRunStages(run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve stages", http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"run":    run,
		"stages": stages,
	}
	if run.Status == model.RunCompleted && run.Spec.Task == model.TaskReport && h.outputs != nil {
		resp["download_url"] = h.outputs.GetDownloadURL(run.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRunErrors lists the errors of a run
// @Summary Get run errors
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func (h *Handler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID := router.Segment(r, 3)
	errs, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetRunSummary returns the aggregation of a returns run. With sort=cost
// the table is ordered by quantity times unit cost using the current COGs.
// @Summary Get run summary
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Param sort query string false "quantity or cost" Enums(quantity, cost)
// @Success 200 {object} model.AggregationView
// @Failure 404 {object} map[string]interface{} "No summary for run"
// @Router /runs/{id}/summary [get]
func (h *Handler) GetRunSummary(w http.ResponseWriter, r *http.Request) {
	runID := router.Segment(r, 3)

	switch r.URL.Query().Get("sort") {
	case "", "quantity":
	case "cost":
		h.costSortedSummary(w, r)
		return
	default:
		http.Error(w, "sort must be quantity or cost", http.StatusBadRequest)
		return
	}

	summary, err := store.GetRunSummary(runID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Summary not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to retrieve summary", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(summary)
}

func (h *Handler) costSortedSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	if run.Spec.Kind != model.KindReturns {
		http.Error(w, "Cost sort is only available for returns runs", http.StatusBadRequest)
		return
	}
	rows, err := store.GetReportRows(run.ID, 0, 0)
	if err != nil {
		http.Error(w, "Failed to retrieve rows", http.StatusInternalServerError)
		return
	}
	costs, err := store.GetCOGs()
	if err != nil {
		http.Error(w, "Failed to retrieve cost of goods", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pipeline.BuildReturnsView(rows, costs))
}

// GetRunCSV downloads the CSV of a report run
// @Summary Download run CSV
// @Tags runs
// @Produce text/csv
// @Param id path string true "Run ID"
// @Success 200 {string} string "CSV file"
// @Failure 404 {object} map[string]interface{} "No CSV for run"
// @Router /runs/{id}/csv [get]
func (h *Handler) GetRunCSV(w http.ResponseWriter, r *http.Request) {
	blob, err := store.GetCSV(router.Segment(r, 3))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "CSV not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to retrieve CSV", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", blob.Filename))
	w.Write([]byte(blob.Content))
}

// GetRunRows pages through the decoded rows of a run
// @Summary Get run rows
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Param limit query int false "Page size" default(100)
// @Param offset query int false "Rows to skip"
// @Success 200 {object} map[string]interface{} "Rows"
// @Router /runs/{id}/rows [get]
func (h *Handler) GetRunRows(w http.ResponseWriter, r *http.Request) {
	runID := router.Segment(r, 3)
	limit, okLimit := queryInt(r, "limit", 100)
	offset, okOffset := queryInt(r, "offset", 0)
	if !okLimit || !okOffset {
		http.Error(w, "limit and offset must be non-negative integers", http.StatusBadRequest)
		return
	}

	rows, err := store.GetReportRows(runID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to retrieve rows", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"rows":   rows,
		"count":  len(rows),
		"limit":  limit,
		"offset": offset,
	})
}

// GetRunOutputs lists the files exported for a run
// @Summary List run exports
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Exported files"
// @Router /runs/{id}/outputs [get]
func (h *Handler) GetRunOutputs(w http.ResponseWriter, r *http.Request) {
	runID := router.Segment(r, 3)
	if h.outputs == nil {
		http.Error(w, "Exports are disabled", http.StatusNotFound)
		return
	}
	files, err := h.outputs.ListRunFiles(runID)
	if err != nil {
		http.Error(w, "Failed to list outputs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"files":  files,
		"count":  len(files),
	})
}

// RetryRun starts a new run with the spec of a finished one
// @Summary Retry run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 202 {object} map[string]interface{} "Retry started"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 409 {object} map[string]interface{} "Run still active"
// @Router /runs/{id}/retry [post]
func (h *Handler) RetryRun(w http.ResponseWriter, r *http.Request) {
	runID := router.Segment(r, 3)
	run, err := h.runner.RetryRun(runID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	case errors.Is(err, pipeline.ErrRunActive):
		http.Error(w, "Run is still active", http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("retry failed", zap.String("run_id", runID), zap.Error(err))
		http.Error(w, "Failed to retry run", http.StatusInternalServerError)
		return
	}

	resp := started(run)
	resp["message"] = "Retry started"
	resp["retry_of"] = runID
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	run, err := store.GetRun(router.Segment(r, 3))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, "Failed to retrieve run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}
