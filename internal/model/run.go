package model

import "time"

// Run statuses recorded in the store
const (
	RunPending     = "pending"
	RunSubmitting  = "submitting"
	RunPolling     = "polling"
	RunDownloading = "downloading"
	RunDecoding    = "decoding"
	RunAggregating = "aggregating"
	RunScanning    = "scanning"
	RunEnriching   = "enriching"
	RunCompleted   = "completed"
	RunFailed      = "failed"
)

// Run tasks
const (
	TaskReport       = "report"
	TaskShipmentSync = "shipment-sync"
	TaskOrderFeeSync = "order-fee-sync"
)

// RunSpec is what a run was started with; retries reuse it. Kind is only
// set for report runs. Offset counts 30-day windows back from now; Months
// overrides the default lookback of a returns report.
type RunSpec struct {
	Task   string     `json:"task"`
	Kind   ReportKind `json:"kind,omitempty"`
	Offset int        `json:"offset,omitempty"`
	Months int        `json:"months,omitempty"`
}

// Label names the run in logs and metrics
func (s RunSpec) Label() string {
	if s.Task == TaskReport || s.Task == "" {
		return string(s.Kind)
	}
	return s.Task
}

// Run is a pipeline run as stored
type Run struct {
	ID        string    `json:"id"`
	Spec      RunSpec   `json:"spec"`
	Status    string    `json:"status"`
	ReportID  string    `json:"report_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the run has finished
func (r Run) Terminal() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}

// RunEvent is published when a run finishes
type RunEvent struct {
	Type      string    `json:"type"` // run.completed, run.failed
	RunID     string    `json:"run_id"`
	Spec      RunSpec   `json:"spec"`
	ReportID  string    `json:"report_id,omitempty"`
	Records   int       `json:"records"`
	Error     string    `json:"error,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	At        time.Time `json:"at"`
}

// RunError is one error recorded against a run
type RunError struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// StageProgress records start/end of one stage of a run
type StageProgress struct {
	Stage     string     `json:"stage"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Processed int        `json:"processed"`
	Failed    int        `json:"failed"`
}
