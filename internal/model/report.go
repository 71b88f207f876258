package model

import (
	"fmt"
	"strings"
	"time"
)

// ReportKind names one of the report families the pipeline acquires
type ReportKind string

const (
	KindOrders      ReportKind = "orders"
	KindReturns     ReportKind = "returns"
	KindShipments   ReportKind = "shipments"
	KindFeePreviews ReportKind = "fees"
)

// ReportType maps a report family to the marketplace report type it requests.
func (k ReportKind) ReportType() string {
	switch k {
	case KindOrders:
		return "GET_FLAT_FILE_ALL_ORDERS_DATA_BY_ORDER_DATE_GENERAL"
	case KindReturns:
		return "GET_FBA_FULFILLMENT_CUSTOMER_RETURNS_DATA"
	case KindShipments:
		return "GET_AMAZON_FULFILLED_SHIPMENTS_DATA_GENERAL"
	case KindFeePreviews:
		return "GET_FBA_ESTIMATED_FBA_FEES_TXT_DATA"
	default:
		return ""
	}
}

// ParseReportKind accepts the path segment used by the API and CLI
func ParseReportKind(s string) (ReportKind, error) {
	switch k := ReportKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindOrders, KindReturns, KindShipments, KindFeePreviews:
		return k, nil
	case "feepreviews", "fee-previews":
		return KindFeePreviews, nil
	default:
		return "", fmt.Errorf("unknown report kind: %s", s)
	}
}

// JobStatus is the processing status of a remote report job
type JobStatus int

const (
	StatusQueued JobStatus = iota
	StatusInProgress
	StatusDone
	StatusFailed
	StatusCancelled
)

var jobStatusNames = map[JobStatus]string{
	StatusQueued:     "QUEUED",
	StatusInProgress: "IN_PROGRESS",
	StatusDone:       "DONE",
	StatusFailed:     "FAILED",
	StatusCancelled:  "CANCELLED",
}

func (s JobStatus) String() string {
	if name, ok := jobStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("JobStatus(%d)", int(s))
}

// Terminal reports whether no further polling may happen from this status.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

// ParseJobStatus converts the wire processingStatus into a JobStatus.
// Unknown values are rejected rather than treated as "still running".
func ParseJobStatus(s string) (JobStatus, error) {
	for status, name := range jobStatusNames {
		if name == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown job status: %q", s)
}

// Compression is the compression algorithm of a report artifact
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "NONE"
	case CompressionGzip:
		return "GZIP"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// ParseCompression maps the optional compressionAlgorithm field. An empty
// value means the artifact is not compressed.
func ParseCompression(s string) (Compression, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return CompressionNone, true
	case "GZIP":
		return CompressionGzip, true
	default:
		return 0, false
	}
}

// ArtifactRef points at the downloadable payload of a finished job
type ArtifactRef struct {
	URL         string      `json:"url"`
	Compression Compression `json:"compression"`
}

// ReportParameters are sent with a report submission
type ReportParameters struct {
	MarketplaceIDs []string   `json:"marketplaceIds"`
	DataStartTime  *time.Time `json:"dataStartTime,omitempty"`
	DataEndTime    *time.Time `json:"dataEndTime,omitempty"`
}

// ReportJob tracks one submitted report. DocumentID is set by the status
// response once the job is DONE.
type ReportJob struct {
	ID          string       `json:"id"`
	Kind        ReportKind   `json:"kind"`
	Status      JobStatus    `json:"status"`
	DocumentID  string       `json:"document_id,omitempty"`
	ArtifactRef *ArtifactRef `json:"artifact_ref,omitempty"`
	Polls       int          `json:"polls"`
}

// ReportStatus is the status response for a submitted report
type ReportStatus struct {
	ReportID         string `json:"reportId"`
	ProcessingStatus string `json:"processingStatus"`
	ReportDocumentID string `json:"reportDocumentId,omitempty"`
}

// ReportDocument is the document lookup response
type ReportDocument struct {
	ReportDocumentID     string `json:"reportDocumentId"`
	URL                  string `json:"url"`
	CompressionAlgorithm string `json:"compressionAlgorithm,omitempty"`
}
