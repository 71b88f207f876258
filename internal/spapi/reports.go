package spapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go-report-pipeline/internal/model"
)

const reportsPath = "/reports/2021-06-30"

type createReportRequest struct {
	ReportType     string   `json:"reportType"`
	MarketplaceIDs []string `json:"marketplaceIds"`
	DataStartTime  string   `json:"dataStartTime,omitempty"`
	DataEndTime    string   `json:"dataEndTime,omitempty"`
}

type createReportResponse struct {
	ReportID string `json:"reportId"`
}

// CreateReport submits a report request and returns the report id
func (c *Client) CreateReport(ctx context.Context, reportType string, params model.ReportParameters) (string, error) {
	body := createReportRequest{
		ReportType:     reportType,
		MarketplaceIDs: params.MarketplaceIDs,
	}
	if len(body.MarketplaceIDs) == 0 {
		body.MarketplaceIDs = []string{c.cfg.MarketplaceID}
	}
	if params.DataStartTime != nil {
		body.DataStartTime = params.DataStartTime.UTC().Format(time.RFC3339)
	}
	if params.DataEndTime != nil {
		body.DataEndTime = params.DataEndTime.UTC().Format(time.RFC3339)
	}

	var resp createReportResponse
	if err := c.do(ctx, http.MethodPost, reportsPath+"/reports", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.ReportID == "" {
		return "", fmt.Errorf("create report: response has no reportId")
	}
	return resp.ReportID, nil
}

// processingStatus values the API uses where the job status names differ.
// Anything else passes through and unknown values fail parsing downstream.
var wireStatuses = map[string]string{
	"IN_QUEUE": model.StatusQueued.String(),
	"FATAL":    model.StatusFailed.String(),
}

// GetReport fetches the processing status of a report
func (c *Client) GetReport(ctx context.Context, reportID string) (model.ReportStatus, error) {
	var status model.ReportStatus
	if err := c.do(ctx, http.MethodGet, reportsPath+"/reports/"+url.PathEscape(reportID), nil, nil, &status); err != nil {
		return status, err
	}
	if name, ok := wireStatuses[status.ProcessingStatus]; ok {
		status.ProcessingStatus = name
	}
	return status, nil
}

// GetReportDocument resolves a document id to its download url
func (c *Client) GetReportDocument(ctx context.Context, documentID string) (model.ReportDocument, error) {
	var doc model.ReportDocument
	err := c.do(ctx, http.MethodGet, reportsPath+"/documents/"+url.PathEscape(documentID), nil, nil, &doc)
	return doc, err
}

// Download fetches an artifact from its pre-signed url. The bytes are
// returned as stored; decompression is up to the caller.
func (c *Client) Download(ctx context.Context, artifactURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		apiCallsTotal.WithLabelValues("download", "failure").Inc()
		return nil, fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		apiCallsTotal.WithLabelValues("download", "failure").Inc()
		return nil, &APIError{Method: http.MethodGet, Path: "artifact", StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	apiCallsTotal.WithLabelValues("download", "success").Inc()
	return raw, nil
}
