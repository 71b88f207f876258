package api

import (
	"go-report-pipeline/internal/api/handler"
	"go-report-pipeline/pkg/router"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.POST("/api/v1/reports/*", h.CreateReportRun)

	r.GET("/api/v1/runs", h.ListRuns)
	// More specific routes win over the generic run route
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/*/summary", h.GetRunSummary)
	r.GET("/api/v1/runs/*/csv", h.GetRunCSV)
	r.GET("/api/v1/runs/*/rows", h.GetRunRows)
	r.GET("/api/v1/runs/*/outputs", h.GetRunOutputs)
	r.POST("/api/v1/runs/*/retry", h.RetryRun)
	r.GET("/api/v1/runs/*", h.GetRun)

	r.POST("/api/v1/shipments/sync", h.SyncShipments)
	r.GET("/api/v1/shipments", h.ListShipments)

	r.POST("/api/v1/fees/sync", h.SyncOrderFees)
	r.GET("/api/v1/fees", h.ListOrderFees)
	r.GET("/api/v1/fee-previews", h.ListFeePreviews)

	r.GET("/api/v1/cogs", h.GetCOGs)
	r.POST("/api/v1/cogs", h.UploadCOGs)

	r.Mount("/metrics", promhttp.Handler())
	r.Mount("/swagger/", httpSwagger.WrapHandler)
}
