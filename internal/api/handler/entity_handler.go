package handler

import (
	"encoding/json"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go-report-pipeline/internal/model"
	"go-report-pipeline/internal/pipeline"
	"go-report-pipeline/internal/store"

	"go.uber.org/zap"
)

const maxCOGsUpload = 4 << 20

// SyncShipments starts a shipment sync run
// @Summary Sync inbound shipments
// @Description Scan inbound shipments month by month and refresh received quantities
// @Tags shipments
// @Produce json
// @Success 202 {object} map[string]interface{} "Run started"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /shipments/sync [post]
func (h *Handler) SyncShipments(w http.ResponseWriter, r *http.Request) {
	h.startTask(w, model.TaskShipmentSync)
}

// SyncOrderFees starts an order fee sync run
// @Summary Sync order fees
// @Description Look up fees for orders from order reports that have none yet
// @Tags fees
// @Produce json
// @Success 202 {object} map[string]interface{} "Run started"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /fees/sync [post]
func (h *Handler) SyncOrderFees(w http.ResponseWriter, r *http.Request) {
	h.startTask(w, model.TaskOrderFeeSync)
}

func (h *Handler) startTask(w http.ResponseWriter, task string) {
	run, err := h.runner.Start(model.RunSpec{Task: task})
	if err != nil {
		h.logger.Error("failed to start run", zap.String("task", task), zap.Error(err))
		http.Error(w, "Failed to start run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, started(run))
}

// ListShipments returns the latest shipment snapshot
// @Summary List shipments
// @Tags shipments
// @Produce json
// @Param status query string false "Shipment status"
// @Param discrepancy query bool false "Only closed shipments whose received quantity differs"
// @Success 200 {object} map[string]interface{} "Shipments"
// @Router /shipments [get]
func (h *Handler) ListShipments(w http.ResponseWriter, r *http.Request) {
	filter := store.ShipmentFilter{Status: strings.ToUpper(r.URL.Query().Get("status"))}
	if s := r.URL.Query().Get("discrepancy"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			http.Error(w, "discrepancy must be a boolean", http.StatusBadRequest)
			return
		}
		filter.DiscrepancyOnly = b
	}

	shipments, err := store.ListShipments(filter)
	if err != nil {
		http.Error(w, "Failed to retrieve shipments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shipments": shipments,
		"count":     len(shipments),
	})
}

// ListOrderFees returns the fees looked up so far
// @Summary List order fees
// @Tags fees
// @Produce json
// @Success 200 {object} map[string]interface{} "Order fees"
// @Router /fees [get]
func (h *Handler) ListOrderFees(w http.ResponseWriter, r *http.Request) {
	fees, err := store.ListOrderFees()
	if err != nil {
		http.Error(w, "Failed to retrieve fees", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fees":  fees,
		"count": len(fees),
	})
}

// ListFeePreviews returns the latest estimated fee report
// @Summary List fee previews
// @Tags fees
// @Produce json
// @Success 200 {object} map[string]interface{} "Fee previews"
// @Router /fee-previews [get]
func (h *Handler) ListFeePreviews(w http.ResponseWriter, r *http.Request) {
	previews, err := store.ListFeePreviews()
	if err != nil {
		http.Error(w, "Failed to retrieve fee previews", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"previews": previews,
		"count":    len(previews),
	})
}

// GetCOGs returns unit cost by sku
// @Summary Get cost of goods
// @Tags cogs
// @Produce json
// @Success 200 {object} map[string]interface{} "Costs by sku"
// @Router /cogs [get]
func (h *Handler) GetCOGs(w http.ResponseWriter, r *http.Request) {
	costs, err := store.GetCOGs()
	if err != nil {
		http.Error(w, "Failed to retrieve cost of goods", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cogs":  costs,
		"count": len(costs),
	})
}

type cogsRequest struct {
	COGs map[string]float64 `json:"cogs"`
}

// UploadCOGs replaces the whole cost table. The body is either JSON
// {"cogs": {"SKU": cost}} or "sku,cost" lines without a header.
// @Summary Replace cost of goods
// @Tags cogs
// @Accept json
// @Accept text/csv
// @Produce json
// @Success 200 {object} map[string]interface{} "Costs stored"
// @Failure 400 {object} map[string]interface{} "No valid cost lines"
// @Router /cogs [post]
func (h *Handler) UploadCOGs(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCOGsUpload))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var costs map[string]float64
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req cogsRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
		costs = validCosts(req.COGs)
	} else {
		costs = pipeline.ParseCOGs(string(body))
	}
	if len(costs) == 0 {
		http.Error(w, "No valid cost lines", http.StatusBadRequest)
		return
	}

	if err := store.ReplaceCOGs(costs); err != nil {
		h.logger.Error("failed to store cogs", zap.Error(err))
		http.Error(w, "Failed to store cost of goods", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Cost of goods replaced",
		"count":   len(costs),
	})
}

func validCosts(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for sku, cost := range in {
		sku = strings.TrimSpace(sku)
		if sku == "" || cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
			continue
		}
		out[sku] = cost
	}
	return out
}
