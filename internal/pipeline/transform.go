package pipeline

import (
	"regexp"
	"strings"
	"time"

	"go-report-pipeline/internal/model"
	"go-report-pipeline/pkg/utils"
)

// Attribute and field keys shared with the report API client
const (
	AttrShipmentName   = "ShipmentName"
	AttrShipmentStatus = "ShipmentStatus"
	AttrCreatedDate    = "CreatedDate"

	FieldQuantityShipped    = "quantity_shipped"
	FieldQuantityReceived   = "quantity_received"
	FieldFBAFee             = "fba_fee"
	FieldCommissionFee      = "commission_fee"
	FieldDigitalServicesFee = "digital_services_fee"
)

// ShipmentFields and OrderFeeFields are the enrichment fields per family
var (
	ShipmentFields = []string{FieldQuantityShipped, FieldQuantityReceived}
	OrderFeeFields = []string{FieldFBAFee, FieldCommissionFee, FieldDigitalServicesFee}
)

// ------------------- Fee previews -------------------

// FeePreviewsFromRows maps rows decoded with raw headers. Amounts that are
// missing or not numeric become 0.
func FeePreviewsFromRows(rows []model.Row) []model.FeePreview {
	previews := make([]model.FeePreview, 0, len(rows))
	for _, row := range rows {
		previews = append(previews, model.FeePreview{
			SKU:                     fieldValue(row, "sku"),
			ASIN:                    fieldValue(row, "asin"),
			ProductName:             fieldValue(row, "product-name"),
			YourPrice:               utils.ParseFloat(fieldValue(row, "your-price")),
			SalesPrice:              utils.ParseFloat(fieldValue(row, "sales-price")),
			EstimatedFeeTotal:       utils.ParseFloat(fieldValue(row, "estimated-fee-total")),
			EstimatedReferralFee:    utils.ParseFloat(fieldValue(row, "estimated-referral-fee-per-unit")),
			EstimatedFulfillmentFee: utils.ParseFloat(fieldValue(row, "expected-domestic-fulfilment-fee-per-unit")),
		})
	}
	return previews
}

// ------------------- Shipments -------------------

var nameDate = regexp.MustCompile(`\((\d{2}/\d{2}/\d{4})`)

// ShipmentMonth takes the month from the structured created date when there is
// one, else from a "(DD/MM/YYYY" fragment of the shipment name.
func ShipmentMonth(attrs map[string]string) string {
	if t, ok := utils.ParseDate(attrs[AttrCreatedDate]); ok {
		return utils.MonthKey(t.UTC())
	}
	m := nameDate.FindStringSubmatch(attrs[AttrShipmentName])
	if m == nil {
		return ""
	}
	t, err := time.Parse("02/01/2006", m[1])
	if err != nil {
		return ""
	}
	return utils.MonthKey(t)
}

// ShipmentSummaries flattens enriched shipments for storage. A CLOSED shipment
// whose received quantity differs from the shipped one is a discrepancy.
func ShipmentSummaries(entities []model.EnrichedEntity) []model.ShipmentSummary {
	out := make([]model.ShipmentSummary, 0, len(entities))
	for _, e := range entities {
		s := model.ShipmentSummary{
			ShipmentID:       e.ID,
			Name:             e.Attributes[AttrShipmentName],
			Status:           e.Attributes[AttrShipmentStatus],
			Month:            ShipmentMonth(e.Attributes),
			QuantityShipped:  int(e.Fields[FieldQuantityShipped]),
			QuantityReceived: int(e.Fields[FieldQuantityReceived]),
			Error:            e.Error,
		}
		s.Discrepancy = !s.Error && s.Status == "CLOSED" && s.QuantityReceived != s.QuantityShipped
		out = append(out, s)
	}
	return out
}

// EntityIDs returns the ids of listed entities in order
func EntityIDs(entities []model.Entity) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}

// ------------------- Order fees -------------------

// OrderFees maps enriched orders to fee records
func OrderFees(entities []model.EnrichedEntity) []model.OrderFee {
	out := make([]model.OrderFee, 0, len(entities))
	for _, e := range entities {
		out = append(out, model.OrderFee{
			OrderID:            e.ID,
			FBAFee:             e.Fields[FieldFBAFee],
			CommissionFee:      e.Fields[FieldCommissionFee],
			DigitalServicesFee: e.Fields[FieldDigitalServicesFee],
			Error:              e.Error,
		})
	}
	return out
}

// ------------------- Cost of goods -------------------

// ParseCOGs reads "sku,cog" CSV text. Lines with an empty sku or a negative or
// non-numeric cost are dropped. A header line is skipped the same way.
func ParseCOGs(text string) map[string]float64 {
	rows, err := DecodeRows("sku,cog\n"+text, SnakeCase)
	costs := make(map[string]float64)
	if err != nil {
		return costs
	}
	for _, row := range rows {
		sku := strings.TrimSpace(fieldValue(row, "sku"))
		raw := strings.TrimSpace(fieldValue(row, "cog"))
		if sku == "" || raw == "" {
			continue
		}
		cost := utils.ParseFloat(raw)
		if cost < 0 || (cost == 0 && !isZero(raw)) {
			continue
		}
		costs[sku] = cost
	}
	return costs
}

func isZero(s string) bool {
	return strings.Trim(s, "0.") == ""
}
