package model

import "time"

// Window is a half-open time range [Start, End)
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Shift moves the window back by months, keeping its length in months.
func (w Window) Shift(months int) Window {
	return Window{Start: w.Start.AddDate(0, -months, 0), End: w.Start}
}

// Entity is one item returned by a windowed listing
type Entity struct {
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes"`
}

// EnrichedEntity is an identifier with the numeric detail looked up for it.
// Error marks a failed lookup whose Fields are all zero.
type EnrichedEntity struct {
	ID           string             `json:"id"`
	Attributes   map[string]string  `json:"attributes,omitempty"`
	Fields       map[string]float64 `json:"fields"`
	Error        bool               `json:"error"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

// ShipmentSummary is the flat shipment record persisted after enrichment
type ShipmentSummary struct {
	ShipmentID       string `json:"shipment_id"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	Month            string `json:"month,omitempty"`
	QuantityShipped  int    `json:"quantity_shipped"`
	QuantityReceived int    `json:"quantity_received"`
	Discrepancy      bool   `json:"discrepancy"`
	Error            bool   `json:"error"`
}

// OrderFee holds the fees looked up for one order
type OrderFee struct {
	OrderID            string  `json:"amazon_order_id"`
	FBAFee             float64 `json:"fba_fee"`
	CommissionFee      float64 `json:"commission_fee"`
	DigitalServicesFee float64 `json:"digital_services_fee"`
	Error              bool    `json:"error"`
}

// FeePreview is one line of the estimated fee report
type FeePreview struct {
	SKU                     string  `json:"sku"`
	ASIN                    string  `json:"asin"`
	ProductName             string  `json:"product_name"`
	YourPrice               float64 `json:"your_price"`
	SalesPrice              float64 `json:"sales_price"`
	EstimatedFeeTotal       float64 `json:"estimated_fee_total"`
	EstimatedReferralFee    float64 `json:"estimated_referral_fee"`
	EstimatedFulfillmentFee float64 `json:"estimated_fulfillment_fee"`
}
