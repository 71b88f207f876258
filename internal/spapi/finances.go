package spapi

import (
	"context"
	"math"
	"net/http"
	"net/url"

	"go-report-pipeline/internal/pipeline"
)

type feeAmount struct {
	CurrencyCode   string  `json:"CurrencyCode"`
	CurrencyAmount float64 `json:"CurrencyAmount"`
}

type itemFee struct {
	FeeType   string    `json:"FeeType"`
	FeeAmount feeAmount `json:"FeeAmount"`
}

type financialEventsResponse struct {
	Payload struct {
		FinancialEvents struct {
			ShipmentEventList []struct {
				ShipmentItemList []struct {
					ItemFeeList []itemFee `json:"ItemFeeList"`
				} `json:"ShipmentItemList"`
			} `json:"ShipmentEventList"`
		} `json:"FinancialEvents"`
	} `json:"payload"`
}

// fee types and the field each one fills
var feeFields = map[string]string{
	"FBAPerUnitFulfillmentFee": pipeline.FieldFBAFee,
	"Commission":               pipeline.FieldCommissionFee,
	"DigitalServicesFee":       pipeline.FieldDigitalServicesFee,
}

// OrderFeeSource looks up the fees charged on an order. It has no chunk
// listing; every order is a single lookup.
type OrderFeeSource struct {
	Client *Client
}

// LookupItem reads the fee list of the first item of the first shipment
// event. Fees are stored as positive amounts; missing ones are 0.
func (s OrderFeeSource) LookupItem(ctx context.Context, orderID string) (map[string]float64, error) {
	var resp financialEventsResponse
	path := "/finances/v0/orders/" + url.PathEscape(orderID) + "/financialEvents"
	if err := s.Client.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}

	fields := map[string]float64{
		pipeline.FieldFBAFee:             0,
		pipeline.FieldCommissionFee:      0,
		pipeline.FieldDigitalServicesFee: 0,
	}
	events := resp.Payload.FinancialEvents.ShipmentEventList
	if len(events) == 0 || len(events[0].ShipmentItemList) == 0 {
		return fields, nil
	}
	seen := make(map[string]bool)
	for _, fee := range events[0].ShipmentItemList[0].ItemFeeList {
		field, ok := feeFields[fee.FeeType]
		if !ok || seen[field] {
			continue
		}
		seen[field] = true
		fields[field] = math.Abs(fee.FeeAmount.CurrencyAmount)
	}
	return fields, nil
}
