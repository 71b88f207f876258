package spapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-report-pipeline/internal/model"
	"go-report-pipeline/internal/pipeline"
)

const inboundPath = "/fba/inbound/v0/shipments"

// ShipmentStatuses is the status filter sent with every date range listing
var ShipmentStatuses = []string{
	"WORKING", "SHIPPED", "RECEIVING", "CANCELLED", "CLOSED",
	"ERROR", "IN_TRANSIT", "DELIVERED", "CHECKED_IN",
}

const shipmentPageSize = 50

type shipmentData struct {
	ShipmentID                     string `json:"ShipmentId"`
	ShipmentName                   string `json:"ShipmentName"`
	ShipmentStatus                 string `json:"ShipmentStatus"`
	DestinationFulfillmentCenterID string `json:"DestinationFulfillmentCenterId"`
}

type shipmentsResponse struct {
	Payload struct {
		ShipmentData []shipmentData `json:"ShipmentData"`
		NextToken    string         `json:"NextToken"`
	} `json:"payload"`
}

type itemData struct {
	SellerSKU        string `json:"SellerSKU"`
	QuantityShipped  int    `json:"QuantityShipped"`
	QuantityReceived int    `json:"QuantityReceived"`
}

type itemsResponse struct {
	Payload struct {
		ItemData  []itemData `json:"ItemData"`
		NextToken string     `json:"NextToken"`
	} `json:"payload"`
}

func (s shipmentData) entity() model.Entity {
	attrs := map[string]string{
		pipeline.AttrShipmentName:   s.ShipmentName,
		pipeline.AttrShipmentStatus: s.ShipmentStatus,
	}
	if s.DestinationFulfillmentCenterID != "" {
		attrs["DestinationFulfillmentCenterId"] = s.DestinationFulfillmentCenterID
	}
	return model.Entity{ID: s.ShipmentID, Attributes: attrs}
}

// ListWindow lists inbound shipments last updated within w, following
// NextToken pages.
func (c *Client) ListWindow(ctx context.Context, w model.Window) ([]model.Entity, error) {
	query := url.Values{
		"MarketplaceId":      {c.cfg.MarketplaceID},
		"QueryType":          {"DATE_RANGE"},
		"ShipmentStatusList": {strings.Join(ShipmentStatuses, ",")},
		"PageSize":           {strconv.Itoa(shipmentPageSize)},
		"LastUpdatedAfter":   {w.Start.UTC().Format(time.RFC3339)},
		"LastUpdatedBefore":  {w.End.UTC().Format(time.RFC3339)},
	}
	return c.listShipments(ctx, query)
}

func (c *Client) listShipments(ctx context.Context, query url.Values) ([]model.Entity, error) {
	var out []model.Entity
	for {
		var resp shipmentsResponse
		if err := c.do(ctx, http.MethodGet, inboundPath, query, nil, &resp); err != nil {
			return out, err
		}
		for _, s := range resp.Payload.ShipmentData {
			out = append(out, s.entity())
		}
		if resp.Payload.NextToken == "" {
			return out, nil
		}
		query = url.Values{
			"MarketplaceId": {c.cfg.MarketplaceID},
			"QueryType":     {"NEXT_TOKEN"},
			"NextToken":     {resp.Payload.NextToken},
		}
	}
}

// ShipmentSource enriches inbound shipments with their item quantities
type ShipmentSource struct {
	Client *Client
}

// ListChunk looks up shipments by id and returns their attributes
func (s ShipmentSource) ListChunk(ctx context.Context, ids []string) (map[string]map[string]string, error) {
	entities, err := s.Client.listShipments(ctx, url.Values{
		"MarketplaceId":  {s.Client.cfg.MarketplaceID},
		"QueryType":      {"SHIPMENT"},
		"ShipmentIdList": {strings.Join(ids, ",")},
	})
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]map[string]string, len(entities))
	for _, e := range entities {
		attrs[e.ID] = e.Attributes
	}
	return attrs, nil
}

// LookupItem sums shipped and received quantities over the shipment's items
func (s ShipmentSource) LookupItem(ctx context.Context, id string) (map[string]float64, error) {
	path := inboundPath + "/" + url.PathEscape(id) + "/items"
	query := url.Values{"MarketplaceId": {s.Client.cfg.MarketplaceID}}

	var shipped, received int
	for {
		var resp itemsResponse
		if err := s.Client.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Payload.ItemData {
			shipped += item.QuantityShipped
			received += item.QuantityReceived
		}
		if resp.Payload.NextToken == "" {
			break
		}
		query = url.Values{
			"MarketplaceId": {s.Client.cfg.MarketplaceID},
			"NextToken":     {resp.Payload.NextToken},
		}
	}
	return map[string]float64{
		pipeline.FieldQuantityShipped:  float64(shipped),
		pipeline.FieldQuantityReceived: float64(received),
	}, nil
}
