package store

import (
	"encoding/json"
	"time"

	"go-report-pipeline/internal/model"
)

// ------------------- Fee previews -------------------

// ReplaceFeePreviews swaps the whole fee preview set for the rows of a run
func ReplaceFeePreviews(runID string, previews []model.FeePreview) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM fee_previews`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO fee_previews (sku, asin, product_name, your_price, sales_price,
		estimated_fee_total, estimated_referral_fee, estimated_fulfillment_fee, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range previews {
		if _, err = stmt.Exec(p.SKU, p.ASIN, p.ProductName, p.YourPrice, p.SalesPrice,
			p.EstimatedFeeTotal, p.EstimatedReferralFee, p.EstimatedFulfillmentFee, runID, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListFeePreviews returns the current fee previews by sku
func ListFeePreviews() ([]model.FeePreview, error) {
	rows, err := db.Query(`SELECT sku, asin, product_name, your_price, sales_price, estimated_fee_total,
		estimated_referral_fee, estimated_fulfillment_fee FROM fee_previews ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.FeePreview{}
	for rows.Next() {
		var p model.FeePreview
		if err := rows.Scan(&p.SKU, &p.ASIN, &p.ProductName, &p.YourPrice, &p.SalesPrice,
			&p.EstimatedFeeTotal, &p.EstimatedReferralFee, &p.EstimatedFulfillmentFee); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ------------------- Enriched entities -------------------

// SaveEnrichedEntities stores enrichment results of a run, error flag included
func SaveEnrichedEntities(runID, family string, entities []model.EnrichedEntity) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO enriched_entities
		(run_id, family, entity_id, attributes, fields, error, error_message) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entities {
		attrs, err := json.Marshal(e.Attributes)
		if err != nil {
			return err
		}
		fields, err := json.Marshal(e.Fields)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(runID, family, e.ID, string(attrs), string(fields), e.Error, e.ErrorMessage); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ------------------- Shipments -------------------

// ReplaceShipments swaps the shipment snapshot
func ReplaceShipments(runID string, shipments []model.ShipmentSummary) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM shipments`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO shipments (shipment_id, name, status, month, quantity_shipped,
		quantity_received, discrepancy, error, run_id, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, s := range shipments {
		if _, err = stmt.Exec(s.ShipmentID, s.Name, s.Status, s.Month, s.QuantityShipped,
			s.QuantityReceived, s.Discrepancy, s.Error, runID, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ShipmentFilter narrows ListShipments. Empty Status matches all.
type ShipmentFilter struct {
	Status          string
	DiscrepancyOnly bool
}

// ListShipments returns the snapshot, newest month first
func ListShipments(f ShipmentFilter) ([]model.ShipmentSummary, error) {
	query := `SELECT shipment_id, name, status, month, quantity_shipped, quantity_received, discrepancy, error
		FROM shipments WHERE (? = '' OR status = ?) AND (? = 0 OR discrepancy = 1)
		ORDER BY month DESC, shipment_id`
	rows, err := db.Query(query, f.Status, f.Status, f.DiscrepancyOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ShipmentSummary{}
	for rows.Next() {
		var s model.ShipmentSummary
		if err := rows.Scan(&s.ShipmentID, &s.Name, &s.Status, &s.Month, &s.QuantityShipped,
			&s.QuantityReceived, &s.Discrepancy, &s.Error); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ------------------- Order fees -------------------

// PendingOrderIDs returns ids from order reports that have no fee record yet,
// or only a failed one.
func PendingOrderIDs(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT DISTINCT r.entity_key FROM report_rows r
		WHERE r.kind = ? AND r.entity_key <> ''
		AND NOT EXISTS (SELECT 1 FROM order_fees f WHERE f.amazon_order_id = r.entity_key AND f.error = 0)
		ORDER BY r.entity_key LIMIT ?`, string(model.KindOrders), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveOrderFees upserts fee records by order id
func SaveOrderFees(runID string, fees []model.OrderFee) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO order_fees (amazon_order_id, fba_fee, commission_fee,
		digital_services_fee, error, run_id, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, f := range fees {
		if _, err = stmt.Exec(f.OrderID, f.FBAFee, f.CommissionFee, f.DigitalServicesFee, f.Error, runID, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListOrderFees returns all stored order fees
func ListOrderFees() ([]model.OrderFee, error) {
	rows, err := db.Query(`SELECT amazon_order_id, fba_fee, commission_fee, digital_services_fee, error
		FROM order_fees ORDER BY amazon_order_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.OrderFee{}
	for rows.Next() {
		var f model.OrderFee
		if err := rows.Scan(&f.OrderID, &f.FBAFee, &f.CommissionFee, &f.DigitalServicesFee, &f.Error); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ------------------- Cost of goods -------------------

// ReplaceCOGs swaps the whole cost table
func ReplaceCOGs(costs map[string]float64) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM cogs`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO cogs (sku, cost, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for sku, cost := range costs {
		if _, err = stmt.Exec(sku, cost, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetCOGs returns unit cost by sku
func GetCOGs() (map[string]float64, error) {
	rows, err := db.Query(`SELECT sku, cost FROM cogs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	costs := make(map[string]float64)
	for rows.Next() {
		var sku string
		var cost float64
		if err := rows.Scan(&sku, &cost); err != nil {
			return nil, err
		}
		costs[sku] = cost
	}
	return costs, rows.Err()
}
