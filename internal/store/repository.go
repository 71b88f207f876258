package store

import "go-report-pipeline/internal/model"

// Repository exposes the package-level store as the interface the pipeline
// runner takes.
type Repository struct{}

func (Repository) CreateRun(run model.Run) error { return SaveRun(run) }
func (Repository) GetRun(runID string) (*model.Run, error) { return GetRun(runID) }
func (Repository) UpdateRunStatus(runID, status string) error { return UpdateRunStatus(runID, status) }
func (Repository) SetRunReportID(runID, reportID string) error { return SetRunReportID(runID, reportID) }
func (Repository) SaveRunError(runID, stage string, err error) error {
	return SaveRunError(runID, stage, err)
}
func (Repository) SaveStageProgress(runID string, p model.StageProgress) error {
	return SaveStageProgress(runID, p)
}
func (Repository) SaveReportRows(runID string, rows []model.Row) error {
	return SaveReportRows(runID, rows)
}
func (Repository) SaveRunSummary(runID string, summary interface{}) error {
	return SaveRunSummary(runID, summary)
}
func (Repository) SaveCSV(runID string, blob model.CSVBlob) error { return SaveCSV(runID, blob) }
func (Repository) ReplaceFeePreviews(runID string, previews []model.FeePreview) error {
	return ReplaceFeePreviews(runID, previews)
}
func (Repository) SaveEnrichedEntities(runID, family string, entities []model.EnrichedEntity) error {
	return SaveEnrichedEntities(runID, family, entities)
}
func (Repository) ReplaceShipments(runID string, shipments []model.ShipmentSummary) error {
	return ReplaceShipments(runID, shipments)
}
func (Repository) PendingOrderIDs(limit int) ([]string, error) { return PendingOrderIDs(limit) }
func (Repository) SaveOrderFees(runID string, fees []model.OrderFee) error {
	return SaveOrderFees(runID, fees)
}
