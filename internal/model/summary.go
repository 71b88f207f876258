package model

// MonthBucket accumulates quantities for one calendar month (YYYY-MM)
type MonthBucket struct {
	Month      string         `json:"month"`
	Total      int            `json:"quantity"`
	Categories map[string]int `json:"dispositions"`
	Secondary  map[string]int `json:"skuQuantities"`
}

// EntitySummary accumulates quantities for one business entity
type EntitySummary struct {
	Key           string         `json:"key"`
	Title         string         `json:"title"`
	Secondary     string         `json:"sku,omitempty"`
	Secondaries   []string       `json:"skus,omitempty"`
	TotalQuantity int            `json:"totalQuantity"`
	Monthly       map[string]int `json:"monthlyQuantities"`
}

// MonthLabel pairs a YYYY-MM key with its presentation label
type MonthLabel struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ChartView is the chart half of an aggregation result
type ChartView struct {
	Labels          []string                  `json:"labels"`
	Values          []int                     `json:"values"`
	Dispositions    []string                  `json:"dispositions"`
	DispositionData map[string][]int          `json:"dispositionData"`
	SKUData         map[string]map[string]int `json:"skuData"`
}

// AggregationView is what the presentation layer consumes for a report run
type AggregationView struct {
	Chart ChartView       `json:"chart"`
	Table []EntitySummary `json:"table"`
}

// CSVBlob is a raw download with a suggested file name
type CSVBlob struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}
