package pipeline

import (
	"sort"
	"strings"

	"go-report-pipeline/internal/model"
	"go-report-pipeline/pkg/utils"
)

// Field names accept "|" separated aliases; the first non-empty one wins.
func fieldValue(row model.Row, field string) string {
	if field == "" {
		return ""
	}
	for _, name := range strings.Split(field, "|") {
		if v, ok := row.Get(name); ok && v != "" {
			return v
		}
	}
	return ""
}

func monthOf(row model.Row, field string) (string, bool) {
	t, ok := utils.ParseDate(fieldValue(row, field))
	if !ok {
		return "", false
	}
	return utils.MonthKey(t.UTC()), true
}

// ------------------- Month buckets -------------------

// MonthFold names the columns a month fold reads
type MonthFold struct {
	DateField         string
	CategoryField     string
	SecondaryKeyField string
	QuantityField     string
	DefaultCategory   string
}

// FoldIntoMonthBuckets sums quantities per YYYY-MM of DateField. Rows with a
// missing or unparsable date are skipped.
func FoldIntoMonthBuckets(rows []model.Row, f MonthFold) map[string]model.MonthBucket {
	buckets := make(map[string]model.MonthBucket)
	for _, row := range rows {
		month, ok := monthOf(row, f.DateField)
		if !ok {
			continue
		}
		qty := utils.ParseInt(fieldValue(row, f.QuantityField))

		bucket, exists := buckets[month]
		if !exists {
			bucket = model.MonthBucket{
				Month:      month,
				Categories: make(map[string]int),
				Secondary:  make(map[string]int),
			}
		}
		bucket.Total += qty

		if f.CategoryField != "" {
			category := fieldValue(row, f.CategoryField)
			if category == "" {
				category = f.DefaultCategory
			}
			if category != "" {
				bucket.Categories[category] += qty
			}
		}
		if key := fieldValue(row, f.SecondaryKeyField); key != "" {
			bucket.Secondary[key] += qty
		}
		buckets[month] = bucket
	}
	return buckets
}

// ------------------- Entity summaries -------------------

// EntityFold names the columns an entity fold reads
type EntityFold struct {
	PrimaryKeyField   string
	SecondaryKeyField string
	DateField         string
	QuantityField     string
	TitleField        string
	DefaultTitle      string
}

// FoldIntoEntitySummaries sums quantities per primary key. Rows without a
// primary key or a parsable date are skipped. Title and the primary
// secondary key come from the first row seen for the entity.
func FoldIntoEntitySummaries(rows []model.Row, f EntityFold) map[string]model.EntitySummary {
	summaries := make(map[string]model.EntitySummary)
	for _, row := range rows {
		key := fieldValue(row, f.PrimaryKeyField)
		if key == "" {
			continue
		}
		month, ok := monthOf(row, f.DateField)
		if !ok {
			continue
		}
		qty := utils.ParseInt(fieldValue(row, f.QuantityField))
		secondary := fieldValue(row, f.SecondaryKeyField)

		summary, exists := summaries[key]
		if !exists {
			title := fieldValue(row, f.TitleField)
			if title == "" {
				title = f.DefaultTitle
			}
			summary = model.EntitySummary{
				Key:       key,
				Title:     title,
				Secondary: secondary,
				Monthly:   make(map[string]int),
			}
		}
		if secondary != "" && !containsString(summary.Secondaries, secondary) {
			summary.Secondaries = append(summary.Secondaries, secondary)
		}
		summary.TotalQuantity += qty
		summary.Monthly[month] += qty
		summaries[key] = summary
	}
	return summaries
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ------------------- Sorting -------------------

// SummaryLess orders two entity summaries
type SummaryLess func(a, b model.EntitySummary) bool

// ByTotalQuantity puts the highest quantity first.
func ByTotalQuantity(a, b model.EntitySummary) bool {
	return a.TotalQuantity > b.TotalQuantity
}

// ByCostImpact puts the highest quantity x unit cost first. Costs are keyed
// by the summary's primary secondary key; unknown costs count as 0.
func ByCostImpact(costs map[string]float64) SummaryLess {
	return func(a, b model.EntitySummary) bool {
		return float64(a.TotalQuantity)*costs[a.Secondary] > float64(b.TotalQuantity)*costs[b.Secondary]
	}
}

// SortEntitySummaries flattens summaries into a slice ordered by less. Ties
// keep key order so the result does not depend on map iteration.
func SortEntitySummaries(summaries map[string]model.EntitySummary, less SummaryLess) []model.EntitySummary {
	if less == nil {
		less = ByTotalQuantity
	}
	out := make([]model.EntitySummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// MonthLabelsSortedChronologically returns bucket keys in calendar order with
// their "Jan 2024" labels.
func MonthLabelsSortedChronologically(buckets map[string]model.MonthBucket) []model.MonthLabel {
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	labels := make([]model.MonthLabel, len(keys))
	for i, k := range keys {
		labels[i] = model.MonthLabel{Key: k, Label: utils.MonthLabel(k)}
	}
	return labels
}

// ------------------- Returns view -------------------

var (
	returnsMonthFold = MonthFold{
		DateField:         "return-date|Return Date",
		CategoryField:     "detailed-disposition|Detailed Disposition",
		SecondaryKeyField: "sku|SKU",
		QuantityField:     "quantity|Quantity",
		DefaultCategory:   "Unknown",
	}
	returnsEntityFold = EntityFold{
		PrimaryKeyField:   "asin|ASIN",
		SecondaryKeyField: "sku|SKU",
		DateField:         "return-date|Return Date",
		QuantityField:     "quantity|Quantity",
		TitleField:        "product-name|Product Name",
		DefaultTitle:      "Unknown Product",
	}
)

// BuildReturnsView folds decoded returns rows into the chart and table the
// dashboard renders. A non-nil costs map sorts the table by cost impact.
func BuildReturnsView(rows []model.Row, costs map[string]float64) model.AggregationView {
	buckets := FoldIntoMonthBuckets(rows, returnsMonthFold)
	labels := MonthLabelsSortedChronologically(buckets)

	dispositionSet := make(map[string]struct{})
	for _, b := range buckets {
		for d := range b.Categories {
			dispositionSet[d] = struct{}{}
		}
	}
	dispositions := make([]string, 0, len(dispositionSet))
	for d := range dispositionSet {
		dispositions = append(dispositions, d)
	}
	sort.Strings(dispositions)

	chart := model.ChartView{
		Labels:          make([]string, len(labels)),
		Values:          make([]int, len(labels)),
		Dispositions:    dispositions,
		DispositionData: make(map[string][]int, len(buckets)),
		SKUData:         make(map[string]map[string]int, len(buckets)),
	}
	for i, l := range labels {
		b := buckets[l.Key]
		chart.Labels[i] = l.Label
		chart.Values[i] = b.Total

		perDisposition := make([]int, len(dispositions))
		for j, d := range dispositions {
			perDisposition[j] = b.Categories[d]
		}
		chart.DispositionData[l.Key] = perDisposition
		chart.SKUData[l.Key] = b.Secondary
	}

	var less SummaryLess = ByTotalQuantity
	if costs != nil {
		less = ByCostImpact(costs)
	}
	table := SortEntitySummaries(FoldIntoEntitySummaries(rows, returnsEntityFold), less)

	return model.AggregationView{Chart: chart, Table: table}
}
