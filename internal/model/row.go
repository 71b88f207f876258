package model

// Row is one decoded record. Columns keeps header order; Values is keyed by
// the normalized column name.
type Row struct {
	Columns []string          `json:"columns"`
	Values  map[string]string `json:"values"`
}

// NewRow builds a row from a header and a field slice of the same length.
func NewRow(columns, fields []string) Row {
	values := make(map[string]string, len(columns))
	for i, c := range columns {
		values[c] = fields[i]
	}
	return Row{Columns: columns, Values: values}
}

// Get returns the value of the first present column among names.
func (r Row) Get(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := r.Values[n]; ok {
			return v, true
		}
	}
	return "", false
}

// Fields returns the values in column order.
func (r Row) Fields() []string {
	out := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		out[i] = r.Values[c]
	}
	return out
}
