package star

import (
	"complaintsetl/pkg/records"
)

// DimensionRow is one deduplicated axis value with its surrogate key.
type DimensionRow struct {
	ID    int64
	Value string
}

// Dimension is the built dimension for one axis: distinct non-empty values
// of the resolved source column, keyed 1..N in first-appearance order.
type Dimension struct {
	Axis   Axis
	Source string // resolved staging column
	Rows   []DimensionRow

	ids map[string]int64
}

// BuildDimension resolves the axis's source column against the sanitized
// dataset and assigns surrogate keys. First-appearance order makes key
// assignment deterministic: an unchanged source yields identical keys on
// every run.
func BuildDimension(ds *records.Dataset, axis Axis) (*Dimension, error) {
	col := -1
	source := ""
	for _, c := range axis.SourceColumns {
		if ix := ds.ColumnIndex(c); ix >= 0 {
			col, source = ix, c
			break
		}
	}
	if col < 0 {
		return nil, &MissingColumnError{Axis: axis.Name, Candidates: axis.SourceColumns}
	}

	d := &Dimension{
		Axis:   axis,
		Source: source,
		ids:    make(map[string]int64),
	}
	for _, row := range ds.Rows {
		v := row[col]
		if v.IsEmpty() {
			continue
		}
		if _, seen := d.ids[v.Text]; seen {
			continue
		}
		id := int64(len(d.Rows) + 1)
		d.ids[v.Text] = id
		d.Rows = append(d.Rows, DimensionRow{ID: id, Value: v.Text})
	}
	return d, nil
}

// Lookup maps a raw cell to its surrogate key. Absent, blank, and unknown
// values have no key.
func (d *Dimension) Lookup(v records.Value) (int64, bool) {
	if v.IsEmpty() {
		return 0, false
	}
	id, ok := d.ids[v.Text]
	return id, ok
}

// Name returns the display value for a surrogate key, or "".
func (d *Dimension) Name(id int64) string {
	ix := int(id) - 1
	if ix < 0 || ix >= len(d.Rows) {
		return ""
	}
	return d.Rows[ix].Value
}

// tableRows renders the dimension as sink rows (id, value).
func (d *Dimension) tableRows() [][]any {
	out := make([][]any, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = []any{r.ID, r.Value}
	}
	return out
}
