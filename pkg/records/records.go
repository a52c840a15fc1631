// Package records defines the in-memory representation of a tabular source
// dataset: an ordered column list plus rows of text-or-absent values.
//
// The value model is deliberately a closed two-state union (text | absent)
// rather than an open dynamic type. No numeric or date parsing happens here;
// typing is deferred to the storage sink.
package records

import "strings"

// Value is a single cell: either present text or absent.
//
// The zero Value is absent. Empty-but-present text is preserved as present;
// callers that want "empty means missing" semantics use IsEmpty.
type Value struct {
	Text    string
	Present bool
}

// String returns a present Value.
func String(s string) Value { return Value{Text: s, Present: true} }

// Missing returns an absent Value.
func Missing() Value { return Value{} }

// IsEmpty reports whether the value is absent or present-but-blank.
// Dimension and fact builders treat both the same way (no key, NULL fk).
func (v Value) IsEmpty() bool {
	return !v.Present || strings.TrimSpace(v.Text) == ""
}

// Bind converts the value to a driver-bindable form: the text for present
// values, nil (SQL NULL) for absent ones.
func (v Value) Bind() any {
	if !v.Present {
		return nil
	}
	return v.Text
}

// Dataset is a fully materialized tabular source: column labels in source
// order and one row per source record, each row aligned to Columns.
//
// The pipeline is full-refresh by design; the whole dataset is held in
// memory for the duration of a run.
type Dataset struct {
	Columns []string
	Rows    [][]Value
}

// ColumnIndex returns the position of name in Columns, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all values of one column in row order.
// Returns nil if the column does not exist.
func (d *Dataset) Column(name string) []Value {
	ix := d.ColumnIndex(name)
	if ix < 0 {
		return nil
	}
	out := make([]Value, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[ix]
	}
	return out
}

// Renamed returns a shallow copy of the dataset with columns renamed through
// the mapping. Rows are shared with the receiver; only the column header
// slice is new. Labels without a mapping entry are kept as-is.
//
// Renaming is by label, so duplicate identical labels all map to the same
// new name; callers that need per-position renames replace Columns directly.
func (d *Dataset) Renamed(mapping map[string]string) *Dataset {
	cols := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		if n, ok := mapping[c]; ok {
			cols[i] = n
		} else {
			cols[i] = c
		}
	}
	return &Dataset{Columns: cols, Rows: d.Rows}
}

// HasEdgeSpace reports whether s starts or ends with ASCII whitespace.
// It lets hot paths skip strings.TrimSpace for the common clean case.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}
