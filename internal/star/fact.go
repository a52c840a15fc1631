package star

import (
	"complaintsetl/pkg/records"
)

// Fact is the built fact table: one row per source record, in source order.
//
// Row layout: key, one foreign key per axis (nil when the raw value was
// absent, blank, or unmapped), then the resolved passthrough columns.
type Fact struct {
	Columns []string
	Rows    [][]any

	// NaturalKey reports whether the key column was reused from the source
	// (text) rather than synthesized (1-based bigint sequence).
	NaturalKey bool

	// Passthrough holds the configured passthrough columns actually present
	// in the source schema, in configured order.
	Passthrough []string
}

// BuildFact derives the fact table from the sanitized dataset and the built
// dimensions. No record is ever dropped: a row whose foreign keys all fail
// to resolve still produces a fact row, so the fact row count always equals
// the staging row count.
func BuildFact(ds *records.Dataset, m Model, dims []*Dimension) *Fact {
	keyIx := -1
	if m.NaturalKeyColumn != "" {
		keyIx = ds.ColumnIndex(m.NaturalKeyColumn)
	}

	var passthrough []string
	var passIx []int
	for _, c := range m.Passthrough {
		if ix := ds.ColumnIndex(c); ix >= 0 {
			passthrough = append(passthrough, c)
			passIx = append(passIx, ix)
		}
	}

	f := &Fact{
		NaturalKey:  keyIx >= 0,
		Passthrough: passthrough,
	}
	f.Columns = append(f.Columns, m.FactKeyColumn)
	for _, a := range m.Axes {
		f.Columns = append(f.Columns, a.IDColumn)
	}
	f.Columns = append(f.Columns, passthrough...)

	dimCol := make([]int, len(dims))
	for i, d := range dims {
		dimCol[i] = ds.ColumnIndex(d.Source)
	}

	f.Rows = make([][]any, 0, len(ds.Rows))
	for i, row := range ds.Rows {
		out := make([]any, 0, len(f.Columns))

		if keyIx >= 0 {
			out = append(out, row[keyIx].Bind())
		} else {
			out = append(out, int64(i+1))
		}

		for j, d := range dims {
			if id, ok := d.Lookup(row[dimCol[j]]); ok {
				out = append(out, id)
			} else {
				out = append(out, nil)
			}
		}

		for _, ix := range passIx {
			out = append(out, row[ix].Bind())
		}

		f.Rows = append(f.Rows, out)
	}
	return f
}
