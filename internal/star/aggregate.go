package star

import (
	"sort"
	"strconv"
	"strings"
)

// AggregateRow is one dimension-value combination present in the fact table
// with its fact row count. IDs and Names are parallel to the model's axes.
type AggregateRow struct {
	IDs   []int64
	Names []string
	Count int64
}

// BuildAggregate counts fact rows per dimension-value combination with
// inner-join semantics: a fact row with a nil foreign key on any axis is
// excluded entirely.
//
// Rows are ordered by each axis's display value ascending, so output is
// deterministic across runs. By construction the counts sum to the number
// of fact rows with all foreign keys non-nil.
func BuildAggregate(f *Fact, dims []*Dimension) []AggregateRow {
	groups := make(map[string]*AggregateRow)

	for _, row := range f.Rows {
		ids := make([]int64, len(dims))
		ok := true
		for i := range dims {
			id, isID := row[1+i].(int64)
			if !isID {
				ok = false
				break
			}
			ids[i] = id
		}
		if !ok {
			continue
		}

		key := groupKey(ids)
		g := groups[key]
		if g == nil {
			names := make([]string, len(dims))
			for i, d := range dims {
				names[i] = d.Name(ids[i])
			}
			g = &AggregateRow{IDs: ids, Names: names}
			groups[key] = g
		}
		g.Count++
	}

	out := make([]AggregateRow, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		for k := range out[i].Names {
			if out[i].Names[k] != out[j].Names[k] {
				return out[i].Names[k] < out[j].Names[k]
			}
		}
		return false
	})
	return out
}

func groupKey(ids []int64) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

// aggregateTableRows renders aggregate rows in the aggregate table's column
// order: (id, name) per axis, then the count.
func aggregateTableRows(rows []AggregateRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, 0, 2*len(r.IDs)+1)
		for j := range r.IDs {
			row = append(row, r.IDs[j], r.Names[j])
		}
		row = append(row, r.Count)
		out[i] = row
	}
	return out
}
