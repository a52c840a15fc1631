// Package storage defines the backend-agnostic sink contract: the Sink
// interface, the table/column schema types shared by every backend, the
// backend factory registry, and the error taxonomy.
package storage

// TableSpec describes one destination table for ReplaceTable.
//
// There is deliberately no load-rule or constraint section here: the engine
// replaces whole tables and declares constraints afterwards through the
// Ensure* methods, matching the pipeline's full-refresh design.
type TableSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

// ColumnSpec describes one column using portable logical types that each
// backend maps to its own DDL ("text", "bigint").
type ColumnSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ColumnNames returns the column names in declaration order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// TextColumn is shorthand for a nullable text column.
func TextColumn(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: "text", Nullable: true}
}
