// Package star builds a dimensional model from a tabular dataset: staging
// copy, one dimension per categorical axis, a fact table keyed by a natural
// or synthesized identifier, declared constraints, and a precomputed
// group-by aggregate. Every table is fully replaced on each run.
package star

import (
	"fmt"
	"strings"

	"complaintsetl/internal/sanitize"
	"complaintsetl/internal/storage"
)

// Axis is one categorical column to dimensionalize.
type Axis struct {
	// Name identifies the axis ("product", "channel") and seeds the
	// defaults below.
	Name string `json:"name"`

	// SourceColumns are canonical staging column candidates, tried in
	// order; the first one present in the sanitized schema wins. Complaint
	// exports disagree on the product header, hence the list.
	SourceColumns []string `json:"source_columns"`

	// DimensionTable defaults to dim_<name>.
	DimensionTable string `json:"dimension_table,omitempty"`

	// IDColumn is the surrogate key column, default <name>_id. It is also
	// the fact table's foreign key column for this axis.
	IDColumn string `json:"id_column,omitempty"`

	// NameColumn is the dimension table's display value column, default
	// <name>_name.
	NameColumn string `json:"name_column,omitempty"`

	// AggregateNameColumn is the display value column on the aggregate
	// table, default <name>: the aggregate mirrors a join that aliases the
	// dimension value back to the bare axis name (product, channel).
	AggregateNameColumn string `json:"aggregate_name_column,omitempty"`

	// AggregateIndex names the secondary index on the aggregate table's
	// id column for this axis, default idx_agg_<name>.
	AggregateIndex string `json:"aggregate_index,omitempty"`
}

func (a Axis) withDefaults() Axis {
	if a.DimensionTable == "" {
		a.DimensionTable = "dim_" + a.Name
	}
	if a.IDColumn == "" {
		a.IDColumn = a.Name + "_id"
	}
	if a.NameColumn == "" {
		a.NameColumn = a.Name + "_name"
	}
	if a.AggregateNameColumn == "" {
		a.AggregateNameColumn = a.Name
	}
	if a.AggregateIndex == "" {
		a.AggregateIndex = "idx_agg_" + a.Name
	}
	return a
}

// Model configures one star-schema build.
type Model struct {
	StagingTable   string `json:"staging_table"`
	FactTable      string `json:"fact_table"`
	AggregateTable string `json:"aggregate_table"`

	// FactKeyColumn is the fact table's identifier column.
	FactKeyColumn string `json:"fact_key_column"`

	// NaturalKeyColumn is the canonical staging column reused as the fact
	// identifier when present. When the source lacks it, fact rows get a
	// 1-based sequence number in source order.
	NaturalKeyColumn string `json:"natural_key_column,omitempty"`

	// Passthrough columns are copied onto the fact table verbatim when
	// present in the sanitized schema, silently omitted otherwise.
	Passthrough []string `json:"passthrough,omitempty"`

	Axes []Axis `json:"axes"`

	// Collisions selects the sanitizer's duplicate-name policy.
	// Empty means sanitize.CollisionFail.
	Collisions sanitize.CollisionPolicy `json:"collisions,omitempty"`
}

// countColumn is the aggregate's measure column, fixed by the model shape.
const countColumn = "complaints_count"

// Reference returns the consumer-complaints model this pipeline was built
// for. Callers can override any field before running.
func Reference() Model {
	return Model{
		StagingTable:     "stg_consumer_complaints",
		FactTable:        "fact_complaint",
		AggregateTable:   "agg_complaints_by_product_channel",
		FactKeyColumn:    "complaint_id",
		NaturalKeyColumn: "complaint_id",
		Passthrough:      []string{"date_received"},
		Axes: []Axis{
			{
				Name:           "product",
				SourceColumns:  []string{"product", "product_name"},
				AggregateIndex: "idx_agg_prod",
			},
			{
				Name:           "channel",
				SourceColumns:  []string{"submitted_via"},
				AggregateIndex: "idx_agg_chan",
			},
		},
	}
}

// WithDefaults fills derived names and the default collision policy.
func (m Model) WithDefaults() Model {
	for i := range m.Axes {
		m.Axes[i] = m.Axes[i].withDefaults()
	}
	if m.Collisions == "" {
		m.Collisions = sanitize.CollisionFail
	}
	return m
}

// Validate reports the first structural problem with the model.
func (m Model) Validate() error {
	if strings.TrimSpace(m.StagingTable) == "" {
		return fmt.Errorf("star: staging_table is required")
	}
	if strings.TrimSpace(m.FactTable) == "" {
		return fmt.Errorf("star: fact_table is required")
	}
	if strings.TrimSpace(m.AggregateTable) == "" {
		return fmt.Errorf("star: aggregate_table is required")
	}
	if strings.TrimSpace(m.FactKeyColumn) == "" {
		return fmt.Errorf("star: fact_key_column is required")
	}
	if len(m.Axes) == 0 {
		return fmt.Errorf("star: at least one axis is required")
	}
	seen := make(map[string]bool, len(m.Axes))
	for _, a := range m.Axes {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("star: axis name is required")
		}
		if seen[a.Name] {
			return fmt.Errorf("star: duplicate axis %q", a.Name)
		}
		seen[a.Name] = true
		if len(a.SourceColumns) == 0 {
			return fmt.Errorf("star: axis %q has no source columns", a.Name)
		}
	}
	return nil
}

func stagingSpec(table string, columns []string) storage.TableSpec {
	spec := storage.TableSpec{Name: table}
	for _, c := range columns {
		spec.Columns = append(spec.Columns, storage.TextColumn(c))
	}
	return spec
}

func dimensionSpec(a Axis) storage.TableSpec {
	return storage.TableSpec{
		Name: a.DimensionTable,
		Columns: []storage.ColumnSpec{
			{Name: a.IDColumn, Type: "bigint", Nullable: false},
			{Name: a.NameColumn, Type: "text", Nullable: false},
		},
	}
}

func factSpec(m Model, f *Fact) storage.TableSpec {
	keyType := "bigint"
	if f.NaturalKey {
		keyType = "text"
	}
	spec := storage.TableSpec{
		Name: m.FactTable,
		Columns: []storage.ColumnSpec{
			{Name: m.FactKeyColumn, Type: keyType, Nullable: false},
		},
	}
	for _, a := range m.Axes {
		spec.Columns = append(spec.Columns,
			storage.ColumnSpec{Name: a.IDColumn, Type: "bigint", Nullable: true})
	}
	for _, c := range f.Passthrough {
		spec.Columns = append(spec.Columns, storage.TextColumn(c))
	}
	return spec
}

func aggregateSpec(m Model) storage.TableSpec {
	spec := storage.TableSpec{Name: m.AggregateTable}
	for _, a := range m.Axes {
		spec.Columns = append(spec.Columns,
			storage.ColumnSpec{Name: a.IDColumn, Type: "bigint", Nullable: false},
			storage.ColumnSpec{Name: a.AggregateNameColumn, Type: "text", Nullable: false},
		)
	}
	spec.Columns = append(spec.Columns,
		storage.ColumnSpec{Name: countColumn, Type: "bigint", Nullable: false})
	return spec
}
