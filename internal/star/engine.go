package star

import (
	"context"
	"fmt"
	"time"

	"complaintsetl/internal/metrics"
	"complaintsetl/internal/sanitize"
	"complaintsetl/internal/storage"
	"complaintsetl/pkg/records"
)

// Logger is the minimal logging surface the engine needs. *log.Logger
// satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Engine drives the six pipeline stages against a storage sink:
// sanitize, staging, dimensions, fact, constraints, aggregate.
//
// The run is strictly sequential; each stage commits before the next reads
// its output. A crash mid-run is recovered by re-running the whole batch
// (full-refresh design). Concurrent runs against the same target are the
// caller's responsibility to prevent.
type Engine struct {
	sink  storage.Sink
	model Model
	log   Logger
}

// Summary reports what one run produced.
type Summary struct {
	Columns       []string       // sanitized staging columns
	StagingRows   int
	DimensionRows map[string]int // axis name -> dimension size
	FactRows      int
	AggregateRows int
}

// NewEngine builds an engine. A nil logger discards progress output.
func NewEngine(sink storage.Sink, m Model, log Logger) *Engine {
	return &Engine{sink: sink, model: m.WithDefaults(), log: log}
}

// Run executes the full pipeline over a materialized dataset.
//
// All in-memory derivation (sanitizing, dimension keys, fact rows, the
// aggregate) happens before the first sink write, so configuration and
// schema errors surface without touching the target.
func (e *Engine) Run(ctx context.Context, ds *records.Dataset) (*Summary, error) {
	if err := e.model.Validate(); err != nil {
		return nil, err
	}

	mapping, err := sanitize.Sanitize(ds.Columns, e.model.Collisions)
	if err != nil {
		return nil, err
	}
	// Rename positionally; duplicate original labels may map to distinct
	// canonical names under the suffix policy.
	canon := &records.Dataset{Columns: mapping.Names, Rows: ds.Rows}
	e.logf("stage=sanitize columns=%d", len(canon.Columns))

	dims := make([]*Dimension, len(e.model.Axes))
	for i, a := range e.model.Axes {
		d, err := BuildDimension(canon, a)
		if err != nil {
			return nil, err
		}
		dims[i] = d
	}

	fact := BuildFact(canon, e.model, dims)
	agg := BuildAggregate(fact, dims)

	if err := e.stage("ping", func() error { return e.sink.Ping(ctx) }); err != nil {
		return nil, err
	}

	if err := e.stage("staging", func() error { return e.loadStaging(ctx, canon) }); err != nil {
		return nil, err
	}
	metrics.IncCounter("etl_records_total", float64(len(canon.Rows)), metrics.Labels{"kind": "staging"})

	for _, d := range dims {
		d := d
		name := "dim_" + d.Axis.Name
		if err := e.stage(name, func() error {
			return e.sink.ReplaceTable(ctx, dimensionSpec(d.Axis), d.tableRows())
		}); err != nil {
			return nil, err
		}
		e.logf("stage=%s table=%s source=%s rows=%d", name, d.Axis.DimensionTable, d.Source, len(d.Rows))
	}

	if err := e.stage("fact", func() error {
		return e.sink.ReplaceTable(ctx, factSpec(e.model, fact), fact.Rows)
	}); err != nil {
		return nil, err
	}
	if len(fact.Rows) != len(canon.Rows) {
		// Cannot happen by construction; guard the one-row-per-record contract anyway.
		return nil, fmt.Errorf("star: fact rows (%d) != staging rows (%d)", len(fact.Rows), len(canon.Rows))
	}
	metrics.IncCounter("etl_records_total", float64(len(fact.Rows)), metrics.Labels{"kind": "fact"})

	if err := e.stage("constraints", func() error { return e.declareConstraints(ctx, dims, fact) }); err != nil {
		return nil, err
	}

	if err := e.stage("aggregate", func() error {
		if err := e.sink.ReplaceTable(ctx, aggregateSpec(e.model), aggregateTableRows(agg)); err != nil {
			return err
		}
		for _, a := range e.model.Axes {
			if err := e.sink.EnsureIndex(ctx, a.AggregateIndex, e.model.AggregateTable, []string{a.IDColumn}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	metrics.IncCounter("etl_records_total", float64(len(agg)), metrics.Labels{"kind": "aggregate"})

	s := &Summary{
		Columns:       canon.Columns,
		StagingRows:   len(canon.Rows),
		DimensionRows: make(map[string]int, len(dims)),
		FactRows:      len(fact.Rows),
		AggregateRows: len(agg),
	}
	for _, d := range dims {
		s.DimensionRows[d.Axis.Name] = len(d.Rows)
	}
	return s, nil
}

// loadStaging replaces the staging table with a text copy of the dataset,
// one nullable text column per sanitized name, rows in source order.
func (e *Engine) loadStaging(ctx context.Context, ds *records.Dataset) error {
	rows := make([][]any, len(ds.Rows))
	for i, r := range ds.Rows {
		out := make([]any, len(r))
		for j, v := range r {
			out[j] = v.Bind()
		}
		rows[i] = out
	}
	return e.sink.ReplaceTable(ctx, stagingSpec(e.model.StagingTable, ds.Columns), rows)
}

// declareConstraints issues the post-load declarations: primary keys on
// dimension and fact identifiers, uniqueness on dimension values, and
// non-unique indexes on fact foreign keys. All are create-if-not-declared.
func (e *Engine) declareConstraints(ctx context.Context, dims []*Dimension, fact *Fact) error {
	for _, d := range dims {
		a := d.Axis
		if err := e.sink.EnsurePrimaryKey(ctx, a.DimensionTable, a.IDColumn); err != nil {
			return err
		}
		uidx := "uidx_" + a.DimensionTable + "_name"
		if err := e.sink.EnsureUniqueIndex(ctx, uidx, a.DimensionTable, []string{a.NameColumn}); err != nil {
			return err
		}
	}

	if err := e.sink.EnsurePrimaryKey(ctx, e.model.FactTable, e.model.FactKeyColumn); err != nil {
		return err
	}
	for _, a := range e.model.Axes {
		idx := "idx_" + e.model.FactTable + "_" + a.IDColumn
		if err := e.sink.EnsureIndex(ctx, idx, e.model.FactTable, []string{a.IDColumn}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "ok"
	if err != nil {
		status = "error"
	}

	elapsed := time.Since(start)
	metrics.IncCounter("etl_step_total", 1, metrics.Labels{"step": name, "status": status})
	metrics.ObserveHistogram("etl_step_duration_seconds", elapsed.Seconds(),
		metrics.Labels{"step": name, "status": status})
	e.logf("stage=%s status=%s duration=%s", name, status, elapsed)

	if err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	return nil
}

func (e *Engine) logf(format string, v ...any) {
	if e.log == nil {
		return
	}
	e.log.Printf(format, v...)
}
