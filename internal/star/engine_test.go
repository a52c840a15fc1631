package star

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"complaintsetl/internal/sanitize"
	"complaintsetl/internal/storage"
	"complaintsetl/pkg/records"
)

// fakeSink records every operation and enforces key uniqueness the way a
// real backend would, so constraint-stage behavior is observable.
type fakeSink struct {
	pings   int
	pingErr error

	writes  []string // ReplaceTable order
	tables  map[string]storedTable
	pks     []string
	uniques []string
	indexes []string
}

type storedTable struct {
	spec storage.TableSpec
	rows [][]any
}

func newFakeSink() *fakeSink {
	return &fakeSink{tables: make(map[string]storedTable)}
}

func (f *fakeSink) Close() {}

func (f *fakeSink) Ping(context.Context) error {
	f.pings++
	return f.pingErr
}

func (f *fakeSink) ReplaceTable(_ context.Context, spec storage.TableSpec, rows [][]any) error {
	f.writes = append(f.writes, spec.Name)
	f.tables[spec.Name] = storedTable{spec: spec, rows: rows}
	return nil
}

func (f *fakeSink) EnsurePrimaryKey(ctx context.Context, table string, column string) error {
	f.pks = append(f.pks, table+"."+column)
	return f.checkUnique(table, []string{column}, true)
}

func (f *fakeSink) EnsureUniqueIndex(_ context.Context, name string, table string, columns []string) error {
	f.uniques = append(f.uniques, name)
	return f.checkUnique(table, columns, false)
}

func (f *fakeSink) EnsureIndex(_ context.Context, name string, table string, columns []string) error {
	f.indexes = append(f.indexes, name)
	return nil
}

func (f *fakeSink) checkUnique(table string, columns []string, rejectNull bool) error {
	t, ok := f.tables[table]
	if !ok {
		return fmt.Errorf("fake: no such table %s", table)
	}
	ix := make([]int, len(columns))
	for i, c := range columns {
		pos := -1
		for j, spec := range t.spec.Columns {
			if spec.Name == c {
				pos = j
				break
			}
		}
		if pos < 0 {
			return fmt.Errorf("fake: no such column %s.%s", table, c)
		}
		ix[i] = pos
	}

	seen := make(map[string]bool, len(t.rows))
	for _, row := range t.rows {
		key := ""
		for _, p := range ix {
			if row[p] == nil && rejectNull {
				return &storage.ConstraintError{Table: table, Err: errors.New("null key")}
			}
			key += fmt.Sprintf("%v|", row[p])
		}
		if seen[key] {
			return &storage.ConstraintError{Table: table, Err: errors.New("duplicate key")}
		}
		seen[key] = true
	}
	return nil
}

func sourceDataset(rows ...[]records.Value) *records.Dataset {
	return &records.Dataset{
		Columns: []string{"Complaint ID", "Product", "Submitted via", "Date received"},
		Rows:    rows,
	}
}

func row(id, product, channel, date string) []records.Value {
	vals := make([]records.Value, 4)
	for i, s := range []string{id, product, channel, date} {
		if s == "" {
			vals[i] = records.Missing()
		} else {
			vals[i] = records.String(s)
		}
	}
	return vals
}

func TestEngineRun_ReferenceScenario(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	eng := NewEngine(sink, Reference(), nil)

	ds := sourceDataset(
		row("1", "Loan", "Web", "2024-01-01"),
		row("2", "Loan", "Phone", "2024-01-02"),
		row("3", "Loan", "Web", "2024-01-03"),
	)

	sum, err := eng.Run(context.Background(), ds)
	require.NoError(t, err)

	require.Equal(t, 3, sum.StagingRows)
	require.Equal(t, 3, sum.FactRows)
	require.Equal(t, 2, sum.AggregateRows)
	require.Equal(t, map[string]int{"product": 1, "channel": 2}, sum.DimensionRows)
	require.Equal(t,
		[]string{"complaint_id", "product", "submitted_via", "date_received"},
		sum.Columns)

	// Write order: staging, dims, fact, aggregate.
	require.Equal(t, []string{
		"stg_consumer_complaints", "dim_product", "dim_channel",
		"fact_complaint", "agg_complaints_by_product_channel",
	}, sink.writes)

	require.Equal(t,
		[][]any{{int64(1), "Loan"}},
		sink.tables["dim_product"].rows)
	require.Equal(t,
		[][]any{{int64(1), "Web"}, {int64(2), "Phone"}},
		sink.tables["dim_channel"].rows)

	require.Equal(t, [][]any{
		{"1", int64(1), int64(1), "2024-01-01"},
		{"2", int64(1), int64(2), "2024-01-02"},
		{"3", int64(1), int64(1), "2024-01-03"},
	}, sink.tables["fact_complaint"].rows)

	require.Equal(t, [][]any{
		{int64(1), "Loan", int64(2), "Phone", int64(1)},
		{int64(1), "Loan", int64(1), "Web", int64(2)},
	}, sink.tables["agg_complaints_by_product_channel"].rows)

	require.Equal(t, []string{
		"dim_product.product_id", "dim_channel.channel_id", "fact_complaint.complaint_id",
	}, sink.pks)
	require.Equal(t, []string{"uidx_dim_product_name", "uidx_dim_channel_name"}, sink.uniques)
	require.Equal(t, []string{
		"idx_fact_complaint_product_id", "idx_fact_complaint_channel_id",
		"idx_agg_prod", "idx_agg_chan",
	}, sink.indexes)
}

func TestEngineRun_MissingChannelValue(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	eng := NewEngine(sink, Reference(), nil)

	ds := sourceDataset(
		row("1", "Loan", "Web", "2024-01-01"),
		row("2", "Loan", "", "2024-01-02"),
	)

	sum, err := eng.Run(context.Background(), ds)
	require.NoError(t, err)
	require.Equal(t, 2, sum.FactRows)

	fact := sink.tables["fact_complaint"].rows
	require.Nil(t, fact[1][2], "missing channel must be a NULL fk")

	// The nil-fk row is excluded from the aggregate entirely.
	agg := sink.tables["agg_complaints_by_product_channel"].rows
	require.Len(t, agg, 1)
	require.Equal(t, int64(1), agg[0][4])
}

func TestEngineRun_MissingAxisColumnAbortsBeforeWrites(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	eng := NewEngine(sink, Reference(), nil)

	ds := &records.Dataset{
		Columns: []string{"Complaint ID", "Product"},
		Rows: [][]records.Value{
			{records.String("1"), records.String("Loan")},
		},
	}

	_, err := eng.Run(context.Background(), ds)
	var mc *MissingColumnError
	require.ErrorAs(t, err, &mc)
	require.Equal(t, "channel", mc.Axis)

	require.Zero(t, sink.pings, "sink must not be touched")
	require.Empty(t, sink.writes)
}

func TestEngineRun_CollisionFailAbortsBeforeWrites(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	eng := NewEngine(sink, Reference(), nil)

	ds := &records.Dataset{
		Columns: []string{"Product Name", "product-name", "Submitted via"},
		Rows:    [][]records.Value{},
	}

	_, err := eng.Run(context.Background(), ds)
	var ce *sanitize.CollisionError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "product_name", ce.Name)
	require.Empty(t, sink.writes)
}

func TestEngineRun_SuffixPolicyResolvesCollision(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	m := Reference()
	m.Collisions = sanitize.CollisionSuffix
	eng := NewEngine(sink, m, nil)

	ds := &records.Dataset{
		Columns: []string{"Product", "product", "Submitted via"},
		Rows: [][]records.Value{
			{records.String("Loan"), records.String("dup"), records.String("Web")},
		},
	}

	_, err := eng.Run(context.Background(), ds)
	require.NoError(t, err)

	staging := sink.tables["stg_consumer_complaints"].spec
	require.Equal(t, []string{"product", "product_2", "submitted_via"}, staging.ColumnNames())
}

func TestEngineRun_DuplicateNaturalKeyIsConstraintViolation(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	eng := NewEngine(sink, Reference(), nil)

	ds := sourceDataset(
		row("1", "Loan", "Web", "2024-01-01"),
		row("1", "Loan", "Phone", "2024-01-02"), // duplicate natural key
	)

	_, err := eng.Run(context.Background(), ds)
	var ce *storage.ConstraintError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "fact_complaint", ce.Table)
}

func TestEngineRun_SinkUnavailableAbortsBeforeWrites(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	sink.pingErr = &storage.UnavailableError{Op: "ping", Err: errors.New("refused")}
	eng := NewEngine(sink, Reference(), nil)

	ds := sourceDataset(row("1", "Loan", "Web", "2024-01-01"))

	_, err := eng.Run(context.Background(), ds)
	var ue *storage.UnavailableError
	require.ErrorAs(t, err, &ue)
	require.Empty(t, sink.writes)
}

// Two runs over the same source produce identical tables and key assignment.
func TestEngineRun_Idempotent(t *testing.T) {
	t.Parallel()

	ds := sourceDataset(
		row("1", "Loan", "Web", "2024-01-01"),
		row("2", "Mortgage", "Phone", "2024-01-02"),
		row("3", "Loan", "Web", "2024-01-03"),
	)

	first := newFakeSink()
	_, err := NewEngine(first, Reference(), nil).Run(context.Background(), ds)
	require.NoError(t, err)

	second := newFakeSink()
	eng := NewEngine(second, Reference(), nil)
	_, err = eng.Run(context.Background(), ds)
	require.NoError(t, err)
	// Rerun against the already-loaded sink as well; full refresh must not error.
	_, err = eng.Run(context.Background(), ds)
	require.NoError(t, err)

	for name, tbl := range first.tables {
		require.Equal(t, tbl.rows, second.tables[name].rows, "table %s diverged", name)
	}
}

// Referential integrity: every non-nil fact fk resolves to a dimension row.
func TestEngineRun_ReferentialIntegrity(t *testing.T) {
	t.Parallel()

	sink := newFakeSink()
	eng := NewEngine(sink, Reference(), nil)

	ds := sourceDataset(
		row("1", "Loan", "Web", ""),
		row("2", "", "Phone", ""),
		row("3", "Mortgage", "", ""),
		row("4", "Loan", "Referral", ""),
	)
	_, err := eng.Run(context.Background(), ds)
	require.NoError(t, err)

	dims := map[int]storedTable{
		1: sink.tables["dim_product"],
		2: sink.tables["dim_channel"],
	}
	for _, factRow := range sink.tables["fact_complaint"].rows {
		for col, dim := range dims {
			fk := factRow[col]
			if fk == nil {
				continue
			}
			found := false
			for _, dimRow := range dim.rows {
				if dimRow[0] == fk {
					found = true
					break
				}
			}
			require.True(t, found, "fk %v has no dimension row", fk)
		}
	}
}

func TestEngineRun_InvalidModel(t *testing.T) {
	t.Parallel()

	m := Reference()
	m.Axes = nil
	eng := NewEngine(newFakeSink(), m, nil)

	_, err := eng.Run(context.Background(), &records.Dataset{})
	require.Error(t, err)
}
