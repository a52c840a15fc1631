package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"complaintsetl/internal/storage"
)

/*
Sink implements storage.Sink for Postgres.

Table replacement leans on Postgres's transactional DDL: DROP + CREATE +
INSERT all happen inside one transaction, so readers keep seeing the old
table until commit and a failed run can never leave a half-written table.
*/
type Sink struct {
	pool  *pgxpool.Pool
	batch int
}

// pgx keeps the extended-protocol parameter count in a uint16.
const maxParams = 65535

const defaultBatch = 1000

// New creates a Postgres-backed Sink.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, &storage.UnavailableError{Op: "connect", Err: err}
	}
	b := cfg.BatchSize
	if b <= 0 {
		b = defaultBatch
	}
	return &Sink{pool: pool, batch: b}, nil
}

// Close closes the connection pool.
func (s *Sink) Close() { s.pool.Close() }

// Ping verifies connectivity before the engine writes anything.
func (s *Sink) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &storage.UnavailableError{Op: "ping", Err: err}
	}
	return nil
}

// ReplaceTable drops and rebuilds a table inside a single transaction.
//
// Rows are inserted in batches to bound statement size; the batch size is
// clamped so a statement never exceeds the protocol parameter limit.
func (s *Sink) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) error {
	createSQL, err := buildCreateTableSQL(spec)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify("begin", spec.Name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgIdent(spec.Name)); err != nil {
		return classify("drop", spec.Name, err)
	}
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return classify("create", spec.Name, err)
	}

	cols := spec.ColumnNames()
	for start := 0; start < len(rows); start += s.batchRows(len(cols)) {
		end := start + s.batchRows(len(cols))
		if end > len(rows) {
			end = len(rows)
		}
		sql, args := buildInsertSQL(spec.Name, cols, rows[start:end])
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return classify("insert", spec.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit", spec.Name, err)
	}
	return nil
}

func (s *Sink) batchRows(cols int) int {
	if cols == 0 {
		return s.batch
	}
	limit := maxParams / cols
	if limit < 1 {
		limit = 1
	}
	if limit < s.batch {
		return limit
	}
	return s.batch
}

// EnsurePrimaryKey adds a primary key, tolerating a table that already has
// one. A duplicate-value failure is an upstream invariant break and surfaces
// as *storage.ConstraintError.
func (s *Sink) EnsurePrimaryKey(ctx context.Context, table string, column string) error {
	sql := fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", pgIdent(table), pgIdent(column))
	_, err := s.pool.Exec(ctx, sql)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P16" {
		// invalid_table_definition: "multiple primary keys" — already declared.
		return nil
	}
	return classify("add primary key", table, err)
}

// EnsureUniqueIndex declares a unique index with IF NOT EXISTS semantics.
func (s *Sink) EnsureUniqueIndex(ctx context.Context, name string, table string, columns []string) error {
	if _, err := s.pool.Exec(ctx, buildIndexSQL(name, table, columns, true)); err != nil {
		return classify("create unique index", table, err)
	}
	return nil
}

// EnsureIndex declares a non-unique index with IF NOT EXISTS semantics.
func (s *Sink) EnsureIndex(ctx context.Context, name string, table string, columns []string) error {
	if _, err := s.pool.Exec(ctx, buildIndexSQL(name, table, columns, false)); err != nil {
		return classify("create index", table, err)
	}
	return nil
}

// buildCreateTableSQL renders CREATE TABLE DDL for a spec.
//
// Why this exists:
//   - It is pure and deterministic, so correctness (type mapping and
//     quoting) is unit-testable without a database.
func buildCreateTableSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("postgres: table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("postgres: table %s has no columns", t.Name)
	}

	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("postgres: table %s: column name is empty", t.Name)
		}
		def := pgIdent(c.Name) + " " + columnType(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	return fmt.Sprintf("CREATE TABLE %s (%s);", pgIdent(t.Name), strings.Join(defs, ", ")), nil
}

// buildInsertSQL constructs a single multi-row INSERT and its args.
//
// Constraints:
//   - rows must have the same length as columns for every row.
//   - columns must be non-empty.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(";")
	return b.String(), args
}

func buildIndexSQL(name string, table string, columns []string, unique bool) string {
	kw := "CREATE INDEX IF NOT EXISTS "
	if unique {
		kw = "CREATE UNIQUE INDEX IF NOT EXISTS "
	}

	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = pgIdent(c)
	}
	return kw + pgIdent(name) + " ON " + pgIdent(table) + " (" + strings.Join(cols, ", ") + ")"
}

// columnType maps the portable logical types to Postgres DDL types.
// Unknown types pass through so a config can use native types directly.
func columnType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "text", "":
		return "TEXT"
	case "bigint":
		return "BIGINT"
	default:
		return t
	}
}

// pgIdent quotes an identifier, allowing one schema qualifier dot
// ("public.dim_product" quotes both parts separately).
func pgIdent(id string) string {
	parts := strings.SplitN(id, ".", 2)
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// classify maps driver errors onto the storage error taxonomy.
//
// Integrity-class SQLSTATEs (23xxx) become *storage.ConstraintError; any
// non-PgError is a transport failure and becomes *storage.UnavailableError.
func classify(op string, table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "23") {
			return &storage.ConstraintError{Table: table, Err: err}
		}
		return fmt.Errorf("postgres: %s %s: %w", op, table, err)
	}
	if errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: %s %s: %w", op, table, err)
	}
	return &storage.UnavailableError{Op: op + " " + table, Err: err}
}

func init() {
	// registers the sink backend factory
	storage.Register("postgres", New)
}
