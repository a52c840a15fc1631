package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"

	"complaintsetl/internal/storage"
)

// Sink implements storage.Sink for Microsoft SQL Server.
//
// Notes on SQL Server specifics:
//   - No CREATE INDEX IF NOT EXISTS; idempotency comes from sys.indexes and
//     sys.key_constraints guards wrapped around the DDL.
//   - Hard limit of 2100 parameters per statement; insert batches are
//     clamped accordingly.
type Sink struct {
	db    *sql.DB
	batch int
}

// SQL Server rejects statements with more than 2100 parameters; stay
// comfortably below.
const maxParams = 2000

const defaultBatch = 1000

// New constructs a SQL Server-backed Sink using the "sqlserver" driver.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, &storage.UnavailableError{Op: "open", Err: err}
	}

	// Conservative defaults for ETL-style bursty loads.
	db.SetMaxOpenConns(64)
	db.SetMaxIdleConns(64)

	b := cfg.BatchSize
	if b <= 0 {
		b = defaultBatch
	}
	return &Sink{db: db, batch: b}, nil
}

func (s *Sink) Close() { _ = s.db.Close() }

func (s *Sink) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &storage.UnavailableError{Op: "ping", Err: err}
	}
	return nil
}

// ReplaceTable drops and rebuilds a table inside one transaction.
func (s *Sink) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) error {
	createSQL, err := buildCreateTableSQL(spec)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", spec.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, buildDropTableSQL(spec.Name)); err != nil {
		return classify("drop", spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return classify("create", spec.Name, err)
	}

	cols := spec.ColumnNames()
	for start := 0; start < len(rows); start += s.batchRows(len(cols)) {
		end := start + s.batchRows(len(cols))
		if end > len(rows) {
			end = len(rows)
		}
		insertSQL, args := buildInsertSQL(spec.Name, cols, rows[start:end])
		if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
			return classify("insert", spec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
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

// EnsurePrimaryKey adds a primary key constraint, guarded so a table that
// already has one is left alone.
func (s *Sink) EnsurePrimaryKey(ctx context.Context, table string, column string) error {
	if _, err := s.db.ExecContext(ctx, buildEnsurePrimaryKeySQL(table, column)); err != nil {
		return classify("add primary key", table, err)
	}
	return nil
}

func (s *Sink) EnsureUniqueIndex(ctx context.Context, name string, table string, columns []string) error {
	if _, err := s.db.ExecContext(ctx, buildEnsureIndexSQL(name, table, columns, true)); err != nil {
		return classify("create unique index", table, err)
	}
	return nil
}

func (s *Sink) EnsureIndex(ctx context.Context, name string, table string, columns []string) error {
	if _, err := s.db.ExecContext(ctx, buildEnsureIndexSQL(name, table, columns, false)); err != nil {
		return classify("create index", table, err)
	}
	return nil
}

// buildDropTableSQL wraps DROP TABLE in an OBJECT_ID guard; SQL Server
// predates DROP TABLE IF EXISTS on some supported versions.
func buildDropTableSQL(table string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NOT NULL BEGIN DROP TABLE %s; END;",
		mssqlStringLit(table), mssqlTableIdent(table),
	)
}

func buildCreateTableSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("mssql: table %s has no columns", t.Name)
	}

	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("mssql: table %s: column name is empty", t.Name)
		}
		def := mssqlIdent(c.Name) + " " + columnType(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	return fmt.Sprintf("CREATE TABLE %s (%s);", mssqlTableIdent(t.Name), strings.Join(defs, ", ")), nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
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
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// buildEnsurePrimaryKeySQL guards ALTER TABLE ADD PRIMARY KEY behind a
// sys.key_constraints lookup so reruns are no-ops.
func buildEnsurePrimaryKeySQL(table string, column string) string {
	return fmt.Sprintf(
		"IF NOT EXISTS (SELECT 1 FROM sys.key_constraints WHERE [type] = 'PK' AND parent_object_id = OBJECT_ID(N'%s')) "+
			"BEGIN ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s); END;",
		mssqlStringLit(table),
		mssqlTableIdent(table),
		mssqlIdent("pk_"+table),
		mssqlIdent(column),
	)
}

// buildEnsureIndexSQL guards CREATE [UNIQUE] INDEX behind a sys.indexes
// lookup, the SQL Server substitute for IF NOT EXISTS.
func buildEnsureIndexSQL(name string, table string, columns []string, unique bool) string {
	kw := "CREATE INDEX "
	if unique {
		kw = "CREATE UNIQUE INDEX "
	}

	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = mssqlIdent(c)
	}

	return fmt.Sprintf(
		"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s' AND object_id = OBJECT_ID(N'%s')) "+
			"BEGIN %s%s ON %s (%s); END;",
		mssqlStringLit(name), mssqlStringLit(table),
		kw, mssqlIdent(name), mssqlTableIdent(table), strings.Join(cols, ", "),
	)
}

func columnType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "text", "":
		// TEXT is deprecated and cannot back a unique index.
		return "NVARCHAR(4000)"
	case "bigint":
		return "BIGINT"
	default:
		return t
	}
}

// mssqlStringLit escapes a name for embedding inside an N'...' literal,
// doubling single quotes.
func mssqlStringLit(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent bracket-quotes schema-qualified names part by part
// ("dbo.fact_complaint" -> [dbo].[fact_complaint]).
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// classify maps driver errors onto the storage error taxonomy.
//
// SQL Server error numbers:
//
//	547  foreign key / check violation
//	1505 duplicate key while creating a unique index
//	2601 duplicate key in unique index
//	2627 primary key / unique constraint violation
func classify(op string, table string, err error) error {
	var se mssqldb.Error
	if errors.As(err, &se) {
		switch se.Number {
		case 547, 1505, 2601, 2627:
			return &storage.ConstraintError{Table: table, Err: err}
		}
		return fmt.Errorf("mssql: %s %s: %w", op, table, err)
	}
	return &storage.UnavailableError{Op: op + " " + table, Err: err}
}

func init() {
	// registers the sink backend factory
	storage.Register("mssql", New)
}
