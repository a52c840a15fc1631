package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"complaintsetl/internal/storage"
)

// Sink implements storage.Sink on SQLite via the pure-Go driver.
//
// SQLite cannot add a primary key to an existing table, so
// EnsurePrimaryKey is emulated with a unique index over the key column.
// That preserves the uniqueness invariant, which is what the pipeline
// actually relies on.
type Sink struct {
	db    *sql.DB
	batch int
}

const defaultBatch = 1000

// New creates a SQLite-backed Sink. The DSN is a file path or
// ":memory:" plus driver options.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, &storage.UnavailableError{Op: "open", Err: err}
	}
	// The driver serializes access per connection; a single connection
	// avoids table-lock contention between the replace transactions.
	db.SetMaxOpenConns(1)
	return newRepo(db, cfg.BatchSize), nil
}

// newRepo wires a Sink around an existing handle. Split from New so tests
// can inject an in-memory database.
func newRepo(db *sql.DB, batch int) *Sink {
	if batch <= 0 {
		batch = defaultBatch
	}
	return &Sink{db: db, batch: batch}
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
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(spec.Name)); err != nil {
		return classify("drop", spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return classify("create", spec.Name, err)
	}

	cols := spec.ColumnNames()
	for start := 0; start < len(rows); start += s.batch {
		end := start + s.batch
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

// EnsurePrimaryKey emulates a primary key with a unique index, since
// SQLite's ALTER TABLE cannot add one after creation.
func (s *Sink) EnsurePrimaryKey(ctx context.Context, table string, column string) error {
	name := "uidx_pk_" + table + "_" + column
	return s.EnsureUniqueIndex(ctx, name, table, []string{column})
}

func (s *Sink) EnsureUniqueIndex(ctx context.Context, name string, table string, columns []string) error {
	if _, err := s.db.ExecContext(ctx, buildIndexSQL(name, table, columns, true)); err != nil {
		return classify("create unique index", table, err)
	}
	return nil
}

func (s *Sink) EnsureIndex(ctx context.Context, name string, table string, columns []string) error {
	if _, err := s.db.ExecContext(ctx, buildIndexSQL(name, table, columns, false)); err != nil {
		return classify("create index", table, err)
	}
	return nil
}

func buildCreateTableSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("sqlite: table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("sqlite: table %s has no columns", t.Name)
	}

	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("sqlite: table %s: column name is empty", t.Name)
		}
		def := sqlIdent(c.Name) + " " + columnType(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	return fmt.Sprintf("CREATE TABLE %s (%s);", sqlIdent(t.Name), strings.Join(defs, ", ")), nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, row[j])
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
		cols[i] = sqlIdent(c)
	}
	return kw + sqlIdent(name) + " ON " + sqlIdent(table) + " (" + strings.Join(cols, ", ") + ")"
}

func columnType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "text", "":
		return "TEXT"
	case "bigint":
		return "INTEGER"
	default:
		return t
	}
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// classify maps driver errors onto the storage error taxonomy.
func classify(op string, table string, err error) error {
	var se *sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3lib.SQLITE_CONSTRAINT:
			return &storage.ConstraintError{Table: table, Err: err}
		case sqlite3lib.SQLITE_CANTOPEN, sqlite3lib.SQLITE_READONLY, sqlite3lib.SQLITE_BUSY:
			return &storage.UnavailableError{Op: op + " " + table, Err: err}
		}
	}
	return fmt.Errorf("sqlite: %s %s: %w", op, table, err)
}

func init() {
	// registers the sink backend factory
	storage.Register("sqlite", New)
}
