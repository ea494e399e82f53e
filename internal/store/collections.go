package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/queryir"
	"github.com/roach88/tasksync/internal/querysql"
)

// Column declares one field of a collection for CreateCollection.
// Type is a SQLite declared type: TEXT, INTEGER, BOOLEAN, REAL or DATETIME.
type Column struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// CreateCollection creates a collection table keyed by "id" if it does not exist.
// An "id" column is added as INTEGER PRIMARY KEY unless cols declares one.
func (s *Store) CreateCollection(ctx context.Context, name string, cols []Column) error {
	table, err := querysql.QuoteIdent(name)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	defs := make([]string, 0, len(cols)+1)
	hasID := false
	for _, c := range cols {
		col, err := querysql.QuoteIdent(c.Name)
		if err != nil {
			return fmt.Errorf("create collection %q: %w", name, err)
		}
		typ := strings.ToUpper(strings.TrimSpace(c.Type))
		if !knownColumnType(typ) {
			return fmt.Errorf("create collection %q: column %q: unsupported type %q", name, c.Name, c.Type)
		}
		def := col + " " + typ
		if c.Name == ir.IdentityField {
			hasID = true
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	if !hasID {
		defs = append([]string{`"id" INTEGER PRIMARY KEY`}, defs...)
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}
	return nil
}

func knownColumnType(typ string) bool {
	switch typ {
	case "TEXT", "INTEGER", "BOOLEAN", "REAL", "DATETIME", "TIMESTAMP", "DATE":
		return true
	default:
		return false
	}
}

// CollectionExists reports whether a table with the given name exists.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?
	`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("collection exists %q: %w", name, err)
	}
	return n > 0, nil
}

// Fetch runs a bounded select against a collection and returns the records
// in query order.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Fetch(ctx context.Context, q queryir.Select) ([]ir.Record, error) {
	c, err := s.compiler(ctx, q.From)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", q.From, err)
	}
	query, params, err := c.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", q.From, err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", q.From, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", q.From, err)
	}
	return records, nil
}

// Count returns the number of records in a collection that satisfy filter.
// A nil filter counts every record.
func (s *Store) Count(ctx context.Context, collection string, filter queryir.Predicate) (int, error) {
	table, err := querysql.QuoteIdent(collection)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	c, err := s.compiler(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", collection, err)
	}
	where, params, err := c.CompilePredicate(filter)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", collection, err)
	}

	var n int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE "+where, params...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", collection, err)
	}
	return n, nil
}

// compiler returns a SQL compiler that knows which columns of collection
// hold timestamps.
func (s *Store) compiler(ctx context.Context, collection string) (*querysql.SQLCompiler, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?)`, collection)
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	c := querysql.NewSQLCompiler()
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("table info: %w", err)
		}
		if isTimeType(typ) {
			if c.TimeFields == nil {
				c.TimeFields = make(map[string]bool)
			}
			c.TimeFields[name] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	return c, nil
}

func isTimeType(declType string) bool {
	switch strings.ToUpper(strings.TrimSpace(declType)) {
	case "DATETIME", "TIMESTAMP", "DATE":
		return true
	default:
		return false
	}
}

// InsertIfAbsent writes rec into collection unless a record with the same
// identity is already there. It reports whether a row was written.
//
// The existence check is part of the INSERT, so the write is idempotent even
// for tables without a uniqueness constraint on "id".
func (s *Store) InsertIfAbsent(ctx context.Context, collection string, rec ir.Record) (bool, error) {
	table, err := querysql.QuoteIdent(collection)
	if err != nil {
		return false, fmt.Errorf("insert: %w", err)
	}
	id := rec.ID()
	if _, null := id.(ir.IRNull); null {
		return false, fmt.Errorf("insert into %q: record has no %q", collection, ir.IdentityField)
	}

	fields := ir.IRObject(rec).SortedKeys()
	cols := make([]string, len(fields))
	marks := make([]string, len(fields))
	params := make([]any, 0, len(fields)+1)
	for i, f := range fields {
		col, err := querysql.QuoteIdent(f)
		if err != nil {
			return false, fmt.Errorf("insert into %q: %w", collection, err)
		}
		p, err := querysql.IRValueToParam(rec[f])
		if err != nil {
			return false, fmt.Errorf("insert into %q: field %q: %w", collection, f, err)
		}
		cols[i] = col
		marks[i] = "?"
		params = append(params, p)
	}
	idParam, err := querysql.IRValueToParam(id)
	if err != nil {
		return false, fmt.Errorf("insert into %q: %w", collection, err)
	}
	params = append(params, idParam)

	stmt := fmt.Sprintf(
		`INSERT INTO %s (%s) SELECT %s WHERE NOT EXISTS (SELECT 1 FROM %s WHERE "id" = ?) ON CONFLICT DO NOTHING`,
		table, strings.Join(cols, ", "), strings.Join(marks, ", "), table,
	)
	res, err := s.db.ExecContext(ctx, stmt, params...)
	if err != nil {
		return false, fmt.Errorf("insert into %q: %w", collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert into %q: %w", collection, err)
	}
	return n > 0, nil
}

// scanRecords converts result rows to records, using each column's declared
// type to tell booleans and timestamps from plain integers and strings.
func scanRecords(rows *sql.Rows) ([]ir.Record, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}

	records := []ir.Record{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		rec := make(ir.Record, len(cols))
		for i, col := range cols {
			v, err := columnValue(col.DatabaseTypeName(), raw[i])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name(), err)
			}
			rec[col.Name()] = v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// columnValue converts one scanned SQLite value to an IRValue.
func columnValue(declType string, v any) (ir.IRValue, error) {
	switch {
	case strings.EqualFold(declType, "BOOLEAN"), strings.EqualFold(declType, "BOOL"):
		if n, ok := v.(int64); ok {
			return ir.IRBool(n != 0), nil
		}
	case isTimeType(declType):
		switch tv := v.(type) {
		case time.Time:
			return ir.NewIRTime(tv), nil
		case string:
			t, err := parseTime(tv)
			if err != nil {
				return nil, err
			}
			return ir.NewIRTime(t), nil
		case []byte:
			t, err := parseTime(string(tv))
			if err != nil {
				return nil, err
			}
			return ir.NewIRTime(t), nil
		}
	}
	return ir.FromGo(v)
}
