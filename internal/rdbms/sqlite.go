package rdbms

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded backend. Each schema is the file <dir>/<schema>.db
// attached under its own name, so schema.table statements run unchanged.
// SQLite has no users; credentials are not checked here.
type SQLite struct {
	sqlDB
	dir string
}

// OpenSQLite opens an in-memory main database with creds.Schema attached.
func OpenSQLite(ctx context.Context, dir string, creds Credentials) (*SQLite, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// ATTACH is per connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	s := &SQLite{sqlDB: sqlDB{db: db}, dir: dir}
	if creds.Schema != "" {
		if err := s.attach(ctx, creds.Schema); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *SQLite) attach(ctx context.Context, schema string) error {
	if !ValidIdentifier(schema) {
		return fmt.Errorf("rdbms: invalid schema name %q", schema)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM pragma_database_list WHERE name=?", schema).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "ATTACH DATABASE ? AS "+schema, filepath.Join(s.dir, schema+".db"))
	return err
}

func (s *SQLite) ServiceDef(ctx context.Context, schema string, sink RowSink) error {
	if err := s.attach(ctx, schema); err != nil {
		return err
	}
	return s.pipeArgs(ctx, "SELECT name AS table_name FROM "+schema+".sqlite_master WHERE type='table' ORDER BY name", sink)
}

func (s *SQLite) Metadata(ctx context.Context, schema, table string, sink RowSink) error {
	if err := s.attach(ctx, schema); err != nil {
		return err
	}
	return s.pipeArgs(ctx, `SELECT name AS column_name, type AS data_type, "notnull" AS not_null, pk AS primary_key
FROM pragma_table_info(?, ?) ORDER BY cid`, sink, table, schema)
}
