package rdbms

import (
	"context"
	"database/sql"
)

// sqlDB implements the query half of Backend over database/sql. Backends
// embed it and add their catalog queries.
type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) RunQuery(ctx context.Context, query string) (Result, error) {
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return Result{}, err
	}
	var out Result
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

func (s *sqlDB) Pipe(ctx context.Context, query string, sink RowSink) error {
	return s.pipeArgs(ctx, query, sink)
}

func (s *sqlDB) pipeArgs(ctx context.Context, query string, sink RowSink, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	return scanRows(rows, sink)
}

func (s *sqlDB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// scanRows streams rows to sink. Driver byte slices become strings so rows
// serialize as text.
func scanRows(rows *sql.Rows, sink RowSink) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		if err := sink(Row{Columns: cols, Values: values}); err != nil {
			return err
		}
	}
	return rows.Err()
}
