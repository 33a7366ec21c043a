// Package rdbms executes compiled SQL against a relational engine and
// streams result rows. Each engine is a Backend implementation chosen by
// configuration.
package rdbms

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Row is one result row with column order preserved.
type Row struct {
	Columns []string
	Values  []any
}

// RowSink receives rows one at a time. Returning an error stops the stream.
type RowSink func(Row) error

// Result describes a statement that returns no rows.
type Result struct {
	RowsAffected int64 `json:"rowsAffected"`
	LastInsertID int64 `json:"lastInsertId,omitempty"`
}

// Backend is a connection to one relational engine on behalf of one user.
type Backend interface {
	RunQuery(ctx context.Context, query string) (Result, error)
	Pipe(ctx context.Context, query string, sink RowSink) error
	// ServiceDef lists the tables of schema.
	ServiceDef(ctx context.Context, schema string, sink RowSink) error
	// Metadata lists the columns of schema.table.
	Metadata(ctx context.Context, schema, table string, sink RowSink) error
	Close() error
}

// Credentials identify the caller. Schema is the namespace the request
// addresses.
type Credentials struct {
	User     string
	Password string
	Schema   string
}

// Opener connects on behalf of a caller.
type Opener interface {
	Open(ctx context.Context, creds Credentials) (Backend, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, creds Credentials) (Backend, error)

func (f OpenerFunc) Open(ctx context.Context, creds Credentials) (Backend, error) {
	return f(ctx, creds)
}

// Backend names accepted by NewOpener.
const (
	KindMySQL    = "mysql"
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
)

// Config selects and locates the relational engine.
type Config struct {
	Backend  string
	Host     string
	Port     int
	Database string
	DataDir  string
}

// NewOpener returns the opener for cfg.Backend.
func NewOpener(cfg Config) (Opener, error) {
	switch cfg.Backend {
	case KindMySQL:
		return OpenerFunc(func(ctx context.Context, creds Credentials) (Backend, error) {
			return OpenMySQL(ctx, cfg, creds)
		}), nil
	case KindPostgres:
		return OpenerFunc(func(ctx context.Context, creds Credentials) (Backend, error) {
			return OpenPostgres(ctx, cfg, creds)
		}), nil
	case KindSQLite:
		if cfg.DataDir == "" {
			return nil, errors.New("rdbms: sqlite data dir required")
		}
		return OpenerFunc(func(ctx context.Context, creds Credentials) (Backend, error) {
			return OpenSQLite(ctx, cfg.DataDir, creds)
		}), nil
	default:
		return nil, fmt.Errorf("rdbms: unknown backend %q", cfg.Backend)
	}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be used unquoted as a schema
// name.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}
