package rdbms

import (
	"context"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the PostgreSQL backend. Accounts map to schemas inside one
// database, so schema.table addressing is native.
type Postgres struct {
	pool *pgxpool.Pool
}

func postgresURL(cfg Config, creds Credentials) string {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	database := cfg.Database
	if database == "" {
		database = "postgres"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(creds.User, creds.Password),
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + database,
	}
	return u.String()
}

// OpenPostgres connects and verifies the credentials.
func OpenPostgres(ctx context.Context, cfg Config, creds Credentials) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(postgresURL(cfg, creds))
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) RunQuery(ctx context.Context, query string) (Result, error) {
	tag, err := p.pool.Exec(ctx, query)
	if err != nil {
		return Result{}, err
	}
	return Result{RowsAffected: tag.RowsAffected()}, nil
}

func (p *Postgres) Pipe(ctx context.Context, query string, sink RowSink) error {
	return p.pipeArgs(ctx, query, sink)
}

func (p *Postgres) pipeArgs(ctx context.Context, query string, sink RowSink, args ...any) error {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, fd := range fields {
		cols[i] = fd.Name
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return err
		}
		if err := sink(Row{Columns: cols, Values: values}); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (p *Postgres) ServiceDef(ctx context.Context, schema string, sink RowSink) error {
	return p.pipeArgs(ctx, "SELECT table_name FROM information_schema.tables WHERE table_schema=$1 ORDER BY table_name", sink, schema)
}

func (p *Postgres) Metadata(ctx context.Context, schema, table string, sink RowSink) error {
	return p.pipeArgs(ctx, `SELECT column_name, data_type, is_nullable
FROM information_schema.columns WHERE table_schema=$1 AND table_name=$2 ORDER BY ordinal_position`, sink, schema, table)
}

func (p *Postgres) Close() error {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
	return nil
}
