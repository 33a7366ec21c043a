package rdbms

import (
	"context"
	"database/sql"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// MySQL is the MySQL/MariaDB backend. Every account is a database of the
// same name.
type MySQL struct {
	sqlDB
}

func mysqlConfig(cfg Config, creds Credentials) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = creds.User
	mc.Passwd = creds.Password
	mc.Net = "tcp"
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	mc.DBName = creds.Schema
	if mc.DBName == "" {
		mc.DBName = creds.User
	}
	mc.ParseTime = true
	return mc
}

// OpenMySQL connects and verifies the credentials.
func OpenMySQL(ctx context.Context, cfg Config, creds Credentials) (*MySQL, error) {
	connector, err := mysql.NewConnector(mysqlConfig(cfg, creds))
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MySQL{sqlDB{db: db}}, nil
}

func (m *MySQL) ServiceDef(ctx context.Context, schema string, sink RowSink) error {
	return m.pipeArgs(ctx, "SELECT table_name FROM information_schema.tables WHERE table_schema=? ORDER BY table_name", sink, schema)
}

func (m *MySQL) Metadata(ctx context.Context, schema, table string, sink RowSink) error {
	return m.pipeArgs(ctx, `SELECT column_name, data_type, is_nullable, column_key
FROM information_schema.columns WHERE table_schema=? AND table_name=? ORDER BY ordinal_position`, sink, schema, table)
}
