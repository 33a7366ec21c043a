package rdbms

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, fn func(RowSink) error) []Row {
	t.Helper()
	var rows []Row
	require.NoError(t, fn(func(r Row) error {
		rows = append(rows, r)
		return nil
	}))
	return rows
}

func TestSQLiteBackend(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	opener, err := NewOpener(Config{Backend: KindSQLite, DataDir: dir})
	require.NoError(t, err)

	b, err := opener.Open(ctx, Credentials{User: "u", Schema: "acc1"})
	require.NoError(t, err)
	defer b.Close()

	_, err = b.RunQuery(ctx, "create table acc1.people (id integer primary key, name text, score real)")
	require.NoError(t, err)
	res, err := b.RunQuery(ctx, "insert into acc1.people(id,name,score) values(1,'ann',2.5)")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	_, err = b.RunQuery(ctx, "insert into acc1.people(id,name,score) values(2,'bob',null)")
	require.NoError(t, err)

	rows := collect(t, func(sink RowSink) error {
		return b.Pipe(ctx, "select * from acc1.people order by id limit 0,100", sink)
	})
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "name", "score"}, rows[0].Columns)
	assert.Equal(t, []any{int64(1), "ann", 2.5}, rows[0].Values)
	assert.Nil(t, rows[1].Values[2])

	tables := collect(t, func(sink RowSink) error { return b.ServiceDef(ctx, "acc1", sink) })
	require.Len(t, tables, 1)
	assert.Equal(t, "people", tables[0].Values[0])

	cols := collect(t, func(sink RowSink) error { return b.Metadata(ctx, "acc1", "people", sink) })
	require.Len(t, cols, 3)
	assert.Equal(t, []string{"column_name", "data_type", "not_null", "primary_key"}, cols[0].Columns)
	assert.Equal(t, "id", cols[0].Values[0])
	assert.Equal(t, "name", cols[1].Values[0])

	_, err = os.Stat(filepath.Join(dir, "acc1.db"))
	require.NoError(t, err)
}

func TestSQLiteSchemasAreSeparate(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	a, err := OpenSQLite(ctx, dir, Credentials{Schema: "alpha"})
	require.NoError(t, err)
	defer a.Close()
	_, err = a.RunQuery(ctx, "create table alpha.t (x)")
	require.NoError(t, err)

	admin, err := OpenSQLite(ctx, dir, Credentials{})
	require.NoError(t, err)
	defer admin.Close()
	tables := collect(t, func(sink RowSink) error { return admin.ServiceDef(ctx, "alpha", sink) })
	assert.Len(t, tables, 1)
	tables = collect(t, func(sink RowSink) error { return admin.ServiceDef(ctx, "beta", sink) })
	assert.Empty(t, tables)

	err = admin.ServiceDef(ctx, "bad;name", func(Row) error { return nil })
	require.Error(t, err)
}

func TestPipeSinkErrorStops(t *testing.T) {
	ctx := context.Background()
	b, err := OpenSQLite(ctx, t.TempDir(), Credentials{Schema: "s"})
	require.NoError(t, err)
	defer b.Close()
	_, err = b.RunQuery(ctx, "create table s.n (v integer)")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = b.RunQuery(ctx, "insert into s.n(v) values(1)")
		require.NoError(t, err)
	}
	stop := errors.New("stop")
	seen := 0
	err = b.Pipe(ctx, "select v from s.n", func(Row) error {
		seen++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestSQLiteQueryError(t *testing.T) {
	ctx := context.Background()
	b, err := OpenSQLite(ctx, t.TempDir(), Credentials{Schema: "s"})
	require.NoError(t, err)
	defer b.Close()
	_, err = b.RunQuery(ctx, "insert into s.missing(a) values(1)")
	require.Error(t, err)
	err = b.Pipe(ctx, "select * from s.missing", func(Row) error { return nil })
	require.Error(t, err)
}

func TestNewOpenerErrors(t *testing.T) {
	_, err := NewOpener(Config{Backend: "oracle"})
	require.Error(t, err)
	_, err = NewOpener(Config{Backend: KindSQLite})
	require.Error(t, err)
	for _, kind := range []string{KindMySQL, KindPostgres} {
		_, err := NewOpener(Config{Backend: kind})
		require.NoError(t, err, kind)
	}
}

func TestMySQLConfig(t *testing.T) {
	mc := mysqlConfig(Config{Host: "db", Port: 3307}, Credentials{User: "abc123", Password: "p@ss"})
	assert.Equal(t, "db:3307", mc.Addr)
	assert.Equal(t, "abc123", mc.DBName)
	assert.Equal(t, "tcp", mc.Net)
	assert.Contains(t, mc.FormatDSN(), "abc123:p@ss@tcp(db:3307)/abc123")

	mc = mysqlConfig(Config{}, Credentials{User: "admin", Schema: "acc"})
	assert.Equal(t, "127.0.0.1:3306", mc.Addr)
	assert.Equal(t, "acc", mc.DBName)
}

func TestPostgresURL(t *testing.T) {
	got := postgresURL(Config{Host: "pg", Port: 5433, Database: "lake"}, Credentials{User: "u", Password: "p/w"})
	assert.Equal(t, "postgres://u:p%2Fw@pg:5433/lake", got)
	assert.Equal(t, "postgres://a:b@127.0.0.1:5432/postgres", postgresURL(Config{}, Credentials{User: "a", Password: "b"}))
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("abc_123"))
	assert.True(t, ValidIdentifier("_x"))
	assert.False(t, ValidIdentifier("1abc"))
	assert.False(t, ValidIdentifier("a-b"))
	assert.False(t, ValidIdentifier(""))
}
