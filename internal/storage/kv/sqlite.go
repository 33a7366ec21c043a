package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is an Engine storing pairs in a single WITHOUT ROWID table. BLOB
// keys compare with memcmp, which gives the same order as LevelDB.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("kv: sqlite path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases shared between calls.
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.applyPragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) applyPragmas(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) migrate(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
)`); err != nil {
		return err
	}
	var version int
	if err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return err
	}
	if version < 1 {
		if _, err = tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (
			k BLOB PRIMARY KEY,
			v BLOB NOT NULL
		) WITHOUT ROWID`); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations(version, applied_at) VALUES(1, ?)", time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) Get(ctx context.Context, key []byte) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, "SELECT v FROM kv WHERE k=?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *SQLite) Put(ctx context.Context, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO kv(k, v) VALUES(?, ?) ON CONFLICT(k) DO UPDATE SET v=excluded.v", key, value)
	return err
}

func (s *SQLite) Delete(ctx context.Context, key []byte) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE k=?", key)
	return err
}

// scanPage bounds how many rows one query materializes. Callbacks run with
// no open cursor, so they may write to the same engine.
const scanPage = 64

func (s *SQLite) Scan(ctx context.Context, start, end []byte, fn func(key, value []byte) error) error {
	return s.paged(ctx, "SELECT k, v FROM kv WHERE %s AND k<=? ORDER BY k LIMIT ?", start, end, true, fn)
}

func (s *SQLite) ScanKeys(ctx context.Context, start, end []byte, fn func(key []byte) error) error {
	return s.paged(ctx, "SELECT k, NULL FROM kv WHERE %s AND k<=? ORDER BY k LIMIT ?", start, end, false, func(k, _ []byte) error {
		return fn(k)
	})
}

func (s *SQLite) paged(ctx context.Context, tmpl string, start, end []byte, withValues bool, fn func(key, value []byte) error) error {
	type pair struct{ k, v []byte }
	cond := "k>=?"
	cursor := start
	if cursor == nil {
		cursor = []byte{}
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(tmpl, cond), cursor, end, scanPage)
		if err != nil {
			return err
		}
		page := make([]pair, 0, scanPage)
		for rows.Next() {
			var p pair
			if withValues {
				err = rows.Scan(&p.k, &p.v)
			} else {
				var ignored sql.RawBytes
				err = rows.Scan(&p.k, &ignored)
			}
			if err != nil {
				_ = rows.Close()
				return err
			}
			if withValues && p.v == nil {
				p.v = []byte{}
			}
			page = append(page, p)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		if err := rows.Close(); err != nil {
			return err
		}
		for _, p := range page {
			if err := fn(p.k, p.v); err != nil {
				return err
			}
		}
		if len(page) < scanPage {
			return nil
		}
		cond = "k>?"
		cursor = page[len(page)-1].k
	}
}

// Flush forces a WAL checkpoint.
func (s *SQLite) Flush() error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
