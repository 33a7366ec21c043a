package kv

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: not found")

// Engine is an embedded ordered key-value store. Keys compare bytewise.
type Engine interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Put(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	// Scan visits every pair with start <= key <= end in ascending order.
	// Returning an error from fn stops the scan and is returned verbatim.
	Scan(ctx context.Context, start, end []byte, fn func(key, value []byte) error) error
	// ScanKeys is Scan without loading values where the engine allows it.
	ScanKeys(ctx context.Context, start, end []byte, fn func(key []byte) error) error
	Close() error
}

// Engine kinds accepted by Open.
const (
	KindLevelDB = "leveldb"
	KindSQLite  = "sqlite"
)

// Open opens an engine of the given kind at path. An empty kind means
// LevelDB.
func Open(kind, path string) (Engine, error) {
	switch kind {
	case "", KindLevelDB:
		return OpenLevelDB(path)
	case KindSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("kv: unknown engine %q", kind)
	}
}
