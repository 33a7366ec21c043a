package kv

import (
	"context"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is an Engine backed by goleveldb. The database holds a file lock,
// so only one process may open a given directory.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates a LevelDB database in dir.
func OpenLevelDB(dir string) (*LevelDB, error) {
	if dir == "" {
		return nil, errors.New("kv: leveldb path required")
	}
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// OpenLevelDBMemory opens a LevelDB database on in-memory storage.
func OpenLevelDBMemory() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (l *LevelDB) Put(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Delete(key, nil)
}

func (l *LevelDB) Scan(ctx context.Context, start, end []byte, fn func(key, value []byte) error) error {
	return l.iterate(ctx, start, end, func(it iteratorView) error {
		return fn(clone(it.Key()), clone(it.Value()))
	})
}

func (l *LevelDB) ScanKeys(ctx context.Context, start, end []byte, fn func(key []byte) error) error {
	return l.iterate(ctx, start, end, func(it iteratorView) error {
		return fn(clone(it.Key()))
	})
}

type iteratorView interface {
	Key() []byte
	Value() []byte
}

func (l *LevelDB) iterate(ctx context.Context, start, end []byte, fn func(iteratorView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// util.Range.Limit is exclusive; the smallest key above end is end+0x00.
	limit := make([]byte, len(end)+1)
	copy(limit, end)
	it := l.db.NewIterator(&util.Range{Start: start, Limit: limit}, nil)
	defer it.Release()
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(it); err != nil {
			return err
		}
	}
	return it.Error()
}

func (l *LevelDB) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
