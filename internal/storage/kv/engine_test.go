package kv

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engines(t *testing.T) map[string]Engine {
	t.Helper()
	mem, err := OpenLevelDBMemory()
	require.NoError(t, err)
	disk, err := OpenLevelDB(filepath.Join(t.TempDir(), "ldb"))
	require.NoError(t, err)
	lite, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	out := map[string]Engine{"leveldb-mem": mem, "leveldb-file": disk, "sqlite": lite}
	t.Cleanup(func() {
		for _, e := range out {
			_ = e.Close()
		}
	})
	return out
}

func TestEngineGetPutDelete(t *testing.T) {
	ctx := context.Background()
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			_, err := e.Get(ctx, []byte("missing"))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, e.Put(ctx, []byte("a"), []byte("1")))
			require.NoError(t, e.Put(ctx, []byte("a"), []byte("2")))
			v, err := e.Get(ctx, []byte("a"))
			require.NoError(t, err)
			assert.Equal(t, []byte("2"), v)

			require.NoError(t, e.Delete(ctx, []byte("a")))
			_, err = e.Get(ctx, []byte("a"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestEngineScanInclusiveOrdered(t *testing.T) {
	ctx := context.Background()
	keys := []string{"k~2", "k~1", "k~10", "k~3", "j", "l", "k~3\x00"}
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range keys {
				require.NoError(t, e.Put(ctx, []byte(k), []byte("v"+k)))
			}
			var got []string
			err := e.Scan(ctx, []byte("k~1"), []byte("k~3"), func(k, v []byte) error {
				assert.Equal(t, "v"+string(k), string(v))
				got = append(got, string(k))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"k~1", "k~10", "k~2", "k~3"}, got)

			got = nil
			require.NoError(t, e.ScanKeys(ctx, []byte("a"), []byte("z"), func(k []byte) error {
				got = append(got, string(k))
				return nil
			}))
			assert.Equal(t, []string{"j", "k~1", "k~10", "k~2", "k~3", "k~3\x00", "l"}, got)
		})
	}
}

func TestEngineScanStopsOnError(t *testing.T) {
	ctx := context.Background()
	stop := errors.New("stop")
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				require.NoError(t, e.Put(ctx, []byte(fmt.Sprintf("s%d", i)), []byte("x")))
			}
			seen := 0
			err := e.Scan(ctx, []byte("s0"), []byte("s9"), func(k, v []byte) error {
				seen++
				if seen == 2 {
					return stop
				}
				return nil
			})
			require.ErrorIs(t, err, stop)
			assert.Equal(t, 2, seen)
		})
	}
}

func TestEngineScanAcrossPagesAllowsWrites(t *testing.T) {
	ctx := context.Background()
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			n := scanPage*2 + 5
			for i := 0; i < n; i++ {
				require.NoError(t, e.Put(ctx, []byte(fmt.Sprintf("p%05d", i)), []byte{byte(i)}))
			}
			count := 0
			err := e.Scan(ctx, []byte("p"), []byte("p99999"), func(k, v []byte) error {
				require.Equal(t, fmt.Sprintf("p%05d", count), string(k))
				count++
				return e.Put(ctx, append([]byte("q"), k...), v)
			})
			require.NoError(t, err)
			assert.Equal(t, n, count)
		})
	}
}

func TestEngineScanHonorsContext(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, e.Put(context.Background(), []byte("c1"), []byte("x")))
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := e.Scan(ctx, []byte("c"), []byte("d"), func(k, v []byte) error { return nil })
			require.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestOpenKinds(t *testing.T) {
	dir := t.TempDir()
	e, err := Open("", filepath.Join(dir, "a"))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e, err = Open(KindSQLite, filepath.Join(dir, "b.db"))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = Open("bolt", filepath.Join(dir, "c"))
	require.Error(t, err)

	_, err = Open(KindLevelDB, "")
	require.Error(t, err)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v")))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
