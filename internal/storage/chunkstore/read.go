package chunkstore

import (
	"context"
	"errors"
	"io"

	"github.com/kk-code-lab/odatalake/internal/storage/kv"
)

// ReadSession exposes the latest revision of a logical key as resolved when
// the session opened.
type ReadSession struct {
	store    *Store
	key      string
	revision int64
}

// OpenForRead resolves the latest revision of key. A key that was never
// written yields a session with revision -1 that reads nothing.
func (s *Store) OpenForRead(ctx context.Context, key string) (*ReadSession, error) {
	rev, err := s.ResolveRevision(ctx, key)
	if err != nil {
		return nil, err
	}
	return &ReadSession{store: s, key: key, revision: rev}, nil
}

func (r *ReadSession) Key() string { return r.key }

func (r *ReadSession) Revision() int64 { return r.revision }

// Exists reports whether the key had any revision at open time.
func (r *ReadSession) Exists() bool { return r.revision >= 0 }

// Pipe writes every chunk to sink in index order. Each chunk is written
// before the next one is read, so a slow sink slows the scan.
func (r *ReadSession) Pipe(ctx context.Context, sink io.Writer) (int64, error) {
	var total int64
	err := r.store.ScanRevision(ctx, r.key, r.revision, func(_ int, data []byte) error {
		n, err := sink.Write(data)
		total += int64(n)
		return err
	})
	return total, err
}

// Reader returns a pull-based reader over the session's revision. Chunks
// are fetched one at a time by index.
func (r *ReadSession) Reader(ctx context.Context) io.ReadCloser {
	return &chunkReader{ctx: ctx, engine: r.store.engine, key: r.key, revision: r.revision}
}

type chunkReader struct {
	ctx      context.Context
	engine   kv.Engine
	key      string
	revision int64
	index    int
	buf      []byte
	bufOff   int
	done     bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	for n < len(p) {
		if r.bufOff >= len(r.buf) {
			if err := r.loadNextChunk(); err != nil {
				if errors.Is(err, io.EOF) && n > 0 {
					return n, nil
				}
				return n, err
			}
		}
		copied := copy(p[n:], r.buf[r.bufOff:])
		n += copied
		r.bufOff += copied
	}
	return n, nil
}

func (r *chunkReader) loadNextChunk() error {
	if r.done || r.revision < 0 {
		return io.EOF
	}
	if err := r.ctx.Err(); err != nil {
		return err
	}
	next := r.index + 1
	data, err := r.engine.Get(r.ctx, ChunkKey(r.key, r.revision, next))
	if errors.Is(err, kv.ErrNotFound) {
		r.done = true
		return io.EOF
	}
	if err != nil {
		return &StoreIOError{Op: "get", Key: r.key, Revision: r.revision, LastSuccessfulChunk: r.index, Err: err}
	}
	r.index = next
	r.buf = data
	r.bufOff = 0
	return nil
}

func (r *chunkReader) Close() error {
	r.done = true
	r.buf = nil
	return nil
}
