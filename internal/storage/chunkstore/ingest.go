package chunkstore

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/kk-code-lab/odatalake/internal/storage/chunk"
)

// Ingest stores r as a new revision of key. A producer splits r into
// fixed-size payloads and hands them over an unbuffered channel to the
// write session, so reading r never runs ahead of persistence by more than
// one chunk. The first error from either side cancels the other and is
// returned together with the progress reached; nothing is rolled back.
func (s *Store) Ingest(ctx context.Context, key string, r io.Reader) (WriteResult, error) {
	ws, err := s.OpenForWrite(ctx, key)
	if err != nil {
		return WriteResult{Revision: -1}, err
	}
	g, gctx := errgroup.WithContext(ctx)
	chunks := make(chan chunk.Chunk)

	g.Go(func() error {
		defer close(chunks)
		return s.splitter.Split(gctx, r, func(c chunk.Chunk) error {
			select {
			case chunks <- c:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	// A chunk that was handed over is persisted under the caller's context
	// even if the producer has failed meanwhile.
	g.Go(func() error {
		for c := range chunks {
			if err := ws.WriteChunk(ctx, c.Data); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		ws.abort(err)
		return ws.Result(), err
	}
	if err := ws.Close(); err != nil {
		return ws.Result(), err
	}
	return ws.Result(), nil
}
