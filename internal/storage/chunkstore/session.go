package chunkstore

import (
	"context"
	"fmt"
	"sync"
)

// State is the lifecycle position of a write session.
type State int

const (
	StateInit State = iota
	StateResolvingRevision
	StateReady
	StateWritingChunk
	StateClosing
	StateFinished
	StateFailed
)

var stateNames = [...]string{
	StateInit:              "init",
	StateResolvingRevision: "resolving_revision",
	StateReady:             "ready",
	StateWritingChunk:      "writing_chunk",
	StateClosing:           "closing",
	StateFinished:          "finished",
	StateFailed:            "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// WriteResult summarizes a write session.
type WriteResult struct {
	Revision  int64 `json:"revision"`
	LastChunk int   `json:"last_chunk"`
	Size      int64 `json:"size"`
}

// WriteSession appends one revision of a logical key. The revision is fixed
// when the session opens. A session is not meant for concurrent writers but
// tolerates them.
type WriteSession struct {
	store *Store
	key   string
	// ctx is used by Write, which has no context parameter.
	ctx context.Context

	mu       sync.Mutex
	state    State
	revision int64
	counter  int
	size     int64
	err      error
}

// OpenForWrite resolves the latest revision of key and returns a session
// writing revision latest+1.
func (s *Store) OpenForWrite(ctx context.Context, key string) (*WriteSession, error) {
	ws := &WriteSession{store: s, key: key, ctx: ctx, state: StateInit}
	ws.state = StateResolvingRevision
	latest, err := s.ResolveRevision(ctx, key)
	if err != nil {
		ws.state = StateFailed
		return nil, err
	}
	ws.revision = latest + 1
	ws.state = StateReady
	return ws, nil
}

func (w *WriteSession) Key() string { return w.key }

func (w *WriteSession) Revision() int64 { return w.revision }

func (w *WriteSession) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastSuccessfulChunk is the number of chunks confirmed so far.
func (w *WriteSession) LastSuccessfulChunk() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counter
}

// Result reports the session's revision and confirmed progress.
func (w *WriteSession) Result() WriteResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WriteResult{Revision: w.revision, LastChunk: w.counter, Size: w.size}
}

// WriteChunk persists p as the next chunk. Empty payloads are ignored. A
// failed persist moves the session to StateFailed and returns a
// *StoreIOError; chunks written before it are kept.
func (w *WriteSession) WriteChunk(ctx context.Context, p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StateReady:
	case StateFailed:
		return fmt.Errorf("%w: %w", ErrSessionFailed, w.err)
	default:
		return ErrSessionClosed
	}
	if len(p) == 0 {
		return nil
	}
	w.state = StateWritingChunk
	w.counter++
	if err := w.store.engine.Put(ctx, ChunkKey(w.key, w.revision, w.counter), p); err != nil {
		w.counter--
		w.state = StateFailed
		w.err = &StoreIOError{Op: "put", Key: w.key, Revision: w.revision, LastSuccessfulChunk: w.counter, Err: err}
		w.store.logger.Warn("chunk persist failed", "key", w.key, "revision", w.revision, "last_chunk", w.counter, "err", err)
		return w.err
	}
	w.size += int64(len(p))
	w.state = StateReady
	return nil
}

// Write implements io.Writer; every call becomes one chunk.
func (w *WriteSession) Write(p []byte) (int, error) {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.WriteChunk(ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close finishes the session. Closing a failed session returns the failure;
// closing a finished session is a no-op.
func (w *WriteSession) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StateFinished:
		return nil
	case StateFailed:
		return w.err
	case StateReady:
		w.state = StateClosing
		w.store.logger.Debug("write session finished", "key", w.key, "revision", w.revision, "chunks", w.counter, "size", w.size)
		w.state = StateFinished
		return nil
	default:
		return fmt.Errorf("chunkstore: close in state %s", w.state)
	}
}

// abort moves an unfinished session to StateFailed with cause.
func (w *WriteSession) abort(cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateFinished || w.state == StateFailed {
		return
	}
	w.state = StateFailed
	w.err = cause
}
