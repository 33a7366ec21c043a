package chunkstore

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned by writes after Close.
	ErrSessionClosed = errors.New("chunkstore: session closed")
	// ErrSessionFailed is returned by writes after a persist failure.
	ErrSessionFailed = errors.New("chunkstore: session failed")
	// ErrNotFound is returned when a key has never been written.
	ErrNotFound = errors.New("chunkstore: not found")
	// ErrNoSuchBucket is returned for operations on unregistered buckets.
	ErrNoSuchBucket = errors.New("chunkstore: no such bucket")
	// ErrBucketExists is returned when creating a registered bucket.
	ErrBucketExists = errors.New("chunkstore: bucket exists")
	// ErrUnsupportedDigest is returned for unknown hash algorithms or
	// encodings.
	ErrUnsupportedDigest = errors.New("chunkstore: unsupported digest")
)

// StoreIOError reports a scan or persist failure of the underlying engine.
// LastSuccessfulChunk counts the chunks of Revision confirmed before the
// failure; they are kept.
type StoreIOError struct {
	Op                  string
	Key                 string
	Revision            int64
	LastSuccessfulChunk int
	Err                 error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("chunkstore: %s %s rev %d after chunk %d: %v", e.Op, e.Key, e.Revision, e.LastSuccessfulChunk, e.Err)
}

func (e *StoreIOError) Unwrap() error {
	return e.Err
}

// LastSuccessfulChunk extracts the partial-progress count from err, or -1
// when err carries none.
func LastSuccessfulChunk(err error) int {
	var ioErr *StoreIOError
	if errors.As(err, &ioErr) {
		return ioErr.LastSuccessfulChunk
	}
	return -1
}
