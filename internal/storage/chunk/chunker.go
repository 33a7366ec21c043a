package chunk

import (
	"context"
	"errors"
	"io"
)

// DefaultSize is the default payload size (64 KiB).
const DefaultSize = 64 << 10

// Chunk is one payload produced by a splitter. Index starts at 1.
type Chunk struct {
	Index int
	Data  []byte
}

// Splitter streams chunks to a callback.
type Splitter interface {
	Split(ctx context.Context, r io.Reader, fn func(Chunk) error) error
}

// FixedSplitter splits streams into fixed-size chunks.
type FixedSplitter struct {
	Size int
}

// NewFixedSplitter creates a fixed-size splitter.
func NewFixedSplitter(size int) *FixedSplitter {
	if size <= 0 {
		size = DefaultSize
	}
	return &FixedSplitter{Size: size}
}

// Split streams chunks to fn; the final chunk may be smaller. An empty
// stream yields no chunks. ctx is checked before each read.
func (s *FixedSplitter) Split(ctx context.Context, r io.Reader, fn func(Chunk) error) error {
	size := s.Size
	if size <= 0 {
		size = DefaultSize
	}
	for index := 1; ; index++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		data := make([]byte, size)
		n, err := io.ReadFull(r, data)
		if errors.Is(err, io.EOF) {
			return nil
		}
		short := errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !short {
			return err
		}
		if err := fn(Chunk{Index: index, Data: data[:n]}); err != nil {
			return err
		}
		if short {
			return nil
		}
	}
}
