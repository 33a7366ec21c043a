package chunk

import (
	"bytes"
	"context"
	"testing"
)

func FuzzFixedSplitter(f *testing.F) {
	f.Add([]byte("hello"), 3)
	f.Add([]byte("hello"), 0)
	f.Add([]byte{}, 1)
	f.Fuzz(func(t *testing.T, data []byte, size int) {
		if size > 1<<20 {
			size = 1 << 20
		}
		if size < 0 {
			size = 0
		}
		splitter := NewFixedSplitter(size)
		var (
			lastIndex int
			rebuilt   []byte
		)
		err := splitter.Split(context.Background(), bytes.NewReader(data), func(ch Chunk) error {
			if ch.Index != lastIndex+1 {
				t.Fatalf("chunk index not sequential: %d after %d", ch.Index, lastIndex)
			}
			if len(ch.Data) == 0 {
				t.Fatalf("empty chunk %d", ch.Index)
			}
			lastIndex = ch.Index
			rebuilt = append(rebuilt, ch.Data...)
			return nil
		})
		if err != nil {
			t.Fatalf("Split: %v", err)
		}
		if !bytes.Equal(rebuilt, data) {
			t.Fatalf("splitter rebuilt %d bytes want %d", len(rebuilt), len(data))
		}
	})
}
