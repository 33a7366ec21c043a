package chunkstore

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	keySep = "~"
	digits = 9

	// MaxCounter is the largest revision or chunk index the fixed-width key
	// format can hold. Overflow is not guarded.
	MaxCounter = 999999999
)

// ChunkKey formats the physical key of one chunk. Zero padding makes
// lexicographic order equal numeric order.
func ChunkKey(logicalKey string, revision int64, index int) []byte {
	return []byte(fmt.Sprintf("%s~%09d~%09d", logicalKey, revision, index))
}

// keyRange returns the inclusive bounds covering every revision of key.
func keyRange(logicalKey string) (start, end []byte) {
	return ChunkKey(logicalKey, 0, 0), ChunkKey(logicalKey, MaxCounter, MaxCounter)
}

// revisionRange returns the inclusive bounds covering one revision of key.
func revisionRange(logicalKey string, revision int64) (start, end []byte) {
	return ChunkKey(logicalKey, revision, 0), ChunkKey(logicalKey, revision, MaxCounter)
}

// ParseChunkKey splits a physical key produced by ChunkKey for logicalKey.
// Keys of other logical keys that happen to fall inside the scan range are
// rejected.
func ParseChunkKey(logicalKey string, raw []byte) (revision int64, index int, ok bool) {
	s := string(raw)
	prefix := logicalKey + keySep
	if !strings.HasPrefix(s, prefix) {
		return 0, 0, false
	}
	rest := s[len(prefix):]
	if len(rest) != digits*2+len(keySep) || rest[digits:digits+len(keySep)] != keySep {
		return 0, 0, false
	}
	rev, err := strconv.ParseInt(rest[:digits], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	idx, err := strconv.Atoi(rest[digits+len(keySep):])
	if err != nil {
		return 0, 0, false
	}
	return rev, idx, true
}
