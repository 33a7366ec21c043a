package chunkstore

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// Digest algorithms and encodings accepted by Hash.
const (
	AlgMD5    = "md5"
	AlgSHA1   = "sha1"
	AlgSHA256 = "sha256"
	AlgSHA512 = "sha512"
	AlgBLAKE3 = "blake3"

	EncHex    = "hex"
	EncBase64 = "base64"
)

// NewHash returns a fresh accumulator for alg.
func NewHash(alg string) (hash.Hash, error) {
	switch alg {
	case AlgMD5:
		return md5.New(), nil
	case AlgSHA1:
		return sha1.New(), nil
	case AlgSHA256:
		return sha256.New(), nil
	case AlgSHA512:
		return sha512.New(), nil
	case AlgBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("%w: algorithm %q", ErrUnsupportedDigest, alg)
	}
}

// Encode renders a digest in enc.
func Encode(sum []byte, enc string) (string, error) {
	switch enc {
	case EncHex:
		return hex.EncodeToString(sum), nil
	case EncBase64:
		return base64.StdEncoding.EncodeToString(sum), nil
	default:
		return "", fmt.Errorf("%w: encoding %q", ErrUnsupportedDigest, enc)
	}
}

// Hash digests the latest revision of key. A key that was never written
// returns ErrNotFound.
func (s *Store) Hash(ctx context.Context, key, alg, enc string) (string, error) {
	h, err := NewHash(alg)
	if err != nil {
		return "", err
	}
	if _, err := Encode(nil, enc); err != nil {
		return "", err
	}
	rs, err := s.OpenForRead(ctx, key)
	if err != nil {
		return "", err
	}
	if !rs.Exists() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if _, err := rs.Pipe(ctx, h); err != nil {
		return "", err
	}
	return Encode(h.Sum(nil), enc)
}
