package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kk-code-lab/odatalake/internal/storage/kv"
)

// Registry keys start with '#', which sorts before '/', so they never fall
// inside the chunk range of a path-shaped logical key.
const bucketKeyPrefix = "#buckets/"

// Bucket is a registered blob namespace under a schema.
type Bucket struct {
	Schema    string    `json:"schema"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func bucketKey(schema, name string) []byte {
	return []byte(bucketKeyPrefix + schema + "/" + name)
}

func validateBucketRef(schema, name string) error {
	if schema == "" || strings.ContainsAny(schema, "/~") {
		return fmt.Errorf("chunkstore: invalid schema %q", schema)
	}
	if name == "" || strings.ContainsAny(name, "/~") {
		return fmt.Errorf("chunkstore: invalid bucket name %q", name)
	}
	return nil
}

// CreateBucket registers name under schema.
func (s *Store) CreateBucket(ctx context.Context, schema, name string) error {
	if err := validateBucketRef(schema, name); err != nil {
		return err
	}
	ok, err := s.BucketExists(ctx, schema, name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s/%s", ErrBucketExists, schema, name)
	}
	created := s.clock.Now().UTC().Format(time.RFC3339)
	if err := s.engine.Put(ctx, bucketKey(schema, name), []byte(created)); err != nil {
		return fmt.Errorf("chunkstore: create bucket %s/%s: %w", schema, name, err)
	}
	s.logger.Info("bucket created", "schema", schema, "bucket", name)
	return nil
}

// DropBucket unregisters name. Stored revisions are left in place.
func (s *Store) DropBucket(ctx context.Context, schema, name string) error {
	if err := validateBucketRef(schema, name); err != nil {
		return err
	}
	ok, err := s.BucketExists(ctx, schema, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNoSuchBucket, schema, name)
	}
	if err := s.engine.Delete(ctx, bucketKey(schema, name)); err != nil {
		return fmt.Errorf("chunkstore: drop bucket %s/%s: %w", schema, name, err)
	}
	s.logger.Info("bucket dropped", "schema", schema, "bucket", name)
	return nil
}

// BucketExists reports whether name is registered under schema.
func (s *Store) BucketExists(ctx context.Context, schema, name string) (bool, error) {
	_, err := s.engine.Get(ctx, bucketKey(schema, name))
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("chunkstore: bucket %s/%s: %w", schema, name, err)
	}
	return true, nil
}

// ListBuckets returns the buckets of schema sorted by name.
func (s *Store) ListBuckets(ctx context.Context, schema string) ([]Bucket, error) {
	prefix := bucketKeyPrefix + schema + "/"
	var out []Bucket
	err := s.engine.Scan(ctx, []byte(prefix), []byte(prefix+"\xff"), func(k, v []byte) error {
		created, err := time.Parse(time.RFC3339, string(v))
		if err != nil {
			return fmt.Errorf("chunkstore: bucket %s: bad timestamp %q", k, v)
		}
		out = append(out, Bucket{Schema: schema, Name: string(k[len(prefix):]), CreatedAt: created})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
