package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kk-code-lab/odatalake/internal/odata"
	"github.com/kk-code-lab/odatalake/internal/storage/chunkstore"
)

// blobStatus is the JSON answer to blob uploads and hash requests.
type blobStatus struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	LastChunk    int    `json:"last_chunk"`
	ETag         string `json:"etag,omitempty"`
	Revision     *int64 `json:"revision,omitempty"`
	Hash         string `json:"hash,omitempty"`
}

// blobTarget reports whether path addresses a bucket: the second segment
// carries the bucket prefix.
func (s *Server) blobTarget(path string) (schema, bucket string, ok bool) {
	if s.opts.Store == nil || s.opts.BucketPrefix == "" {
		return "", "", false
	}
	tokens, valid := odata.Tokenize(path)
	if !valid || len(tokens) < 2 || tokens[1] == s.sysPath() {
		return "", "", false
	}
	if !strings.HasPrefix(tokens[1], s.opts.BucketPrefix) {
		return "", "", false
	}
	return tokens[0], tokens[1], true
}

func blobKey(path string) string {
	tokens, _ := odata.Tokenize(path)
	return "/" + strings.Join(tokens, "/")
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request, schema, bucket string) string {
	ctx := r.Context()
	key := blobKey(r.URL.Path)
	if strings.Contains(key, "~") {
		s.writeError(w, http.StatusNotAcceptable, "Blob keys may not contain '~': "+key)
		return "blob_invalid"
	}
	exists, err := s.opts.Store.BucketExists(ctx, schema, bucket)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return "blob_invalid"
	}
	if !exists {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("%v: %s/%s", chunkstore.ErrNoSuchBucket, schema, bucket))
		return "blob_invalid"
	}

	switch r.Method {
	case http.MethodPost, http.MethodPut:
		s.putBlob(w, r, key)
		return "blob_put"
	case http.MethodGet:
		if r.URL.Query().Has("hash") {
			s.hashBlob(w, r, key)
			return "blob_hash"
		}
		s.getBlob(w, r, key)
		return "blob_get"
	default:
		s.writeError(w, http.StatusNotAcceptable, r.Method+" not supported for blobs")
		return "blob_invalid"
	}
}

// putBlob stores the body as a new revision. The etag is the SHA-1 of the
// bytes received.
func (s *Server) putBlob(w http.ResponseWriter, r *http.Request, key string) {
	h, err := chunkstore.NewHash(chunkstore.AlgSHA1)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var body io.Reader = http.NoBody
	if r.Body != nil {
		body = r.Body
	}
	res, err := s.opts.Store.Ingest(r.Context(), key, io.TeeReader(body, h))
	if err != nil {
		last := chunkstore.LastSuccessfulChunk(err)
		if last < 0 {
			last = res.LastChunk
		}
		s.logger.Warn("blob write failed", "key", key, "last_chunk", last, "err", err)
		writeJSON(w, http.StatusBadRequest, blobStatus{Status: "error", ErrorMessage: err.Error(), LastChunk: last})
		return
	}
	etag, _ := chunkstore.Encode(h.Sum(nil), chunkstore.EncHex)
	w.Header().Set("ETag", `"`+etag+`"`)
	rev := res.Revision
	writeJSON(w, http.StatusOK, blobStatus{Status: "ok", LastChunk: res.LastChunk, ETag: etag, Revision: &rev})
}

// getBlob streams the latest revision, or the one named by ?revision=N.
func (s *Server) getBlob(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()
	rs, err := s.opts.Store.OpenForRead(ctx, key)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !rs.Exists() {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("%v: %s", chunkstore.ErrNotFound, key))
		return
	}
	rev := rs.Revision()
	if raw := r.URL.Query().Get("revision"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusNotAcceptable, "Invalid revision: "+raw)
			return
		}
		if n > rev {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("%v: %s revision %d", chunkstore.ErrNotFound, key, n))
			return
		}
		rev = n
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Revision", strconv.FormatInt(rev, 10))
	w.WriteHeader(http.StatusOK)
	err = s.opts.Store.ScanRevision(ctx, key, rev, func(_ int, data []byte) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil && !errors.Is(err, ctx.Err()) {
		s.logger.Warn("blob read aborted", "key", key, "revision", rev, "err", err)
	}
}

// hashBlob answers ?hash=<alg>[&encoding=<enc>] with the digest of the
// latest revision.
func (s *Server) hashBlob(w http.ResponseWriter, r *http.Request, key string) {
	q := r.URL.Query()
	alg := q.Get("hash")
	if alg == "" {
		alg = chunkstore.AlgSHA256
	}
	enc := q.Get("encoding")
	if enc == "" {
		enc = chunkstore.EncHex
	}
	sum, err := s.opts.Store.Hash(r.Context(), key, alg, enc)
	switch {
	case errors.Is(err, chunkstore.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chunkstore.ErrUnsupportedDigest):
		s.writeError(w, http.StatusNotAcceptable, err.Error())
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, blobStatus{Status: "ok", Hash: sum})
	}
}
