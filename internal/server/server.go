// Package server is the HTTP front end. It routes OData requests to the
// relational executor and bucket paths to the chunk store, and wraps every
// answer in the {"d": ...} envelope.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kk-code-lab/odatalake/internal/auth"
	"github.com/kk-code-lab/odatalake/internal/clock"
	"github.com/kk-code-lab/odatalake/internal/odata"
	"github.com/kk-code-lab/odatalake/internal/rdbms"
	"github.com/kk-code-lab/odatalake/internal/storage/chunkstore"
)

// StatsPath serves the metrics snapshot.
const StatsPath = "/v1/meta/stats"

// DefaultMaxBodyBytes bounds JSON request bodies. Blob uploads are not
// bounded.
const DefaultMaxBodyBytes = 1 << 20

// Accounts provisions users in the relational engine's own user and grant
// system.
type Accounts interface {
	CreateAccount(ctx context.Context, accountID string) error
	DeleteAccount(ctx context.Context, accountID string) error
	// ResetPassword sets a new random password and returns it.
	ResetPassword(ctx context.Context, accountID string) (string, error)
	Grant(ctx context.Context, owner rdbms.Credentials, table, grantee string) error
	Revoke(ctx context.Context, owner rdbms.Credentials, table, grantee string) error
}

// ResetNotifier delivers password reset links.
type ResetNotifier interface {
	SendResetLink(ctx context.Context, email, link string) error
}

// LogNotifier writes reset links to the log instead of mailing them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) SendResetLink(_ context.Context, email, link string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("password reset link", "email", email, "link", link)
	return nil
}

// Options wires the server. Parser and Opener are required.
type Options struct {
	Parser   *odata.Parser
	Opener   rdbms.Opener
	Store    *chunkstore.Store
	Tokens   *auth.TokenStore
	Accounts Accounts
	Notifier ResetNotifier

	// Admin, when set, runs service_def queries instead of the caller.
	Admin rdbms.Credentials

	SecretSalt       string
	PublicURL        string
	BucketPrefix     string
	AllowCORS        bool
	ResetWithoutLink bool
	MaxBodyBytes     int64

	Logger  *slog.Logger
	Metrics *Metrics
	Clock   clock.Clock
}

// Server implements http.Handler.
type Server struct {
	opts    Options
	logger  *slog.Logger
	metrics *Metrics
	clock   clock.Clock
}

func New(opts Options) (*Server, error) {
	if opts.Parser == nil {
		return nil, errors.New("server: parser required")
	}
	if opts.Opener == nil {
		return nil, errors.New("server: rdbms opener required")
	}
	if opts.Tokens == nil {
		opts.Tokens = auth.NewTokenStore(0, opts.Clock)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
		clock:   clock.Or(opts.Clock),
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := s.clock.Now()
	reqID := newRequestID()
	w.Header().Set(requestIDHeader, reqID)
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	var body *countingBody
	if r.Body != nil {
		body = &countingBody{ReadCloser: r.Body}
		r.Body = body
	}

	s.metrics.begin()
	op := s.route(sw, r)
	s.metrics.end()

	dur := s.clock.Now().Sub(start)
	var in int64
	if body != nil {
		in = body.n
	}
	s.metrics.addBytes(in, sw.written)
	s.metrics.Record(op, sw.status, dur)
	s.logger.Info("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", sw.status,
		"dur_ms", dur.Milliseconds(),
		"req_id", reqID,
		"op", op,
	)
}

// route handles the request and returns the operation name used for
// metrics.
func (s *Server) route(w *statusWriter, r *http.Request) string {
	s.applyCORS(w, r)
	if !allowedMethods[r.Method] {
		s.writeError(w, http.StatusNotAcceptable, r.Method+" not supported")
		return "invalid"
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return "options"
	}
	if r.Method == http.MethodGet && r.URL.Path == StatsPath {
		s.handleStats(w)
		return "stats"
	}
	if schema, bucket, ok := s.blobTarget(r.URL.Path); ok {
		return s.handleBlob(w, r, schema, bucket)
	}
	desc, err := s.opts.Parser.Parse(r.Method, r.URL.RequestURI())
	if err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return "invalid"
	}
	s.dispatch(w, r, desc)
	return string(desc.QueryType)
}

func (s *Server) helpPath() string {
	if s.opts.Parser.HelpPath == "" {
		return odata.DefaultHelpPath
	}
	return s.opts.Parser.HelpPath
}

func (s *Server) sysPath() string {
	if s.opts.Parser.SysPath == "" {
		return odata.DefaultSysPath
	}
	return s.opts.Parser.SysPath
}

func (s *Server) handleStats(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, struct {
		Stats
		ResetTokens int `json:"reset_tokens"`
	}{
		Stats:       s.metrics.Snapshot(),
		ResetTokens: s.opts.Tokens.Len(),
	})
}
