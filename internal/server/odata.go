package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kk-code-lab/odatalake/internal/auth"
	"github.com/kk-code-lab/odatalake/internal/odata"
	"github.com/kk-code-lab/odatalake/internal/rdbms"
)

var (
	errMissingCredentials = errors.New("Invalid credentials, user or password missing")
	errNoAccounts         = errors.New("Account management is not configured")
)

type accountRequest struct {
	Email     string `json:"email"`
	AccountID string `json:"accountId"`
}

type tableRequest struct {
	TableName string `json:"tableName"`
	AccountID string `json:"accountId"`
}

type createTableRequest struct {
	TableDef odata.TableDef `json:"tableDef"`
}

type bucketRequest struct {
	BucketName string `json:"bucketName"`
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, desc *odata.Descriptor) {
	ctx := r.Context()
	switch desc.QueryType {
	case odata.QueryHelp:
		s.handleHelp(w)
		return
	case odata.QueryCreateAccount:
		s.handleCreateAccount(ctx, w, r)
		return
	case odata.QueryResetPassword:
		if desc.ResetToken != "" {
			s.handleRedeemReset(ctx, w, desc)
		} else {
			s.handleRequestReset(ctx, w, r, desc)
		}
		return
	}

	creds, ok := credentials(r, desc.Schema)
	if !ok {
		s.writeError(w, http.StatusNotAcceptable, errMissingCredentials.Error())
		return
	}
	switch desc.QueryType {
	case odata.QueryDeleteAccount:
		s.handleDeleteAccount(ctx, w, creds)
	case odata.QueryGrant, odata.QueryRevoke:
		s.handleGrant(ctx, w, r, desc.QueryType, creds)
	case odata.QueryCreateBucket, odata.QueryDropBucket:
		s.handleBucket(ctx, w, r, desc.QueryType, creds)
	default:
		s.handleTableOp(ctx, w, r, desc, creds)
	}
}

func credentials(r *http.Request, schema string) (rdbms.Credentials, bool) {
	user := r.Header.Get("user")
	password := r.Header.Get("password")
	if user == "" || password == "" {
		return rdbms.Credentials{}, false
	}
	return rdbms.Credentials{User: user, Password: password, Schema: schema}, true
}

// readJSON decodes a bounded request body into v. Numbers stay json.Number
// so they render into SQL exactly as sent.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("Request body required")
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("Request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.New("Request body required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) handleTableOp(ctx context.Context, w http.ResponseWriter, r *http.Request, desc *odata.Descriptor, creds rdbms.Credentials) {
	var query string
	switch desc.QueryType {
	case odata.QueryInsert, odata.QueryUpdate:
		var data map[string]any
		if err := s.readJSON(w, r, &data); err != nil {
			s.writeError(w, http.StatusNotAcceptable, err.Error())
			return
		}
		var err error
		if desc.QueryType == odata.QueryInsert {
			query, err = odata.InsertSQL(desc.Schema, desc.Table, data)
		} else {
			query, err = odata.UpdateSQL(desc.Schema, desc.Table, data, desc.Clauses)
		}
		if err != nil {
			s.writeError(w, http.StatusNotAcceptable, err.Error())
			return
		}
	case odata.QueryCreateTable:
		var req createTableRequest
		if err := s.readJSON(w, r, &req); err != nil {
			s.writeError(w, http.StatusNotAcceptable, err.Error())
			return
		}
		var err error
		if query, err = odata.CreateTableSQL(desc.Schema, req.TableDef); err != nil {
			s.writeError(w, http.StatusNotAcceptable, err.Error())
			return
		}
	case odata.QueryDropTable:
		var req tableRequest
		if err := s.readJSON(w, r, &req); err != nil {
			s.writeError(w, http.StatusNotAcceptable, err.Error())
			return
		}
		var err error
		if query, err = odata.DropTableSQL(desc.Schema, req.TableName); err != nil {
			s.writeError(w, http.StatusNotAcceptable, err.Error())
			return
		}
	default:
		query = desc.SQL
	}

	backend, err := s.opts.Opener.Open(ctx, creds)
	if err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	defer backend.Close()

	switch desc.QueryType {
	case odata.QuerySelect:
		s.streamRows(w, func(sink rdbms.RowSink) error {
			return backend.Pipe(ctx, query, sink)
		}, false)
	case odata.QueryServiceDef:
		catalog := backend
		if s.opts.Admin.User != "" {
			admin := s.opts.Admin
			admin.Schema = desc.Schema
			if catalog, err = s.opts.Opener.Open(ctx, admin); err != nil {
				s.writeError(w, http.StatusNotAcceptable, err.Error())
				return
			}
			defer catalog.Close()
		}
		s.streamRows(w, func(sink rdbms.RowSink) error {
			return catalog.ServiceDef(ctx, desc.Schema, sink)
		}, true)
	case odata.QueryMetadata:
		s.streamRows(w, func(sink rdbms.RowSink) error {
			return backend.Metadata(ctx, desc.Schema, desc.Table, sink)
		}, true)
	default:
		res, err := backend.RunQuery(ctx, query)
		if err != nil {
			s.writeError(w, http.StatusNotAcceptable, err.Error())
			return
		}
		s.writeOK(w, payload{RDBMSResponse: &res})
	}
}

// streamRows runs fn and writes each row as soon as it arrives. An error
// after the first row can only be logged.
func (s *Server) streamRows(w http.ResponseWriter, fn func(rdbms.RowSink) error, catalog bool) {
	rs := &resultStream{w: w}
	err := fn(func(row rdbms.Row) error {
		return rs.add(odata.Entity{Columns: row.Columns, Values: row.Values, NoETag: catalog})
	})
	if err != nil {
		if !rs.started {
			s.writeError(w, http.StatusNotAcceptable, err.Error())
			return
		}
		s.logger.Warn("result stream aborted", "err", err)
		return
	}
	if err := rs.finish(); err != nil {
		s.logger.Warn("result stream aborted", "err", err)
	}
}

func (s *Server) handleCreateAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if s.opts.Accounts == nil {
		s.writeError(w, http.StatusNotImplemented, errNoAccounts.Error())
		return
	}
	var req accountRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	if req.Email == "" {
		s.writeError(w, http.StatusNotAcceptable, "create_account requires email")
		return
	}
	id := auth.AccountID(s.opts.SecretSalt, req.Email)
	if err := s.opts.Accounts.CreateAccount(ctx, id); err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	s.writeOK(w, payload{Email: req.Email, AccountID: id})
}

// handleDeleteAccount removes the caller's own account.
func (s *Server) handleDeleteAccount(ctx context.Context, w http.ResponseWriter, creds rdbms.Credentials) {
	if s.opts.Accounts == nil {
		s.writeError(w, http.StatusNotImplemented, errNoAccounts.Error())
		return
	}
	if creds.User != creds.Schema {
		s.writeError(w, http.StatusNotAcceptable, "delete_account is only allowed for the account's own schema")
		return
	}
	if err := s.opts.Accounts.DeleteAccount(ctx, creds.User); err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	s.writeOK(w, payload{AccountID: creds.User})
}

func (s *Server) handleGrant(ctx context.Context, w http.ResponseWriter, r *http.Request, qt odata.QueryType, creds rdbms.Credentials) {
	if s.opts.Accounts == nil {
		s.writeError(w, http.StatusNotImplemented, errNoAccounts.Error())
		return
	}
	var req tableRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	if req.TableName == "" || req.AccountID == "" {
		s.writeError(w, http.StatusNotAcceptable, string(qt)+" requires tableName and accountId")
		return
	}
	var err error
	if qt == odata.QueryGrant {
		err = s.opts.Accounts.Grant(ctx, creds, req.TableName, req.AccountID)
	} else {
		err = s.opts.Accounts.Revoke(ctx, creds, req.TableName, req.AccountID)
	}
	if err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	s.writeOK(w, payload{AccountID: req.AccountID})
}

// handleRequestReset checks that the account id belongs to the e-mail and
// sends a reset link.
func (s *Server) handleRequestReset(ctx context.Context, w http.ResponseWriter, r *http.Request, desc *odata.Descriptor) {
	if s.opts.Accounts == nil {
		s.writeError(w, http.StatusNotImplemented, errNoAccounts.Error())
		return
	}
	var req accountRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	if req.Email == "" || req.AccountID == "" || auth.AccountID(s.opts.SecretSalt, req.Email) != req.AccountID {
		s.writeError(w, http.StatusNotAcceptable, "Incorrect reset_password request")
		return
	}
	if s.opts.ResetWithoutLink {
		s.resetAndRespond(ctx, w, req.AccountID)
		return
	}
	if s.opts.Notifier == nil {
		s.writeError(w, http.StatusNotImplemented, "Reset link delivery is not configured")
		return
	}
	token := s.opts.Tokens.Issue(req.AccountID)
	if err := s.opts.Notifier.SendResetLink(ctx, req.Email, s.resetLink(desc.Schema, token)); err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	s.writeOK(w, payload{Message: "Check your mail!"})
}

func (s *Server) resetLink(schema, token string) string {
	return strings.TrimSuffix(s.opts.PublicURL, "/") + "/" + schema + "/" + s.sysPath() + "/" + string(odata.QueryResetPassword) + "/" + token
}

func (s *Server) handleRedeemReset(ctx context.Context, w http.ResponseWriter, desc *odata.Descriptor) {
	if s.opts.Accounts == nil {
		s.writeError(w, http.StatusNotImplemented, errNoAccounts.Error())
		return
	}
	id, err := s.opts.Tokens.Redeem(desc.ResetToken)
	if err != nil {
		s.writeError(w, http.StatusNotAcceptable, "Invalid reset password token")
		return
	}
	if id != desc.Schema {
		s.writeError(w, http.StatusNotAcceptable, "Invalid reset password token")
		return
	}
	s.resetAndRespond(ctx, w, id)
}

func (s *Server) resetAndRespond(ctx context.Context, w http.ResponseWriter, id string) {
	password, err := s.opts.Accounts.ResetPassword(ctx, id)
	if err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	s.writeOK(w, payload{AccountID: id, Password: password})
}

// handleBucket registers or removes a bucket. Only the schema's own user
// may do so, and the credentials are checked against the backend first.
func (s *Server) handleBucket(ctx context.Context, w http.ResponseWriter, r *http.Request, qt odata.QueryType, creds rdbms.Credentials) {
	if s.opts.Store == nil {
		s.writeError(w, http.StatusNotImplemented, "Blob store is not configured")
		return
	}
	var req bucketRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	if s.opts.BucketPrefix == "" || !strings.HasPrefix(req.BucketName, s.opts.BucketPrefix) || req.BucketName == s.opts.BucketPrefix {
		s.writeError(w, http.StatusNotAcceptable, fmt.Sprintf("Bucket names must start with %q: %s", s.opts.BucketPrefix, req.BucketName))
		return
	}
	if creds.User != creds.Schema {
		s.writeError(w, http.StatusNotAcceptable, string(qt)+" is only allowed for the account's own schema")
		return
	}
	backend, err := s.opts.Opener.Open(ctx, creds)
	if err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	_ = backend.Close()

	if qt == odata.QueryCreateBucket {
		err = s.opts.Store.CreateBucket(ctx, creds.Schema, req.BucketName)
	} else {
		err = s.opts.Store.DropBucket(ctx, creds.Schema, req.BucketName)
	}
	if err != nil {
		s.writeError(w, http.StatusNotAcceptable, err.Error())
		return
	}
	s.writeOK(w, payload{AccountID: creds.User, Bucket: req.BucketName})
}
