package server

import (
	"encoding/json"
	"net/http"

	"github.com/kk-code-lab/odatalake/internal/rdbms"
)

// payload is the body of a successful non-streaming response.
type payload struct {
	RDBMSResponse *rdbms.Result `json:"rdbmsResponse,omitempty"`
	Email         string        `json:"email,omitempty"`
	AccountID     string        `json:"accountId,omitempty"`
	Password      string        `json:"password,omitempty"`
	Bucket        string        `json:"bucket,omitempty"`
	Message       string        `json:"message,omitempty"`
}

type envelope struct {
	D any `json:"d"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeOK(w http.ResponseWriter, p payload) {
	writeJSON(w, http.StatusOK, envelope{D: p})
}

// writeError writes the error envelope. Client faults use 406.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{D: map[string]string{
		"error": msg + ". See /" + s.helpPath() + " for help.",
	}})
}

// resultStream writes {"d":{"results":[...]}} one row at a time. The
// prefix goes out with the first row, so a failure before any row can
// still be reported as an error envelope.
type resultStream struct {
	w       http.ResponseWriter
	started bool
	err     error
}

func (rs *resultStream) begin() {
	if rs.started {
		return
	}
	rs.started = true
	rs.w.Header().Set("Content-Type", "application/json")
	rs.w.WriteHeader(http.StatusOK)
	_, rs.err = rs.w.Write([]byte(`{"d":{"results":[`))
}

func (rs *resultStream) add(v any) error {
	first := !rs.started
	rs.begin()
	if rs.err != nil {
		return rs.err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !first {
		raw = append([]byte{','}, raw...)
	}
	_, rs.err = rs.w.Write(raw)
	return rs.err
}

func (rs *resultStream) finish() error {
	rs.begin()
	if rs.err != nil {
		return rs.err
	}
	_, rs.err = rs.w.Write([]byte("]}}\n"))
	return rs.err
}
