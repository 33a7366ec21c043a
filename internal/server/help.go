package server

import (
	_ "embed"
	"net/http"
)

//go:embed help.txt
var helpText []byte

func (s *Server) handleHelp(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(helpText)
}
