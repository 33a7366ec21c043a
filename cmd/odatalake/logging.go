package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kk-code-lab/odatalake/internal/config"
)

func newLogger(cfg config.Log, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, usageError(fmt.Sprintf("invalid log level %q", cfg.Level))
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, usageError(fmt.Sprintf("invalid log format %q", cfg.Format))
	}
}
