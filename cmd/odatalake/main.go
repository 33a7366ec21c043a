package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kk-code-lab/odatalake/internal/config"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath string
	addr       string
	dataDir    string
	logLevel   string
}

func main() {
	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
}

// reportError prints err unless it asks to stay quiet and returns the
// process exit code.
func reportError(w io.Writer, err error) int {
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		if !exitErr.Quiet() {
			fmt.Fprintln(w, "error:", exitErr.Error())
		}
		return exitErr.ExitCode()
	}
	fmt.Fprintln(w, "error:", err)
	return 1
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "odatalake",
		Short:         "OData query server with a versioned blob store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides server.addr)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Base data directory for rdbms and blob files")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error (overrides log.level)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newParseCommand(opts))
	cmd.AddCommand(newBlobCommand(opts))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// loadConfig reads the config file and applies flag overrides.
func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, &exitCodeError{code: 2, msg: err.Error()}
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.dataDir != "" {
		cfg.RDBMS.DataDir = filepath.Join(o.dataDir, "rdbms")
		cfg.Store.Path = filepath.Join(o.dataDir, "buckets")
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "odatalake %s (commit %s)\n", version, commit)
			return nil
		},
	}
}
