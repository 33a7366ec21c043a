package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kk-code-lab/odatalake/internal/auth"
	"github.com/kk-code-lab/odatalake/internal/clock"
	"github.com/kk-code-lab/odatalake/internal/config"
	"github.com/kk-code-lab/odatalake/internal/odata"
	"github.com/kk-code-lab/odatalake/internal/rdbms"
	"github.com/kk-code-lab/odatalake/internal/server"
	"github.com/kk-code-lab/odatalake/internal/storage/chunk"
	"github.com/kk-code-lab/odatalake/internal/storage/chunkstore"
	"github.com/kk-code-lab/odatalake/internal/storage/kv"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

// openStore opens the blob store described by cfg.
func openStore(cfg config.Store, logger *slog.Logger) (*chunkstore.Store, error) {
	dir := cfg.Path
	if cfg.Engine == kv.KindSQLite {
		dir = filepath.Dir(cfg.Path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	engine, err := kv.Open(cfg.Engine, cfg.Path)
	if err != nil {
		return nil, err
	}
	store, err := chunkstore.New(chunkstore.Options{
		Engine:   engine,
		Splitter: chunk.NewFixedSplitter(cfg.ChunkSize),
		Clock:    clock.RealClock{},
		Logger:   logger,
	})
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return store, nil
}

func newParser(cfg config.Config) *odata.Parser {
	p := odata.NewParser(odata.NewCompiler(cfg.OData.DefaultRowCount))
	p.SysPath = cfg.Server.SysPath
	p.HelpPath = cfg.Server.HelpPath
	return p
}

func newOpener(cfg config.RDBMS) (rdbms.Opener, error) {
	if cfg.Backend == rdbms.KindSQLite {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
	}
	return rdbms.NewOpener(rdbms.Config{
		Backend:  cfg.Backend,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		DataDir:  cfg.DataDir,
	})
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	opener, err := newOpener(cfg.RDBMS)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenStore(cfg.Accounts.ResetTokenTTL, clock.RealClock{})
	handler, err := server.New(server.Options{
		Parser:           newParser(cfg),
		Opener:           opener,
		Store:            store,
		Tokens:           tokens,
		Notifier:         server.LogNotifier{Logger: logger},
		Admin:            rdbms.Credentials{User: cfg.RDBMS.AdminUser, Password: cfg.RDBMS.AdminPassword},
		SecretSalt:       cfg.Accounts.SecretSalt,
		PublicURL:        cfg.Server.PublicURL,
		BucketPrefix:     cfg.Server.BucketPrefix,
		AllowCORS:        cfg.Server.AllowCORS,
		ResetWithoutLink: cfg.Accounts.ResetWithoutLink,
		Logger:           logger,
		Metrics:          server.NewMetrics(),
		Clock:            clock.RealClock{},
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	useTLS := cfg.Server.TLSCert != ""
	if useTLS {
		tlsCfg, err := server.NewTLSConfig(cfg.Server.TLSCert, cfg.Server.TLSKey, logger)
		if err != nil {
			return err
		}
		httpSrv.TLSConfig = tlsCfg
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tokens.Run(gctx, cfg.Accounts.SweepInterval)
		return nil
	})
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr, "tls", useTLS, "rdbms", cfg.RDBMS.Backend, "store", cfg.Store.Engine, "version", version)
		var err error
		if useTLS {
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
