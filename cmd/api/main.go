package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/botledger/internal/api"
	"github.com/fastprodman/botledger/internal/idgen"
	"github.com/fastprodman/botledger/internal/infra/logging"
	"github.com/fastprodman/botledger/internal/infra/pgutils"
	"github.com/fastprodman/botledger/internal/notify"
	"github.com/fastprodman/botledger/internal/repos/credentials"
	credmemory "github.com/fastprodman/botledger/internal/repos/credentials/memory"
	credpostgres "github.com/fastprodman/botledger/internal/repos/credentials/postgres"
	"github.com/fastprodman/botledger/internal/services/auth"
	"github.com/fastprodman/botledger/internal/services/ledger"
	"github.com/fastprodman/botledger/pkg/envconf"
	"github.com/fastprodman/botledger/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	err = cfg.validate()
	if err != nil {
		return err
	}

	logger := logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	store, creds, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	ids, err := idgen.NewSnowflake(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}

	dispatcher, closeNotify, err := notify.FromConfig(ctx, cfg.Notify, logger)
	if err != nil {
		return fmt.Errorf("init notify: %w", err)
	}
	shutdownqueue.AddNamed("notify", closeNotify)

	// --- Services ---
	authSrv, err := auth.New(creds, cfg.Auth.SigningKey, auth.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	token, created, err := authSrv.EnsureAdmin(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		// Printed once; only its id is kept in storage.
		logger.Warn("no active admin credential, issued bootstrap token", "token", token)
	}

	ledgerSrv := ledger.New(store, ids, dispatcher, ledger.WithLogger(logger))

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, ledgerSrv, authSrv, logger, api.RouterConfig{CORSOrigins: cfg.CORSOrigins})

	shutdownqueue.AddNamed("http", func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port, "storage", cfg.StorageDriver, "node", cfg.NodeID)

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

func openStorage(ctx context.Context, cfg *apiConfig) (ledger.Store, credentials.Credentials, error) {
	if cfg.StorageDriver == storageMemory {
		slog.Warn("using in-memory storage, data is lost on restart")
		return ledger.NewMemoryStore(), credmemory.New(), nil
	}

	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.AddNamed("postgres", func(context.Context) error {
		return db.Close()
	})

	return ledger.NewPostgresStore(db), credpostgres.New(db), nil
}
