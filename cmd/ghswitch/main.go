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

	"github.com/cli/browser"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/ghswitch/internal/adapter/driven/github"
	"github.com/ericfisherdev/ghswitch/internal/adapter/driven/opencode"
	sqliteadapter "github.com/ericfisherdev/ghswitch/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/ghswitch/internal/adapter/driving/http"
	"github.com/ericfisherdev/ghswitch/internal/application"
	"github.com/ericfisherdev/ghswitch/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on the writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	identityStore := sqliteadapter.NewIdentityRepo(db)
	oauthClient := githubadapter.NewClient()

	opencodeDirs := cfg.OpencodeDirs
	if len(opencodeDirs) == 0 {
		opencodeDirs = opencode.DefaultDirs()
	}
	propagator := opencode.NewPropagator(opencodeDirs, opencode.ProcessKiller{}, slog.Default())
	slog.Info("opencode candidate directories", "dirs", opencodeDirs)

	// 6. Create the account service.
	accountSvc := application.NewAccountService(identityStore, oauthClient, propagator, slog.Default())

	// 7. Adopt whatever session opencode currently holds before serving.
	reconcileCtx, cancelReconcile := context.WithTimeout(ctx, 15*time.Second)
	accountSvc.Reconcile(reconcileCtx)
	cancelReconcile()

	// 8. Create the HTTP command surface for the GUI shell.
	handler := httphandler.NewHandler(accountSvc, browser.OpenURL, cfg.ClientID, slog.Default())
	mux := httphandler.NewServeMux(handler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Long enough for a full device-flow poll to run inside one request.
		WriteTimeout: 20 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("ghswitch started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
