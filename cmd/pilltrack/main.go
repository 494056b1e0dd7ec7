package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/lvalenta/pilltrack/internal/adapter/driven/netprobe"
	"github.com/lvalenta/pilltrack/internal/adapter/driven/remote"
	sqliteadapter "github.com/lvalenta/pilltrack/internal/adapter/driven/sqlite"
	httphandler "github.com/lvalenta/pilltrack/internal/adapter/driving/http"
	"github.com/lvalenta/pilltrack/internal/application"
	"github.com/lvalenta/pilltrack/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"api_base_url", cfg.APIBaseURL,
		"prescriptions_ttl", cfg.PrescriptionsTTL,
		"reminders_ttl", cfg.RemindersTTL,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
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

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	draftStore := sqliteadapter.NewDraftRepo(db, slog.Default())
	metaStore := sqliteadapter.NewSyncMetaRepo(db)
	client := remote.NewClient(cfg.APIBaseURL, cfg.APIToken)
	probe := netprobe.New()

	// 6. Bind the synced collections and the mutation guard.
	prescriptions := application.NewPrescriptionCollection(
		client, metaStore, probe, cfg.PrescriptionsTTL, cfg.FetchTimeout, slog.Default())
	reminders := application.NewReminderCollection(
		client, metaStore, probe, cfg.RemindersTTL, cfg.FetchTimeout, slog.Default())
	reminderGuard := application.NewMutationGuard(reminders, slog.Default())

	// 7. Create the draft service: startup sweep, then the periodic loop.
	draftSvc := application.NewDraftService(
		draftStore, client, cfg.DraftMaxAge, cfg.DraftSweepInterval, slog.Default())
	if err := draftSvc.Init(ctx); err != nil {
		slog.Error("startup draft sweep failed", "error", err)
	}
	go draftSvc.Start(ctx)

	// 8. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(
		prescriptions, reminders, reminderGuard, draftSvc, client, probe, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 9. Log startup complete.
	slog.Info("pilltrack started", "listen_addr", cfg.ListenAddr)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 11. Graceful shutdown with 10s timeout to drain the HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
