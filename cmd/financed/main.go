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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/finance-core/internal/api"
	"github.com/example/finance-core/internal/config"
	"github.com/example/finance-core/internal/finance"
	"github.com/example/finance-core/internal/integration"
	"github.com/example/finance-core/internal/security"
	"github.com/example/finance-core/internal/store"
	"github.com/example/finance-core/pkg/audit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := &store.PostgresStore{Pool: pool}
	if err := st.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	directory := integration.NewDirectory()

	trail := audit.NewTrail()
	trail.Correlate = security.CorrelationIDFromContext

	dispatcher := finance.NewDispatcher(st, directory, cfg.EInvoiceProvider, trail, logger)
	service := finance.NewService(st, dispatcher, trail, logger)
	importer := finance.NewImporter(st, directory, trail, logger)
	aggregator := finance.NewAggregator(st, logger)

	router := api.NewRouter(api.Dependencies{
		Logger:       logger,
		Invoices:     service,
		EInvoices:    dispatcher,
		BankSync:     importer,
		Summary:      aggregator,
		Auditor:      trail,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("finance engine listening", "addr", cfg.ListenAddr, "env", cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
