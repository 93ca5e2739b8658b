package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shelfcheck/backend/config"
	"github.com/shelfcheck/backend/internal/app"
	httpDelivery "github.com/shelfcheck/backend/internal/delivery/http"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "shelfcheck: %s\n", eris.ToString(err, true))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "load configuration")
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	logger := zap.L()
	defer func() { _ = logger.Sync() }()

	logger.Info("starting shelfcheck backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("index", cfg.Index.Type),
		zap.String("cache", cfg.Cache.Type))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("failed to close cache", zap.Error(err))
		}
	}()

	logger.Info("validation settings",
		zap.Float64("price_tolerance_percent", application.Matcher.Tolerance()*100),
		zap.Int("search_limit", cfg.Validation.SearchLimit),
		zap.Float64("similarity_threshold", cfg.Validation.SimilarityThreshold))

	handler := httpDelivery.NewHandler(application.Services(), logger)
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "server listen")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	logger.Info("server stopped")
	return nil
}
