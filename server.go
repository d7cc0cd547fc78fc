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

	"github.com/charmbracelet/log"

	"github.com/typewars/typewars-server/internal/auth"
	"github.com/typewars/typewars-server/internal/game"
	"github.com/typewars/typewars-server/internal/handlers"
	"github.com/typewars/typewars-server/internal/hub"
	"github.com/typewars/typewars-server/internal/storage"
	"github.com/typewars/typewars-server/internal/ticker"
	"github.com/typewars/typewars-server/internal/words"
)

// Serve wires the storage, hub, registry and tick source together and runs
// the HTTP server until the context is cancelled or a signal arrives.
func Serve(ctx context.Context, cfg *Config) error {
	level := log.InfoLevel
	if cfg.verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})

	store, err := storage.Open(cfg.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	source := &words.FileSource{
		RegularPath: cfg.wordsFile,
		YoPath:      cfg.yoWordsFile,
	}
	if _, err := source.RegularWords(); err != nil {
		return fmt.Errorf("word list unavailable: %w", err)
	}
	if _, err := source.YoWords(); err != nil {
		return fmt.Errorf("word list unavailable: %w", err)
	}

	h := hub.New()
	clock := ticker.New(h, cfg.tickPeriod)
	go clock.Run()
	defer clock.Stop()

	api := &handlers.API{
		Log:         logger,
		Store:       store,
		Hub:         h,
		Registry:    game.NewRegistry(),
		Auth:        auth.NewService(cfg.jwtSecret, cfg.accessTTL, cfg.refreshTTL),
		Words:       source,
		ReadTimeout: cfg.readTimeout,
		PingRate:    cfg.pingRate,
	}

	addr := fmt.Sprintf("%s:%d", cfg.bind, cfg.port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.Routes(),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
