package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterkaminski/textpile/internal/config"
	"github.com/peterkaminski/textpile/internal/domain"
	"github.com/peterkaminski/textpile/internal/httpserver"
	"github.com/peterkaminski/textpile/internal/kv/badgerstore"
	"github.com/peterkaminski/textpile/internal/kv/memory"
	"github.com/peterkaminski/textpile/internal/kv/redisstore"
	"github.com/peterkaminski/textpile/internal/kv/sqlitestore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, closer, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Info("store ready", "backend", cfg.Store.Backend)

	retention, err := cfg.RetentionDuration()
	if err != nil {
		return err
	}

	hub := httpserver.NewHub(logger)
	svc := domain.NewService(store, cfg.Store.ReclaimAfter, logger, domain.ServiceOptions{
		SubmitToken: cfg.SubmitToken,
		AdminToken:  cfg.AdminToken,
		Retention:   retention,
		Notifier:    hub,
	})

	server := httpserver.NewServer(cfg, svc, hub, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started",
		"port", cfg.Port,
		"instance", cfg.InstanceName,
		"retention", cfg.DefaultRetention,
		"submit_gated", cfg.SubmitToken != "",
		"admin_configured", cfg.AdminToken != "",
	)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}

// openStore builds the configured key-value backend. The returned closer may
// be nil for backends with nothing to release.
func openStore(cfg *config.Config) (domain.KVStore, io.Closer, error) {
	switch cfg.Store.Backend {
	case "badger":
		s, err := badgerstore.Open(cfg.Store.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "redis":
		s, err := redisstore.Open(context.Background(), cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "sqlite":
		s, err := sqlitestore.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "memory":
		return memory.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
