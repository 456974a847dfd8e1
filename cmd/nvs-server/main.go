package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sekai02/redcloud-nvs/internal/api"
	"github.com/sekai02/redcloud-nvs/internal/config"
	"github.com/sekai02/redcloud-nvs/internal/nvs"
	"github.com/sekai02/redcloud-nvs/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("NVS_CONFIG"), "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	logger, err := newLogger(os.Stdout, cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	slog.SetDefault(logger)

	engine, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		log.Fatal("Failed to open storage: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nvsCtx := nvs.New(nvs.WithLogger(logger))
	if err := nvsCtx.Init(ctx, engine); err != nil {
		engine.Close()
		log.Fatal("Failed to initialize NVS: ", err)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(nvsCtx, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP shutdown", "error", err)
		}
	}()

	slog.Info("Starting server", "addr", cfg.Server.Addr, "backend", cfg.Storage.Backend, "path", cfg.Storage.Path)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server stopped", "error", err)
	}

	if err := nvsCtx.Deinit(context.Background()); err != nil {
		slog.Error("Failed to close storage", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
