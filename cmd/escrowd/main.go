package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bountyvault/config"
	"bountyvault/core/state"
	"bountyvault/native/escrow"
	"bountyvault/observability"
	"bountyvault/observability/logging"
	"bountyvault/services/escrowd"
	"bountyvault/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.Setup("escrowd", cfg.Env, logging.ParseLevel(cfg.LogLevel))

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("create data dir", "err", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "escrow"))
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	metrics := observability.Escrowd()
	engine := escrow.NewEngine()
	engine.SetState(state.NewManager(db))
	engine.SetEmitter(escrowd.NewLogEmitter(logger, metrics))

	if err := bootstrap(cfg, engine); err != nil {
		logger.Error("bootstrap escrow module", "err", err)
		os.Exit(1)
	}

	limiter := escrowd.NewRateLimiter(escrowd.HTTPRateLimit{
		RequestsPerMinute: cfg.RequestsPerMinute,
		Burst:             cfg.RequestBurst,
	}, metrics)
	server := escrowd.NewServer(engine, escrowd.NewAuthenticator(cfg.OpsToken), limiter, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("escrow daemon listening", "addr", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down escrow daemon")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}

// bootstrap initialises the escrow module from config on first start. An
// already initialised store is left untouched.
func bootstrap(cfg *config.Config, engine *escrow.Engine) error {
	admin, ok, err := cfg.Admin()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	token, _, err := cfg.Token()
	if err != nil {
		return err
	}
	if err := engine.Init(admin, token); err != nil && !errors.Is(err, escrow.ErrAlreadyInitialized) {
		return err
	}
	return nil
}
