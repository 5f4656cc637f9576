package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"tidy/internal/config"
	"tidy/internal/daemon"
	"tidy/internal/logging"
	"tidy/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "tidyd.log"),
		},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		fatal(logger, "open store", err)
	}
	defer st.Close()

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		fatal(logger, "create daemon", err)
	}
	if err := d.Start(ctx); err != nil {
		fatal(logger, "start daemon", err)
	}

	logger.Info("tidyd started",
		logging.String("version", daemon.Version),
		logging.String("bind", d.Addr()))

	<-ctx.Done()
	logger.Info("tidyd shutting down")
	d.Stop()
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, logging.Error(err))
	os.Exit(1)
}
