package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"artiquity/internal/config"
	"artiquity/internal/logging"
	"artiquity/internal/server"
	"artiquity/internal/store"
	"artiquity/internal/watch"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return
	}
	defer st.Close()

	services, err := buildServices(ctx, cfg, st, logger)
	if err != nil {
		logger.Error("build services", logging.Error(err))
		return
	}

	srv, err := server.New(cfg, st, services, logger)
	if err != nil {
		logger.Error("create server", logging.Error(err))
		return
	}
	if err := srv.Start(ctx); err != nil {
		logger.Error("start server", logging.Error(err))
		return
	}
	defer srv.Stop()

	if cfg.Watch.Enabled {
		watcher, err := watch.New(cfg, services.Licensing, services.Notifier, logger)
		if err != nil {
			logger.Error("create watcher", logging.Error(err))
			return
		}
		if err := watcher.Start(ctx); err != nil {
			logger.Error("start watcher", logging.Error(err))
			return
		}
		defer watcher.Stop()
	}

	<-ctx.Done()
	logger.Info("artiquityd shutting down")
}
