package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"siakad/internal/audit"
	"siakad/internal/auth"
	"siakad/internal/authconfig"
	"siakad/internal/authflow"
	"siakad/internal/config"
	"siakad/internal/db"
	"siakad/internal/httpserver"
	"siakad/internal/logging"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", logging.Err(err))
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	dbConn, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		fatal(logger, "open db", err)
	}
	defer dbConn.Close()

	if err := db.RunMigrations(ctx, dbConn, cfg.SchemaDir); err != nil {
		fatal(logger, "run migrations", err)
	}

	userStore := auth.NewStore(dbConn)
	if cfg.RolesPath != "" {
		n, err := userStore.SeedRolesFromFile(ctx, cfg.RolesPath)
		if err != nil {
			fatal(logger, "seed roles", err)
		}
		logger.Info("roles seeded", "path", cfg.RolesPath, "changed", n)
	}
	auditStore := audit.NewStore(dbConn)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(dbConn, "siakad"),
	)

	flow, err := authflow.New(authconfig.Options(cfg, userStore, auditStore, logger, registry))
	if err != nil {
		fatal(logger, "init auth", err)
	}

	handler := httpserver.NewRouter(logger, authconfig.Export(flow), flow, userStore, auditStore, registry, cfg.CORSOrigins)
	server := httpserver.New(cfg.HTTPAddr, handler, logger)

	go func() {
		if err := server.Start(); err != nil {
			fatal(logger, "http server", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("shutdown error", logging.Err(err))
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, logging.Err(err))
	os.Exit(1)
}
