package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"fraud-graph-engine/internal/engine"
	"fraud-graph-engine/internal/generator"
	"fraud-graph-engine/internal/infrastructure/graph"
	"fraud-graph-engine/internal/infrastructure/http/router"
	"fraud-graph-engine/internal/infrastructure/metadata"
	"fraud-graph-engine/internal/interfaces/http/handler"
	"fraud-graph-engine/internal/monitor"
	"fraud-graph-engine/internal/orchestrator"
	"fraud-graph-engine/internal/pkg/config"
	"fraud-graph-engine/internal/rules"
)

const version = "1.0.0"

func main() {
	// Load .env if present
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	logger.WithField("version", version).Info("starting fraud graph engine API")

	kv, err := metadata.NewRedisKV(cfg.Metadata)
	if err != nil {
		logger.WithError(err).Fatal("metadata KV unavailable")
	}
	defer kv.Close()

	store, err := metadata.NewStore(cfg.Metadata, kv, logger)
	if err != nil {
		logger.WithError(err).Fatal("metadata store init failed")
	}

	client, err := graph.NewClient(cfg.Graph, store, logger)
	if err != nil {
		logger.WithError(err).Fatal("graph unavailable")
	}

	registry := rules.NewRegistry(
		rules.NewFlaggedCounterparty(client),
		rules.NewFlaggedNeighborhood(client),
		rules.NewFlaggedDevice(client),
	)
	mon := monitor.New(monitor.DefaultMaxHistory, registry.Names(), logger)
	eng := engine.New(cfg.Fraud, client, registry, store, mon, logger)
	gen := generator.New(cfg.Generation, client, eng, mon, logger)
	svc := orchestrator.New(cfg, client, eng, gen, registry, store, mon, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Warmup(ctx); err != nil {
		logger.WithError(err).Warn("warmup failed")
	}

	controlHandler := handler.NewControlHandler(svc)
	healthHandler := handler.NewHealthHandler(map[string]handler.CheckFunc{
		"graph":    client.HealthCheck,
		"metadata": kv.Ping,
	}, version)
	r := router.NewRouter(controlHandler, healthHandler, handler.MetricsHandler(mon))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	select {
	case <-ctx.Done():
	case <-svc.GeneratorFatal():
		logger.Error("transaction generation circuit tripped, shutting down")
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown error")
	}
	if err := svc.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
