// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command pulse starts the Aleutian Pulse telemetry and compliance engine.
//
// Pulse buffers application telemetry in memory, flushes it to InfluxDB
// on a fixed cadence, and continuously evaluates registered SLAs against
// the stored metrics, firing alerts as error budgets burn down.
//
// Usage:
//
//	go run ./cmd/pulse
//	go run ./cmd/pulse -config /etc/pulse/pulse.yaml
//	go run ./cmd/pulse -debug
//
// The Prometheus scrape endpoint for the engine's own health metrics is
// served on server.metrics_addr (default :9464).
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianPulse/services/pulse/collector"
	"github.com/AleutianAI/AleutianPulse/services/pulse/config"
	"github.com/AleutianAI/AleutianPulse/services/pulse/sinks/influx"
	"github.com/AleutianAI/AleutianPulse/services/pulse/sla"
	"github.com/AleutianAI/AleutianPulse/services/pulse/storage/badger"
	"github.com/AleutianAI/AleutianPulse/services/pulse/telemetry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("pulse exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := telemetryShutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	instr, err := telemetry.NewMetrics(otel.Meter("pulse"))
	if err != nil {
		return err
	}

	store, err := badger.Open(cfg.StoreConfig(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("definition store close failed", slog.String("error", err.Error()))
		}
	}()

	backend, err := influx.New(ctx, cfg.InfluxConfig(), logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	coll, err := collector.NewCollector(cfg.CollectorConfig(), backend, backend, logger,
		collector.WithQuerier(backend),
		collector.WithInstrumentation(instr))
	if err != nil {
		return err
	}

	monitor, err := sla.NewMonitor(cfg.MonitorConfig(), backend, logger,
		sla.WithDefinitionStore(store),
		sla.WithCollector(coll),
		sla.WithInstrumentation(instr))
	if err != nil {
		return err
	}

	if err := monitor.LoadFromStore(ctx); err != nil {
		return err
	}

	if err := coll.Start(ctx); err != nil {
		return err
	}
	if err := monitor.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.MetricsAddr != "" {
		if handler := telemetry.MetricsHandler(); handler != nil {
			mux := http.NewServeMux()
			mux.Handle("/metrics", handler)
			srv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}

			g.Go(func() error {
				logger.Info("metrics endpoint listening", slog.String("addr", cfg.Server.MetricsAddr))
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(sctx)
			})
		}
	}

	logger.Info("pulse engine started")
	<-gctx.Done()
	logger.Info("shutting down")

	if err := monitor.Close(); err != nil {
		logger.Warn("monitor close failed", slog.String("error", err.Error()))
	}
	if err := coll.Close(); err != nil {
		logger.Warn("collector close failed", slog.String("error", err.Error()))
	}
	return g.Wait()
}
