// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package influx persists telemetry to InfluxDB and answers the metric
// range queries the compliance engine evaluates SLOs against.
//
// One Client serves all three roles: metrics sink, event sink, and metric
// querier. Writes use the blocking write API so flush error handling stays
// synchronous; queries go through Flux with the descriptor validated
// against a strict pattern to prevent Flux injection.
package influx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/AleutianAI/AleutianPulse/services/pulse/collector"
)

// Config holds InfluxDB connection settings.
type Config struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`

	// HealthRetries and HealthInterval control the readiness wait in New.
	HealthRetries  int           `yaml:"health_retries"`
	HealthInterval time.Duration `yaml:"health_interval"`
}

// ApplyDefaults fills zero fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "http://influxdb:8086"
	}
	if c.Org == "" {
		c.Org = "aleutian-pulse"
	}
	if c.Bucket == "" {
		c.Bucket = "telemetry"
	}
	if c.HealthRetries == 0 {
		c.HealthRetries = 10
	}
	if c.HealthInterval == 0 {
		c.HealthInterval = 3 * time.Second
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("influx url must not be empty")
	}
	if c.Token == "" {
		return fmt.Errorf("influx token must not be empty")
	}
	return nil
}

// Client is an InfluxDB-backed telemetry store.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying influxdb2 client is concurrency
// safe.
type Client struct {
	cfg      Config
	logger   *slog.Logger
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
}

// Compile-time wiring checks against the collector contracts.
var (
	_ collector.MetricsSink   = (*Client)(nil)
	_ collector.EventSink     = (*Client)(nil)
	_ collector.MetricQuerier = (*Client)(nil)
)

// New connects to InfluxDB and waits for it to report healthy.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid influx config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "influx"))

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	var lastErr error
	for i := 0; i < cfg.HealthRetries; i++ {
		health, err := client.Health(ctx)
		if err == nil && health.Status == "pass" {
			lastErr = nil
			break
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("influx health status %q", health.Status)
		}
		logger.Warn("influx not ready, retrying",
			slog.Int("attempt", i+1),
			slog.String("error", lastErr.Error()))
		select {
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		case <-time.After(cfg.HealthInterval):
		}
	}
	if lastErr != nil {
		client.Close()
		return nil, fmt.Errorf("influx never became healthy: %w", lastErr)
	}

	logger.Info("connected to influx",
		slog.String("url", cfg.URL),
		slog.String("org", cfg.Org),
		slog.String("bucket", cfg.Bucket))

	return &Client{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
	}, nil
}

// Close releases the underlying HTTP client.
func (c *Client) Close() {
	c.client.Close()
}
