// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the engine's YAML configuration and maps it onto
// the per-component configs.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianPulse/services/pulse/collector"
	"github.com/AleutianAI/AleutianPulse/services/pulse/sinks/influx"
	"github.com/AleutianAI/AleutianPulse/services/pulse/sla"
	"github.com/AleutianAI/AleutianPulse/services/pulse/storage/badger"
	"github.com/AleutianAI/AleutianPulse/services/pulse/telemetry"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "10s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// CollectorSection configures the telemetry collector.
type CollectorSection struct {
	FlushInterval       Duration `yaml:"flush_interval"`
	FlushTimeout        Duration `yaml:"flush_timeout"`
	AggregationInterval Duration `yaml:"aggregation_interval"`
	QueryTimeout        Duration `yaml:"query_timeout"`
}

// MonitorSection configures the compliance engine.
type MonitorSection struct {
	EvaluationInterval   Duration `yaml:"evaluation_interval"`
	QueryTimeout         Duration `yaml:"query_timeout"`
	HistoryCapacity      int      `yaml:"history_capacity"`
	BudgetCriticalPct    float64  `yaml:"budget_critical_pct"`
	ConsecutiveBreaches  int      `yaml:"consecutive_breaches"`
	ComplianceWarningPct float64  `yaml:"compliance_warning_pct"`
	MeetingPct           float64  `yaml:"meeting_pct"`
	AtRiskPct            float64  `yaml:"at_risk_pct"`
}

// InfluxSection configures the InfluxDB telemetry backend.
type InfluxSection struct {
	URL            string   `yaml:"url"`
	Token          string   `yaml:"token"`
	Org            string   `yaml:"org"`
	Bucket         string   `yaml:"bucket"`
	HealthRetries  int      `yaml:"health_retries"`
	HealthInterval Duration `yaml:"health_interval"`
}

// StoreSection configures the embedded SLA definition store.
type StoreSection struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`

	// SyncWrites defaults to true when omitted; a pointer distinguishes
	// "unset" from an explicit false.
	SyncWrites *bool    `yaml:"sync_writes"`
	GCInterval Duration `yaml:"gc_interval"`
}

// ServerSection configures the operational HTTP surface.
type ServerSection struct {
	// MetricsAddr serves the Prometheus scrape endpoint. Empty disables
	// it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Config is the engine's full configuration.
type Config struct {
	Telemetry telemetry.Config `yaml:"telemetry"`
	Collector CollectorSection `yaml:"collector"`
	Monitor   MonitorSection   `yaml:"monitor"`
	Influx    InfluxSection    `yaml:"influx"`
	Store     StoreSection     `yaml:"store"`
	Server    ServerSection    `yaml:"server"`
}

// CollectorConfig maps the collector section onto the collector package.
// Zero fields fall through to that package's defaults.
func (c *Config) CollectorConfig() collector.Config {
	return collector.Config{
		FlushInterval:       time.Duration(c.Collector.FlushInterval),
		FlushTimeout:        time.Duration(c.Collector.FlushTimeout),
		AggregationInterval: time.Duration(c.Collector.AggregationInterval),
		QueryTimeout:        time.Duration(c.Collector.QueryTimeout),
	}
}

// MonitorConfig maps the monitor section onto the sla package.
func (c *Config) MonitorConfig() sla.Config {
	return sla.Config{
		EvaluationInterval:   time.Duration(c.Monitor.EvaluationInterval),
		QueryTimeout:         time.Duration(c.Monitor.QueryTimeout),
		HistoryCapacity:      c.Monitor.HistoryCapacity,
		BudgetCriticalPct:    c.Monitor.BudgetCriticalPct,
		ConsecutiveBreaches:  c.Monitor.ConsecutiveBreaches,
		ComplianceWarningPct: c.Monitor.ComplianceWarningPct,
		MeetingPct:           c.Monitor.MeetingPct,
		AtRiskPct:            c.Monitor.AtRiskPct,
	}
}

// InfluxConfig maps the influx section onto the influx package.
func (c *Config) InfluxConfig() influx.Config {
	return influx.Config{
		URL:            c.Influx.URL,
		Token:          c.Influx.Token,
		Org:            c.Influx.Org,
		Bucket:         c.Influx.Bucket,
		HealthRetries:  c.Influx.HealthRetries,
		HealthInterval: time.Duration(c.Influx.HealthInterval),
	}
}

// StoreConfig maps the store section onto the badger package.
func (c *Config) StoreConfig() badger.Config {
	cfg := badger.DefaultConfig()
	cfg.Path = c.Store.Path
	cfg.InMemory = c.Store.InMemory
	if c.Store.SyncWrites != nil {
		cfg.SyncWrites = *c.Store.SyncWrites
	}
	if c.Store.GCInterval != 0 {
		cfg.GCInterval = time.Duration(c.Store.GCInterval)
	}
	return cfg
}
