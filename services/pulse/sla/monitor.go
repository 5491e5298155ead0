// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sla implements the periodic SLO/SLA compliance engine.
//
// The monitor holds registered SLAs in memory, measures each SLO against
// an external metric query backend on a fixed cadence, maintains rolling
// error-budget state in bounded ring buffers, and fires alerts through an
// alert sink. Registration errors surface synchronously; measurement
// failures are isolated per SLO and never stop the loop.
package sla

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianPulse/services/pulse/collector"
	"github.com/AleutianAI/AleutianPulse/services/pulse/history"
	"github.com/AleutianAI/AleutianPulse/services/pulse/slo"
	"github.com/AleutianAI/AleutianPulse/services/pulse/telemetry"
)

// Measurement is one compliance sample for an (SLA, SLO) pair.
// Append-only; retained in a bounded ring buffer.
type Measurement struct {
	Timestamp     time.Time
	SLA           string
	SLO           string
	MeasuredValue float64
	TargetValue   float64
	Compliant     bool

	// ErrorBudgetConsumed is the percentage of the error budget used over
	// the SLO's rolling window, always within [0,100].
	ErrorBudgetConsumed float64

	// MeasurementFailed marks a synthetic sample recorded when the metric
	// query failed or timed out.
	MeasurementFailed bool
}

// SLODetail is the per-SLO slice of a compliance snapshot.
type SLODetail struct {
	SLO                 string
	MeasuredValue       float64
	TargetValue         float64
	Compliant           bool
	ErrorBudgetConsumed float64
	MeasurementFailed   bool
}

// Snapshot is the cached compliance state of one SLA after an evaluation
// cycle.
type Snapshot struct {
	Timestamp        time.Time
	SLA              string
	OverallCompliant bool

	// CompliancePct is the share of compliant samples across all of the
	// SLA's SLOs within its reporting period.
	CompliancePct float64

	SLOs []SLODetail
}

// Config controls the monitor. Immutable after NewMonitor.
type Config struct {
	// EvaluationInterval is the compliance loop cadence.
	EvaluationInterval time.Duration

	// QueryTimeout bounds each metric query during evaluation.
	QueryTimeout time.Duration

	// HistoryCapacity is the per-(SLA,SLO) measurement ring capacity.
	HistoryCapacity int

	// BudgetCriticalPct fires error_budget_critical when consumed budget
	// reaches this percentage.
	BudgetCriticalPct float64

	// ConsecutiveBreaches fires consecutive_breaches when this many
	// measurements in a row are non-compliant.
	ConsecutiveBreaches int

	// ComplianceWarningPct fires compliance_warning when SLA-level
	// compliance drops below this percentage.
	ComplianceWarningPct float64

	// MeetingPct and AtRiskPct are the status boundaries. They are
	// deliberately independent of the alert thresholds above.
	MeetingPct float64
	AtRiskPct  float64
}

// ApplyDefaults fills zero fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.EvaluationInterval == 0 {
		c.EvaluationInterval = time.Minute
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 10 * time.Second
	}
	if c.HistoryCapacity == 0 {
		c.HistoryCapacity = 10000
	}
	if c.BudgetCriticalPct == 0 {
		c.BudgetCriticalPct = 80
	}
	if c.ConsecutiveBreaches == 0 {
		c.ConsecutiveBreaches = 3
	}
	if c.ComplianceWarningPct == 0 {
		c.ComplianceWarningPct = 95
	}
	if c.MeetingPct == 0 {
		c.MeetingPct = 99.9
	}
	if c.AtRiskPct == 0 {
		c.AtRiskPct = 95.0
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	if c.EvaluationInterval <= 0 {
		return fmt.Errorf("evaluation interval must be positive, got %s", c.EvaluationInterval)
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("history capacity must be positive, got %d", c.HistoryCapacity)
	}
	if c.ConsecutiveBreaches <= 0 {
		return fmt.Errorf("consecutive breach threshold must be positive, got %d", c.ConsecutiveBreaches)
	}
	if c.AtRiskPct > c.MeetingPct {
		return fmt.Errorf("at-risk boundary %.2f above meeting boundary %.2f", c.AtRiskPct, c.MeetingPct)
	}
	return nil
}

// Monitor is the compliance engine.
//
// # Thread Safety
//
// Safe for concurrent use. Registration, status, and report calls may run
// alongside the evaluation loop.
type Monitor struct {
	cfg     Config
	logger  *slog.Logger
	querier collector.MetricQuerier
	alerts  AlertSink
	store   DefinitionStore
	coll    *collector.Collector
	instr   *telemetry.Metrics
	clock   func() time.Time

	mu      sync.RWMutex
	slas    map[string]slo.SLA
	order   []string
	buffers map[string]*history.RingBuffer[Measurement]
	cache   map[string]Snapshot
	closed  bool

	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithAlertSink replaces the default log-backed alert sink.
func WithAlertSink(s AlertSink) Option {
	return func(m *Monitor) { m.alerts = s }
}

// WithDefinitionStore persists registered SLAs to the given store.
func WithDefinitionStore(s DefinitionStore) Option {
	return func(m *Monitor) { m.store = s }
}

// WithCollector mirrors alerts and evaluation bookkeeping as telemetry
// events through the given collector.
func WithCollector(c *collector.Collector) Option {
	return func(m *Monitor) { m.coll = c }
}

// WithInstrumentation wires engine self-metrics.
func WithInstrumentation(t *telemetry.Metrics) Option {
	return func(m *Monitor) { m.instr = t }
}

// WithClock overrides the time source. For tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Monitor) { m.clock = clock }
}

// NewMonitor creates a compliance monitor backed by the given metric
// query backend.
func NewMonitor(cfg Config, querier collector.MetricQuerier, logger *slog.Logger, opts ...Option) (*Monitor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}
	if querier == nil {
		return nil, ErrNilQuerier
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "sla_monitor")),
		querier: querier,
		clock:   time.Now,
		slas:    make(map[string]slo.SLA),
		buffers: make(map[string]*history.RingBuffer[Measurement]),
		cache:   make(map[string]Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.alerts == nil {
		m.alerts = &LogAlertSink{Logger: m.logger}
	}
	return m, nil
}

// RegisterSLA validates and registers an SLA, and upserts its definition
// to the definition store when one is configured.
//
// Configuration errors (invalid definition, duplicate name) surface
// synchronously and are never swallowed.
func (m *Monitor) RegisterSLA(ctx context.Context, s slo.SLA) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if _, ok := m.slas[s.Name]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateSLA, s.Name)
	}
	m.slas[s.Name] = s
	m.order = append(m.order, s.Name)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Upsert(ctx, s); err != nil {
			return fmt.Errorf("persist sla %q: %w", s.Name, err)
		}
	}

	m.logger.Info("sla registered",
		slog.String("sla", s.Name),
		slog.String("customer", s.Customer),
		slog.Int("slos", len(s.SLOs)))
	return nil
}

// UnregisterSLA removes an SLA and deletes its stored definition.
func (m *Monitor) UnregisterSLA(ctx context.Context, name string) error {
	m.mu.Lock()
	if _, ok := m.slas[name]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSLANotFound, name)
	}
	delete(m.slas, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	delete(m.cache, name)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete sla %q: %w", name, err)
		}
	}
	return nil
}

// LoadFromStore registers every definition found in the definition store.
// Already-registered names are skipped.
func (m *Monitor) LoadFromStore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	defs, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list slas: %w", err)
	}
	for _, s := range defs {
		m.mu.RLock()
		_, exists := m.slas[s.Name]
		m.mu.RUnlock()
		if exists {
			continue
		}
		if err := m.RegisterSLA(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// SLA returns a registered definition by name.
func (m *Monitor) SLA(name string) (slo.SLA, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slas[name]
	if !ok {
		return slo.SLA{}, fmt.Errorf("%w: %s", ErrSLANotFound, name)
	}
	return s, nil
}

// registered returns SLA definitions in registration order.
func (m *Monitor) registered() []slo.SLA {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]slo.SLA, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.slas[name])
	}
	return out
}

// bufferKey identifies a measurement ring buffer.
func bufferKey(sla, sloName string) string {
	return sla + "\x00" + sloName
}

// buffer returns (creating if needed) the measurement ring for a pair.
// Caller must hold m.mu.
func (m *Monitor) bufferLocked(sla, sloName string) *history.RingBuffer[Measurement] {
	key := bufferKey(sla, sloName)
	buf, ok := m.buffers[key]
	if !ok {
		buf = history.NewRingBuffer[Measurement](m.cfg.HistoryCapacity)
		m.buffers[key] = buf
	}
	return buf
}

// Start launches the compliance loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMonitorClosed
	}
	if m.started {
		return nil
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.loop(ctx)
	return nil
}

// Close stops the compliance loop.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	return nil
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.EvaluationInterval)
	defer ticker.Stop()

	m.logger.Debug("compliance loop started",
		slog.Duration("interval", m.cfg.EvaluationInterval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("compliance loop stopped")
			return
		case <-ticker.C:
			m.runIteration(ctx)
		}
	}
}

// runIteration evaluates every registered SLA once, containing failures
// so a bad cycle never kills the loop.
func (m *Monitor) runIteration(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("compliance iteration panicked", slog.Any("panic", r))
		}
	}()

	now := m.clock()
	for _, s := range m.registered() {
		if err := ctx.Err(); err != nil {
			return
		}
		if s.Expired(now) {
			m.logger.Debug("skipping expired sla", slog.String("sla", s.Name))
			continue
		}
		if _, err := m.EvaluateSLA(ctx, s.Name); err != nil {
			m.logger.Warn("sla evaluation failed",
				slog.String("sla", s.Name),
				slog.String("error", err.Error()))
		}
	}
}
