// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package collector buffers metrics, events, and trace spans produced by
// application code and drains them to external sinks in the background.
//
// Recording calls are synchronous, in-memory, and never fail due to
// downstream sink issues. Delivery is at-least-once: buffers are cleared
// only after the sink acknowledges a batch, so duplicates are possible on
// retry but points are never silently lost.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianPulse/services/pulse/anomaly"
	"github.com/AleutianAI/AleutianPulse/services/pulse/telemetry"
)

// rollupInfix marks metric names derived by the aggregation loop. Derived
// metrics are never re-aggregated.
const rollupInfix = "_rollup_"

// AggregationWindow is one rolling window recomputed by the aggregation
// loop.
type AggregationWindow struct {
	Name     string
	Duration time.Duration
}

// DefaultAggregationWindows returns the standard rolling windows.
func DefaultAggregationWindows() []AggregationWindow {
	return []AggregationWindow{
		{Name: "1m", Duration: time.Minute},
		{Name: "5m", Duration: 5 * time.Minute},
		{Name: "15m", Duration: 15 * time.Minute},
		{Name: "1h", Duration: time.Hour},
		{Name: "1d", Duration: 24 * time.Hour},
	}
}

// Config controls collector behavior. Immutable after NewCollector.
type Config struct {
	// FlushInterval is how often the background flush loop drains buffers.
	FlushInterval time.Duration

	// FlushTimeout bounds a single flush, including sink calls.
	FlushTimeout time.Duration

	// AggregationInterval is how often rolling-window aggregates are
	// recomputed. Only used when a MetricQuerier is configured.
	AggregationInterval time.Duration

	// QueryTimeout bounds a single metric query during aggregation.
	QueryTimeout time.Duration

	// AggregationWindows are the rolling windows to recompute.
	AggregationWindows []AggregationWindow
}

// ApplyDefaults fills zero fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.FlushInterval == 0 {
		c.FlushInterval = 10 * time.Second
	}
	if c.FlushTimeout == 0 {
		c.FlushTimeout = 15 * time.Second
	}
	if c.AggregationInterval == 0 {
		c.AggregationInterval = time.Minute
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.AggregationWindows == nil {
		c.AggregationWindows = DefaultAggregationWindows()
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %s", c.FlushInterval)
	}
	if c.AggregationInterval <= 0 {
		return fmt.Errorf("aggregation interval must be positive, got %s", c.AggregationInterval)
	}
	for _, w := range c.AggregationWindows {
		if w.Name == "" || w.Duration <= 0 {
			return fmt.Errorf("invalid aggregation window %q (%s)", w.Name, w.Duration)
		}
	}
	return nil
}

// PercentileBaseline is one expected percentile value for a metric.
// Baselines are ordered; regression checks report the first breach.
type PercentileBaseline struct {
	Percentile string
	Value      float64
}

// Regression describes a performance regression against a baseline.
type Regression struct {
	Metric            string
	Percentile        string
	Baseline          float64
	Current           float64
	RegressionPercent float64
}

// Collector owns the in-memory telemetry buffers.
//
// # Thread Safety
//
// Safe for concurrent use. Recording calls are non-blocking hot-path
// operations; only Flush and the background loops touch the sinks.
type Collector struct {
	cfg         Config
	logger      *slog.Logger
	metricsSink MetricsSink
	eventSink   EventSink
	querier     MetricQuerier
	instr       *telemetry.Metrics

	mu        sync.Mutex
	metrics   map[string][]MetricPoint
	events    []TelemetryEvent
	detectors map[string]*anomaly.Detector
	baselines map[string][]PercentileBaseline
	seen      map[string]struct{}
	seenOrder []string
	closed    bool

	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// Option customizes a Collector.
type Option func(*Collector)

// WithQuerier enables the rolling-window aggregation loop using the given
// metric query backend.
func WithQuerier(q MetricQuerier) Option {
	return func(c *Collector) { c.querier = q }
}

// WithInstrumentation wires engine self-metrics. A nil Metrics disables
// instrumentation.
func WithInstrumentation(m *telemetry.Metrics) Option {
	return func(c *Collector) { c.instr = m }
}

// NewCollector creates a collector draining to the given sinks.
//
// Inputs:
//   - cfg: Collector configuration. Zero values use defaults.
//   - metricsSink: Destination for drained metric series. Required.
//   - eventSink: Destination for drained events and spans. Required.
//   - logger: Logger for background loop diagnostics. If nil, uses
//     slog.Default().
//
// Outputs:
//   - *Collector: The created collector. Background loops are not running
//     until Start is called.
//   - error: Non-nil if configuration or dependencies are invalid.
func NewCollector(cfg Config, metricsSink MetricsSink, eventSink EventSink, logger *slog.Logger, opts ...Option) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collector config: %w", err)
	}
	if metricsSink == nil {
		return nil, ErrNilMetricsSink
	}
	if eventSink == nil {
		return nil, ErrNilEventSink
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Collector{
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "collector")),
		metricsSink: metricsSink,
		eventSink:   eventSink,
		metrics:     make(map[string][]MetricPoint),
		detectors:   make(map[string]*anomaly.Detector),
		baselines:   make(map[string][]PercentileBaseline),
		seen:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RecordMetric buffers one observation of a named metric at the current
// time. If an anomaly detector is registered for the metric, the value is
// judged synchronously and a metric_anomaly event is recorded on breach.
//
// Never fails; safe on hot paths.
func (c *Collector) RecordMetric(name string, value float64, labels map[string]string) {
	c.recordMetric(time.Now(), name, value, labels, "")
}

// RecordMetricAt is RecordMetric with an explicit timestamp.
func (c *Collector) RecordMetricAt(ts time.Time, name string, value float64, labels map[string]string) {
	c.recordMetric(ts, name, value, labels, "")
}

func (c *Collector) recordMetric(ts time.Time, name string, value float64, labels map[string]string, exemplar string) {
	var flagged bool

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	pt := MetricPoint{
		Timestamp:       ts,
		Value:           value,
		Labels:          copyLabels(labels),
		ExemplarTraceID: exemplar,
	}
	c.metrics[name] = append(c.metrics[name], pt)
	c.noteMetricLocked(name)

	if det := c.detectors[name]; det != nil {
		if det.IsAnomaly(value) {
			flagged = true
			lo, hi := det.ExpectedRange()
			attrs := NewAttributes(
				Attr{Key: "metric_name", Value: StringValue(name)},
				Attr{Key: "value", Value: FloatValue(value)},
				Attr{Key: "expected_range", Value: ListValue(FloatValue(lo), FloatValue(hi))},
			)
			c.appendEventLocked(EventKindMetric, "metric_anomaly", attrs, SeverityWarning, nil)
		}
	}
	c.mu.Unlock()

	if c.instr != nil {
		c.instr.MetricsRecorded.Add(context.Background(), 1)
		if flagged {
			c.instr.AnomaliesDetected.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("metric", name)))
		}
	}
}

// RecordEvent buffers a telemetry event. When called inside an active
// span scope (via TraceOperation), the event also attaches to the span
// with propagated trace and span ids.
//
// An empty severity defaults to info. Never fails; safe on hot paths.
func (c *Collector) RecordEvent(ctx context.Context, name string, attrs *Attributes, severity Severity) {
	if severity == "" {
		severity = SeverityInfo
	}
	span := SpanFromContext(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ev := c.appendEventLocked(EventKindEvent, name, attrs.Clone(), severity, span)
	if span != nil {
		span.Events = append(span.Events, ev)
	}
	c.mu.Unlock()

	if c.instr != nil {
		c.instr.EventsRecorded.Add(context.Background(), 1)
	}
}

// appendEventLocked builds and buffers an event. Caller holds c.mu.
func (c *Collector) appendEventLocked(kind EventKind, name string, attrs *Attributes, severity Severity, span *TraceSpan) TelemetryEvent {
	ev := TelemetryEvent{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Kind:       kind,
		Name:       name,
		Attributes: attrs,
		Severity:   severity,
	}
	if span != nil {
		ev.TraceID = span.TraceID
		ev.SpanID = span.SpanID
	}
	c.events = append(c.events, ev)
	return ev
}

// RegisterAnomalyDetector attaches a detector to a metric name. Subsequent
// RecordMetric calls for that name are judged synchronously.
//
// Returns ErrDetectorRegistered on duplicate registration.
func (c *Collector) RegisterAnomalyDetector(metricName string, det *anomaly.Detector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCollectorClosed
	}
	if _, ok := c.detectors[metricName]; ok {
		return fmt.Errorf("%w: %s", ErrDetectorRegistered, metricName)
	}
	c.detectors[metricName] = det
	return nil
}

// SetPerformanceBaseline stores expected percentile values for a metric.
// Order is significant: regression checks report the first breached entry.
func (c *Collector) SetPerformanceBaseline(metricName string, baseline []PercentileBaseline) {
	cp := make([]PercentileBaseline, len(baseline))
	copy(cp, baseline)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.baselines[metricName] = cp
}

// CheckPerformanceRegression compares a current value against the metric's
// baseline.
//
// Description:
//
//	Returns nil when no baseline exists or no percentile is breached.
//	Otherwise returns the first percentile (in baseline order) where
//	current > baseline·(1+thresholdPct/100). A non-positive thresholdPct
//	uses the default of 10%.
func (c *Collector) CheckPerformanceRegression(metricName string, current float64, thresholdPct float64) *Regression {
	if thresholdPct <= 0 {
		thresholdPct = 10.0
	}

	c.mu.Lock()
	baseline := c.baselines[metricName]
	c.mu.Unlock()

	for _, pb := range baseline {
		if current > pb.Value*(1+thresholdPct/100) {
			return &Regression{
				Metric:            metricName,
				Percentile:        pb.Percentile,
				Baseline:          pb.Value,
				Current:           current,
				RegressionPercent: (current - pb.Value) * 100 / pb.Value,
			}
		}
	}
	return nil
}

// noteMetricLocked tracks metric names for the aggregation loop. Caller
// holds c.mu.
func (c *Collector) noteMetricLocked(name string) {
	if _, ok := c.seen[name]; ok {
		return
	}
	c.seen[name] = struct{}{}
	c.seenOrder = append(c.seenOrder, name)
}

// metricNames returns buffered metric names in first-seen order, excluding
// derived rollups.
func (c *Collector) metricNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.seenOrder))
	for _, name := range c.seenOrder {
		if strings.Contains(name, rollupInfix) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	return cp
}
