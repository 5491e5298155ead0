// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Flush drains the metric and event buffers to the sinks.
//
// Description:
//
//	Buffered points are grouped by (metric, label set) into series and
//	handed to the metrics sink; events go to the event sink. On sink error
//	or cancellation the drained data is restored to the front of the
//	buffers and retried on the next flush. Within one producer, FIFO order
//	is preserved across restore.
func (c *Collector) Flush(ctx context.Context) error {
	start := time.Now()

	c.mu.Lock()
	metrics := c.metrics
	events := c.events
	c.metrics = make(map[string][]MetricPoint, len(metrics))
	c.events = nil
	c.mu.Unlock()

	if len(metrics) == 0 && len(events) == 0 {
		return nil
	}

	var errs []error
	if err := c.flushMetrics(ctx, metrics); err != nil {
		errs = append(errs, err)
	}
	if err := c.flushEvents(ctx, events); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if c.instr != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.instr.FlushesTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("outcome", outcome)))
		c.instr.FlushDuration.Record(context.Background(), time.Since(start).Seconds())
	}
	return err
}

func (c *Collector) flushMetrics(ctx context.Context, metrics map[string][]MetricPoint) error {
	if len(metrics) == 0 {
		return nil
	}
	// A cancelled flush must not lose points it failed to hand off.
	if err := ctx.Err(); err != nil {
		c.restoreMetrics(metrics)
		return err
	}
	if err := c.metricsSink.WriteTimeSeries(ctx, buildSeries(metrics)); err != nil {
		c.restoreMetrics(metrics)
		return fmt.Errorf("write time series: %w", err)
	}
	return nil
}

func (c *Collector) flushEvents(ctx context.Context, events []TelemetryEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		c.restoreEvents(events)
		return err
	}
	if err := c.eventSink.WriteEvents(ctx, events); err != nil {
		c.restoreEvents(events)
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

// restoreMetrics puts unflushed points back ahead of anything recorded
// since the drain, preserving FIFO order.
func (c *Collector) restoreMetrics(metrics map[string][]MetricPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, pts := range metrics {
		c.metrics[name] = append(pts, c.metrics[name]...)
	}
}

func (c *Collector) restoreEvents(events []TelemetryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(events, c.events...)
}

// buildSeries groups buffered points into one TimeSeries per
// (metric, label set), in deterministic order.
func buildSeries(metrics map[string][]MetricPoint) []TimeSeries {
	type key struct {
		name        string
		fingerprint string
	}
	groups := make(map[key]*TimeSeries)
	var order []key

	for name, pts := range metrics {
		for _, pt := range pts {
			k := key{name: name, fingerprint: labelFingerprint(pt.Labels)}
			ts, ok := groups[k]
			if !ok {
				ts = &TimeSeries{Metric: name, Labels: pt.Labels}
				groups[k] = ts
				order = append(order, k)
			}
			ts.Points = append(ts.Points, Point{Timestamp: pt.Timestamp, Value: pt.Value})
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].name != order[j].name {
			return order[i].name < order[j].name
		}
		return order[i].fingerprint < order[j].fingerprint
	})

	out := make([]TimeSeries, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	return out
}

// Start launches the background flush and aggregation loops.
//
// The loops run until ctx is cancelled or Close is called. Aggregation
// only runs when a MetricQuerier was configured via WithQuerier.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCollectorClosed
	}
	if c.started {
		return nil
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.flushLoop(ctx)

	if c.querier != nil {
		c.wg.Add(1)
		go c.aggregationLoop(ctx)
	}
	return nil
}

// Close stops the background loops, drains remaining buffers, and rejects
// further recording.
func (c *Collector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	ctx, done := context.WithTimeout(context.Background(), c.cfg.FlushTimeout)
	defer done()
	if err := c.Flush(ctx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	return nil
}

func (c *Collector) flushLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	c.logger.Debug("flush loop started",
		slog.Duration("interval", c.cfg.FlushInterval))

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("flush loop stopped")
			return
		case <-ticker.C:
			c.runIteration("flush", func() error {
				fctx, cancel := context.WithTimeout(ctx, c.cfg.FlushTimeout)
				defer cancel()
				return c.Flush(fctx)
			})
		}
	}
}

func (c *Collector) aggregationLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.AggregationInterval)
	defer ticker.Stop()

	c.logger.Debug("aggregation loop started",
		slog.Duration("interval", c.cfg.AggregationInterval))

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("aggregation loop stopped")
			return
		case <-ticker.C:
			c.runIteration("aggregation", func() error {
				return c.aggregate(ctx)
			})
		}
	}
}

// runIteration executes one loop iteration, containing failures so a bad
// iteration never kills the loop.
func (c *Collector) runIteration(loop string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("background iteration panicked",
				slog.String("loop", loop),
				slog.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		c.logger.Warn("background iteration failed",
			slog.String("loop", loop),
			slog.String("error", err.Error()))
	}
}

// aggregate recomputes rolling-window means for every base metric seen so
// far and re-records them under derived names.
func (c *Collector) aggregate(ctx context.Context) error {
	names := c.metricNames()
	now := time.Now()

	var errs []error
	for _, name := range names {
		for _, w := range c.cfg.AggregationWindows {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				return errors.Join(errs...)
			}

			qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
			value, err := c.querier.Query(qctx, name, "mean", now.Add(-w.Duration), now)
			cancel()
			if err != nil {
				errs = append(errs, fmt.Errorf("aggregate %s over %s: %w", name, w.Name, err))
				continue
			}

			c.RecordMetric(name+rollupInfix+w.Name, value, map[string]string{
				"window": w.Name,
				"source": name,
			})
		}
	}
	return errors.Join(errs...)
}
