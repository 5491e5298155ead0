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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPulse/services/pulse/anomaly"
)

// fakeMetricsSink records written series and can fail the first N writes.
type fakeMetricsSink struct {
	mu       sync.Mutex
	series   []TimeSeries
	failNext int
}

func (s *fakeMetricsSink) WriteTimeSeries(_ context.Context, series []TimeSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return errors.New("sink unavailable")
	}
	s.series = append(s.series, series...)
	return nil
}

func (s *fakeMetricsSink) points(metric string) []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Point
	for _, ts := range s.series {
		if ts.Metric == metric {
			out = append(out, ts.Points...)
		}
	}
	return out
}

// fakeEventSink records written events.
type fakeEventSink struct {
	mu       sync.Mutex
	events   []TelemetryEvent
	failNext int
}

func (s *fakeEventSink) WriteEvents(_ context.Context, events []TelemetryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *fakeEventSink) named(name string) []TelemetryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TelemetryEvent
	for _, ev := range s.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func newTestCollector(t *testing.T, opts ...Option) (*Collector, *fakeMetricsSink, *fakeEventSink) {
	t.Helper()
	ms := &fakeMetricsSink{}
	es := &fakeEventSink{}
	c, err := NewCollector(Config{}, ms, es, nil, opts...)
	require.NoError(t, err)
	return c, ms, es
}

func TestNewCollector_RequiresSinks(t *testing.T) {
	_, err := NewCollector(Config{}, nil, &fakeEventSink{}, nil)
	assert.ErrorIs(t, err, ErrNilMetricsSink)

	_, err = NewCollector(Config{}, &fakeMetricsSink{}, nil, nil)
	assert.ErrorIs(t, err, ErrNilEventSink)
}

func TestRecordMetric_AnomalyProducesOneEvent(t *testing.T) {
	c, _, es := newTestCollector(t)

	det, err := anomaly.NewDetector(anomaly.Config{WindowSize: 100, StdThreshold: 3})
	require.NoError(t, err)
	require.NoError(t, c.RegisterAnomalyDetector("latency_ms", det))

	// Warm up with alternating values so std is non-zero.
	for i := 0; i < 5; i++ {
		c.RecordMetric("latency_ms", 99, nil)
		c.RecordMetric("latency_ms", 101, nil)
	}
	c.RecordMetric("latency_ms", 5000, nil)

	require.NoError(t, c.Flush(context.Background()))

	anomalies := es.named("metric_anomaly")
	require.Len(t, anomalies, 1)
	ev := anomalies[0]
	assert.Equal(t, EventKindMetric, ev.Kind)
	assert.Equal(t, SeverityWarning, ev.Severity)

	name, ok := ev.Attributes.Get("metric_name")
	require.True(t, ok)
	got, _ := name.AsString()
	assert.Equal(t, "latency_ms", got)

	rng, ok := ev.Attributes.Get("expected_range")
	require.True(t, ok)
	bounds, _ := rng.AsList()
	require.Len(t, bounds, 2)
	lo, _ := bounds[0].AsFloat()
	hi, _ := bounds[1].AsFloat()
	assert.LessOrEqual(t, lo, hi)
}

func TestRecordMetric_DuplicateDetectorRejected(t *testing.T) {
	c, _, _ := newTestCollector(t)
	det, err := anomaly.NewDetector(anomaly.Config{})
	require.NoError(t, err)

	require.NoError(t, c.RegisterAnomalyDetector("m", det))
	assert.ErrorIs(t, c.RegisterAnomalyDetector("m", det), ErrDetectorRegistered)
}

func TestRecordEvent_AttachesToActiveSpan(t *testing.T) {
	c, _, es := newTestCollector(t)

	err := c.TraceOperation(context.Background(), "handle_request", nil, func(ctx context.Context) error {
		c.RecordEvent(ctx, "cache_miss", NewAttributes(
			Attr{Key: "key", Value: StringValue("user:42")},
		), "")
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, c.Flush(context.Background()))

	evs := es.named("cache_miss")
	require.Len(t, evs, 1)
	assert.Equal(t, SeverityInfo, evs[0].Severity, "empty severity defaults to info")
	assert.NotEmpty(t, evs[0].TraceID)
	assert.NotEmpty(t, evs[0].SpanID)

	spans := es.named("handle_request")
	require.Len(t, spans, 1)
	assert.Equal(t, spans[0].TraceID, evs[0].TraceID)
}

func TestRecordEvent_OutsideSpanHasNoTraceIdentity(t *testing.T) {
	c, _, es := newTestCollector(t)

	c.RecordEvent(context.Background(), "startup", nil, SeverityInfo)
	require.NoError(t, c.Flush(context.Background()))

	evs := es.named("startup")
	require.Len(t, evs, 1)
	assert.Empty(t, evs[0].TraceID)
	assert.Empty(t, evs[0].SpanID)
}

func TestTraceOperation_RecordsDurationOnSuccess(t *testing.T) {
	c, ms, _ := newTestCollector(t)

	err := c.TraceOperation(context.Background(), "op", nil, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, c.Flush(context.Background()))

	pts := ms.points("operation_duration")
	require.Len(t, pts, 1)
	assert.GreaterOrEqual(t, pts[0].Value, 0.0)
}

func TestTraceOperation_ErrorPropagatesUnchanged(t *testing.T) {
	c, ms, es := newTestCollector(t)

	sentinel := errors.New("boom")
	err := c.TraceOperation(context.Background(), "op", nil, func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	require.NoError(t, c.Flush(context.Background()))
	require.Len(t, ms.points("operation_duration"), 1,
		"duration is recorded exactly once on failure")

	spans := es.named("op")
	require.Len(t, spans, 1)
	status, _ := spans[0].Attributes.Get("status")
	got, _ := status.AsString()
	assert.Equal(t, "error", got)
}

func TestTraceOperation_PanicRepropagatesUnchanged(t *testing.T) {
	c, ms, _ := newTestCollector(t)

	type boom struct{ msg string }
	payload := boom{msg: "unrecoverable"}

	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "panic must propagate")
			assert.Equal(t, payload, r, "panic value must be unchanged")
		}()
		_ = c.TraceOperation(context.Background(), "op", nil, func(ctx context.Context) error {
			panic(payload)
		})
		t.Fatal("unreachable: TraceOperation must re-panic")
	}()

	require.NoError(t, c.Flush(context.Background()))
	assert.Len(t, ms.points("operation_duration"), 1,
		"duration is recorded exactly once even on panic")
}

func TestTraceOperation_NestingInheritsTraceID(t *testing.T) {
	c, _, es := newTestCollector(t)

	err := c.TraceOperation(context.Background(), "outer", nil, func(ctx context.Context) error {
		innerErr := c.TraceOperation(ctx, "inner", nil, func(inner context.Context) error {
			assert.Equal(t, "inner", SpanFromContext(inner).Name)
			return nil
		})
		// Parent is active again once the child scope exits.
		assert.Equal(t, "outer", SpanFromContext(ctx).Name)
		return innerErr
	})
	require.NoError(t, err)
	require.NoError(t, c.Flush(context.Background()))

	outer := es.named("outer")
	inner := es.named("inner")
	require.Len(t, outer, 1)
	require.Len(t, inner, 1)

	assert.Equal(t, outer[0].TraceID, inner[0].TraceID, "trace id is inherited")
	parent, ok := inner[0].Attributes.Get("parent_span_id")
	require.True(t, ok)
	parentID, _ := parent.AsString()
	assert.Equal(t, outer[0].SpanID, parentID)
}

func TestCheckPerformanceRegression(t *testing.T) {
	c, _, _ := newTestCollector(t)

	c.SetPerformanceBaseline("api_latency", []PercentileBaseline{
		{Percentile: "p50", Value: 100},
		{Percentile: "p99", Value: 500},
	})

	t.Run("no baseline", func(t *testing.T) {
		assert.Nil(t, c.CheckPerformanceRegression("unknown_metric", 1000, 10))
	})

	t.Run("within threshold", func(t *testing.T) {
		assert.Nil(t, c.CheckPerformanceRegression("api_latency", 109, 10))
	})

	t.Run("breach reports first percentile in order", func(t *testing.T) {
		r := c.CheckPerformanceRegression("api_latency", 111, 10)
		require.NotNil(t, r)
		assert.Equal(t, "p50", r.Percentile)
		assert.Equal(t, 100.0, r.Baseline)
		assert.Equal(t, 111.0, r.Current)
		assert.Equal(t, 11.0, r.RegressionPercent)
	})

	t.Run("default threshold", func(t *testing.T) {
		assert.Nil(t, c.CheckPerformanceRegression("api_latency", 109, 0))
		assert.NotNil(t, c.CheckPerformanceRegression("api_latency", 111, 0))
	})
}

func TestRecordMetric_AfterCloseIsNoop(t *testing.T) {
	c, ms, _ := newTestCollector(t)
	require.NoError(t, c.Close())

	c.RecordMetric("m", 1, nil)
	require.NoError(t, c.Flush(context.Background()))
	assert.Empty(t, ms.points("m"))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c, ms, _ := newTestCollector(t)

	var wg sync.WaitGroup
	const producers = 8
	const perProducer = 50
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				c.RecordMetric("hits", 1, nil)
			}
		}()
	}
	wg.Wait()

	require.NoError(t, c.Flush(context.Background()))
	assert.Len(t, ms.points("hits"), producers*perProducer)
}

func TestRecordMetricAt_PreservesTimestamp(t *testing.T) {
	c, ms, _ := newTestCollector(t)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.RecordMetricAt(ts, "m", 3.5, nil)
	require.NoError(t, c.Flush(context.Background()))

	pts := ms.points("m")
	require.Len(t, pts, 1)
	assert.True(t, pts[0].Timestamp.Equal(ts))
	assert.Equal(t, 3.5, pts[0].Value)
}
