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
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// spanContextKey carries the active span through a context.
type spanContextKey struct{}

// SpanFromContext returns the active span, or nil outside a span scope.
func SpanFromContext(ctx context.Context) *TraceSpan {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(spanContextKey{}).(*TraceSpan)
	return span
}

// contextWithSpan marks span as active in the returned context. The parent
// remains resolvable through the parent context, so nesting restores
// naturally when the inner scope exits.
func contextWithSpan(ctx context.Context, span *TraceSpan) context.Context {
	return context.WithValue(ctx, spanContextKey{}, span)
}

// TraceOperation runs fn inside a new trace span.
//
// Description:
//
//	Opens a span with a fresh span id. The trace id is inherited from an
//	active parent span in ctx, or newly minted for a root span. Spans nest:
//	fn receives a context carrying the new span, and the parent becomes
//	active again when TraceOperation returns.
//
//	On normal return the span closes with status ok. On error or panic it
//	closes with status error and the failure recorded on the span; a panic
//	is re-raised unchanged after cleanup. Either way an operation_duration
//	metric (milliseconds, label operation=name) is recorded exactly once.
//
// Thread Safety: Safe for concurrent use.
func (c *Collector) TraceOperation(ctx context.Context, name string, attrs *Attributes, fn func(ctx context.Context) error) (err error) {
	span := c.startSpan(ctx, name, attrs)

	defer func() {
		if r := recover(); r != nil {
			c.finishSpan(span, fmt.Errorf("panic: %v", r))
			panic(r)
		}
		c.finishSpan(span, err)
	}()

	return fn(contextWithSpan(ctx, span))
}

// startSpan opens a span, inheriting trace identity from the active parent.
func (c *Collector) startSpan(ctx context.Context, name string, attrs *Attributes) *TraceSpan {
	traceID := ""
	parentID := ""
	if parent := SpanFromContext(ctx); parent != nil {
		traceID = parent.TraceID
		parentID = parent.SpanID
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}

	return &TraceSpan{
		SpanID:       uuid.NewString(),
		TraceID:      traceID,
		ParentSpanID: parentID,
		Name:         name,
		StartTime:    time.Now(),
		Attributes:   attrs.Clone(),
	}
}

// finishSpan closes the span, records its duration metric, and buffers a
// trace event for the exporter.
func (c *Collector) finishSpan(span *TraceSpan, opErr error) {
	now := time.Now()
	elapsedMs := float64(now.Sub(span.StartTime)) / float64(time.Millisecond)

	status := SpanStatusOK
	if opErr != nil {
		status = SpanStatusError
	}

	c.mu.Lock()
	span.EndTime = &now
	span.Status = status
	span.Err = opErr

	attrs := NewAttributes(
		Attr{Key: "duration_ms", Value: FloatValue(elapsedMs)},
		Attr{Key: "status", Value: StringValue(string(status))},
	)
	if span.ParentSpanID != "" {
		attrs.Set("parent_span_id", StringValue(span.ParentSpanID))
	}
	if opErr != nil {
		attrs.Set("error", StringValue(opErr.Error()))
	}
	if !c.closed {
		c.appendEventLocked(EventKindTrace, span.Name, attrs, SeverityInfo, span)
	}
	c.mu.Unlock()

	c.recordMetric(now, "operation_duration", elapsedMs,
		map[string]string{"operation": span.Name}, span.TraceID)

	if c.instr != nil {
		c.instr.SpansCompleted.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("status", string(status))))
	}
}
