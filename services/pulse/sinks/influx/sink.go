// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package influx

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/AleutianPulse/services/pulse/collector"
)

const eventMeasurement = "telemetry_events"

// WriteTimeSeries persists flushed metric series. One Influx point per
// sample, measurement = metric name, labels become tags.
func (c *Client) WriteTimeSeries(ctx context.Context, series []collector.TimeSeries) error {
	points := seriesPoints(series)
	if len(points) == 0 {
		return nil
	}
	if err := c.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d metric points: %w", len(points), err)
	}
	return nil
}

// WriteEvents persists flushed telemetry events under a single
// measurement, discriminated by the kind tag.
func (c *Client) WriteEvents(ctx context.Context, events []collector.TelemetryEvent) error {
	if len(events) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(events))
	for i := range events {
		points = append(points, eventPoint(&events[i]))
	}
	if err := c.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d events: %w", len(points), err)
	}
	return nil
}

// seriesPoints converts flushed series to Influx points.
func seriesPoints(series []collector.TimeSeries) []*write.Point {
	var points []*write.Point
	for _, s := range series {
		for _, p := range s.Points {
			points = append(points, influxdb2.NewPoint(
				s.Metric,
				s.Labels,
				map[string]interface{}{"value": p.Value},
				p.Timestamp,
			))
		}
	}
	return points
}

// eventPoint converts one telemetry event to an Influx point. Identity and
// classification go to tags; attributes flatten into fields so they stay
// queryable without exploding series cardinality.
func eventPoint(ev *collector.TelemetryEvent) *write.Point {
	tags := map[string]string{
		"kind":     string(ev.Kind),
		"name":     ev.Name,
		"severity": string(ev.Severity),
	}

	fields := map[string]interface{}{
		"event_id": ev.ID,
	}
	if ev.TraceID != "" {
		fields["trace_id"] = ev.TraceID
	}
	if ev.SpanID != "" {
		fields["span_id"] = ev.SpanID
	}
	ev.Attributes.ForEach(func(key string, v collector.AttrValue) {
		fields["attr_"+key] = fieldValue(v)
	})

	return influxdb2.NewPoint(eventMeasurement, tags, fields, ev.Timestamp)
}

// fieldValue maps an attribute value onto an Influx field type. Lists and
// nested maps are stored rendered; Influx fields are scalar.
func fieldValue(v collector.AttrValue) interface{} {
	switch v.Kind() {
	case collector.ValueFloat:
		f, _ := v.AsFloat()
		return f
	case collector.ValueInt:
		i, _ := v.AsInt()
		return i
	case collector.ValueBool:
		b, _ := v.AsBool()
		return b
	default:
		return v.String()
	}
}
