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
	"time"
)

// MetricsSink receives drained metric buffers, batched per series.
//
// Implementations must be safe for concurrent use. A returned error means
// the batch was not durably accepted; the collector retains the points and
// retries on the next flush (at-least-once, duplicates possible).
type MetricsSink interface {
	WriteTimeSeries(ctx context.Context, series []TimeSeries) error
}

// EventSink receives drained event buffers.
//
// Same delivery contract as MetricsSink.
type EventSink interface {
	WriteEvents(ctx context.Context, events []TelemetryEvent) error
}

// MetricQuerier answers scalar queries over historical metric data.
//
// descriptor is an opaque query descriptor (for the bundled InfluxDB
// implementation, a measurement name or Flux filter fragment); aggregation
// is one of mean, sum, max, min, percentile.
type MetricQuerier interface {
	Query(ctx context.Context, descriptor, aggregation string, start, end time.Time) (float64, error)
}
