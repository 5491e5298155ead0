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
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Sentinel errors for the query path.
var (
	// ErrInvalidDescriptor indicates a metric descriptor that failed the
	// injection-prevention pattern.
	ErrInvalidDescriptor = errors.New("invalid metric descriptor")

	// ErrUnsupportedAggregation indicates an aggregation with no Flux
	// mapping.
	ErrUnsupportedAggregation = errors.New("unsupported aggregation")

	// ErrNoData indicates the query matched no samples in range.
	ErrNoData = errors.New("no data in range")
)

// descriptorPattern matches safe metric descriptors: Prometheus-style
// metric names plus dots and hyphens. Descriptors are interpolated into
// Flux, so anything outside this set is rejected to prevent injection.
var descriptorPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.:\-]{0,127}$`)

// fluxAggregations maps aggregation names to Flux reducers.
var fluxAggregations = map[string]string{
	"mean":       "mean()",
	"sum":        "sum()",
	"max":        "max()",
	"min":        "min()",
	"percentile": `quantile(q: 0.99, method: "estimate_tdigest")`,
}

// ValidateDescriptor rejects metric descriptors that are unsafe to
// interpolate into a Flux query.
func ValidateDescriptor(descriptor string) error {
	if !descriptorPattern.MatchString(descriptor) {
		return fmt.Errorf("%w: %q", ErrInvalidDescriptor, descriptor)
	}
	return nil
}

// Query measures a metric over [start, end] reduced by the named
// aggregation, satisfying the collector's querier contract.
//
// An empty result is an error: the compliance engine must distinguish "no
// signal" from a measured zero.
func (c *Client) Query(ctx context.Context, descriptor, aggregation string, start, end time.Time) (float64, error) {
	query, err := buildFlux(c.cfg.Bucket, descriptor, aggregation, start, end)
	if err != nil {
		return 0, err
	}

	result, err := c.queryAPI.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("query %q: %w", descriptor, err)
	}

	if result == nil || !result.Next() {
		if result != nil && result.Err() != nil {
			return 0, fmt.Errorf("query %q: %w", descriptor, result.Err())
		}
		return 0, fmt.Errorf("%w: %s", ErrNoData, descriptor)
	}

	value, ok := result.Record().Value().(float64)
	if !ok {
		return 0, fmt.Errorf("query %q: non-numeric result %v", descriptor, result.Record().Value())
	}
	if err := result.Err(); err != nil {
		return 0, fmt.Errorf("query %q: %w", descriptor, err)
	}
	return value, nil
}

// buildFlux renders the range query. Descriptor and aggregation are both
// validated before interpolation.
func buildFlux(bucket, descriptor, aggregation string, start, end time.Time) (string, error) {
	if err := ValidateDescriptor(descriptor); err != nil {
		return "", err
	}
	reducer, ok := fluxAggregations[aggregation]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAggregation, aggregation)
	}

	return fmt.Sprintf(`
        from(bucket: "%s")
          |> range(start: %s, stop: %s)
          |> filter(fn: (r) => r._measurement == "%s")
          |> filter(fn: (r) => r._field == "value")
          |> %s
    `, bucket, start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano), descriptor, reducer), nil
}
