// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the engine's self-instrumentation instruments.
//
// All metrics use the "pulse_" prefix. The collector and SLA monitor accept
// a *Metrics and treat nil as "instrumentation disabled".
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// MetricsRecorded counts RecordMetric calls.
	MetricsRecorded metric.Int64Counter

	// EventsRecorded counts buffered telemetry events.
	EventsRecorded metric.Int64Counter

	// AnomaliesDetected counts metric observations flagged as anomalous.
	AnomaliesDetected metric.Int64Counter

	// SpansCompleted counts closed trace spans by status.
	SpansCompleted metric.Int64Counter

	// FlushesTotal counts buffer flushes by outcome.
	FlushesTotal metric.Int64Counter

	// FlushDuration records flush duration in seconds.
	FlushDuration metric.Float64Histogram

	// SLAEvaluations counts SLO compliance evaluations by outcome.
	SLAEvaluations metric.Int64Counter

	// MeasurementErrors counts failed metric-query measurements.
	MeasurementErrors metric.Int64Counter

	// AlertsFired counts alerts delivered to the alert sink by type.
	AlertsFired metric.Int64Counter
}

// NewMetrics registers all engine instruments with the provided meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.MetricsRecorded, err = meter.Int64Counter(
		"pulse_metrics_recorded_total",
		metric.WithDescription("Total metric points recorded"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create metrics_recorded_total: %w", err)
	}

	m.EventsRecorded, err = meter.Int64Counter(
		"pulse_events_recorded_total",
		metric.WithDescription("Total telemetry events recorded"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events_recorded_total: %w", err)
	}

	m.AnomaliesDetected, err = meter.Int64Counter(
		"pulse_anomalies_detected_total",
		metric.WithDescription("Total metric anomalies detected"),
		metric.WithUnit("{anomaly}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create anomalies_detected_total: %w", err)
	}

	m.SpansCompleted, err = meter.Int64Counter(
		"pulse_spans_completed_total",
		metric.WithDescription("Total trace spans completed"),
		metric.WithUnit("{span}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create spans_completed_total: %w", err)
	}

	m.FlushesTotal, err = meter.Int64Counter(
		"pulse_flushes_total",
		metric.WithDescription("Total telemetry buffer flushes"),
		metric.WithUnit("{flush}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create flushes_total: %w", err)
	}

	m.FlushDuration, err = meter.Float64Histogram(
		"pulse_flush_duration_seconds",
		metric.WithDescription("Telemetry flush duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create flush_duration: %w", err)
	}

	m.SLAEvaluations, err = meter.Int64Counter(
		"pulse_sla_evaluations_total",
		metric.WithDescription("Total SLO compliance evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create sla_evaluations_total: %w", err)
	}

	m.MeasurementErrors, err = meter.Int64Counter(
		"pulse_measurement_errors_total",
		metric.WithDescription("Total failed metric-query measurements"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create measurement_errors_total: %w", err)
	}

	m.AlertsFired, err = meter.Int64Counter(
		"pulse_alerts_fired_total",
		metric.WithDescription("Total alerts delivered"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create alerts_fired_total: %w", err)
	}

	return m, nil
}
