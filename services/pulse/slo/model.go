// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package slo defines the immutable SLI/SLO/SLA data model.
//
// An SLI names a measurable signal, an SLO sets a target and comparison
// over an SLI, and an SLA bundles SLOs for a customer with penalty terms.
// Definitions are validated at registration and never mutated afterwards.
package slo

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// SLIType classifies the measured signal.
type SLIType string

const (
	SLIAvailability SLIType = "availability"
	SLILatency      SLIType = "latency"
	SLIErrorRate    SLIType = "error_rate"
	SLIThroughput   SLIType = "throughput"
	SLICustom       SLIType = "custom"
)

// Aggregation reduces a metric range query to a scalar.
type Aggregation string

const (
	AggMean       Aggregation = "mean"
	AggSum        Aggregation = "sum"
	AggMax        Aggregation = "max"
	AggMin        Aggregation = "min"
	AggPercentile Aggregation = "percentile"
)

// SLI is a Service Level Indicator: a measurable signal.
type SLI struct {
	Name string `validate:"required"`

	Type SLIType `validate:"required,oneof=availability latency error_rate throughput custom"`

	// MetricQuery is the opaque query descriptor handed to the metric
	// query backend.
	MetricQuery string `validate:"required"`

	Unit string

	Aggregation Aggregation `validate:"required,oneof=mean sum max min percentile"`

	// LabelFilters restrict the measured series.
	LabelFilters map[string]string
}

// SLO is a Service Level Objective: a target and comparison over an SLI.
type SLO struct {
	Name string `validate:"required"`

	SLI SLI `validate:"required"`

	// Target is compared against the measured value with Operator.
	Target float64

	Operator Operator `validate:"required,oneof=<= >= < > =="`

	// MeasurementWindow is the range queried for each measurement.
	MeasurementWindow time.Duration `validate:"gt=0"`

	// RollingWindow is the error-budget horizon over historical
	// measurements.
	RollingWindow time.Duration `validate:"gt=0"`
}

// PenaltyThreshold maps a compliance percentage floor to penalty terms.
type PenaltyThreshold struct {
	// CompliancePct is the threshold: the penalty applies when measured
	// compliance falls below this percentage.
	CompliancePct float64 `validate:"gte=0,lte=100"`

	// Penalty is the contractual penalty text.
	Penalty string `validate:"required"`
}

// SLA is a Service Level Agreement: an ordered bundle of SLOs for a
// customer with penalty terms and an effective window.
type SLA struct {
	Name     string `validate:"required"`
	Customer string `validate:"required"`

	// SLOs are evaluated in order on every compliance cycle.
	SLOs []SLO `validate:"required,min=1,dive"`

	PenaltyThresholds []PenaltyThreshold `validate:"dive"`

	// ReportingPeriod bounds the samples considered for SLA-level
	// compliance percentage.
	ReportingPeriod time.Duration `validate:"gt=0"`

	EffectiveFrom time.Time

	// ExpiresAt is the end of the agreement. Zero means no expiry.
	ExpiresAt time.Time
}

// Expired reports whether the SLA is past its expiry date at now.
func (s *SLA) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// validate is the shared validator instance for definition structs.
var validate = validator.New()

// Validate checks structural and semantic validity of the SLA.
//
// Violations are configuration errors and surface immediately at
// registration; they are never swallowed.
func (s *SLA) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	seen := make(map[string]struct{}, len(s.SLOs))
	for _, o := range s.SLOs {
		if _, dup := seen[o.Name]; dup {
			return fmt.Errorf("%w: slo %q in sla %q", ErrDuplicateSLO, o.Name, s.Name)
		}
		seen[o.Name] = struct{}{}
	}

	if !s.ExpiresAt.IsZero() && !s.EffectiveFrom.IsZero() && s.ExpiresAt.Before(s.EffectiveFrom) {
		return fmt.Errorf("%w: sla %q expires before it becomes effective", ErrInvalidDefinition, s.Name)
	}
	return nil
}
