// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package slo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSLA() SLA {
	return SLA{
		Name:     "checkout-gold",
		Customer: "acme",
		SLOs: []SLO{
			{
				Name: "availability",
				SLI: SLI{
					Name:        "checkout-availability",
					Type:        SLIAvailability,
					MetricQuery: "checkout_success_rate",
					Unit:        "%",
					Aggregation: AggMean,
				},
				Target:            99.0,
				Operator:          OpGE,
				MeasurementWindow: 5 * time.Minute,
				RollingWindow:     24 * time.Hour,
			},
		},
		PenaltyThresholds: []PenaltyThreshold{
			{CompliancePct: 99, Penalty: "5% service credit"},
			{CompliancePct: 95, Penalty: "10% service credit"},
		},
		ReportingPeriod: 30 * 24 * time.Hour,
		EffectiveFrom:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSLA_ValidateAcceptsWellFormed(t *testing.T) {
	sla := validSLA()
	require.NoError(t, sla.Validate())
}

func TestSLA_ValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SLA)
	}{
		{"missing name", func(s *SLA) { s.Name = "" }},
		{"missing customer", func(s *SLA) { s.Customer = "" }},
		{"no slos", func(s *SLA) { s.SLOs = nil }},
		{"zero reporting period", func(s *SLA) { s.ReportingPeriod = 0 }},
		{"bad operator", func(s *SLA) { s.SLOs[0].Operator = "~=" }},
		{"bad sli type", func(s *SLA) { s.SLOs[0].SLI.Type = "vibes" }},
		{"empty metric query", func(s *SLA) { s.SLOs[0].SLI.MetricQuery = "" }},
		{"zero measurement window", func(s *SLA) { s.SLOs[0].MeasurementWindow = 0 }},
		{"zero rolling window", func(s *SLA) { s.SLOs[0].RollingWindow = 0 }},
		{"penalty without text", func(s *SLA) { s.PenaltyThresholds[0].Penalty = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sla := validSLA()
			tt.mutate(&sla)
			assert.ErrorIs(t, sla.Validate(), ErrInvalidDefinition)
		})
	}
}

func TestSLA_ValidateRejectsDuplicateSLONames(t *testing.T) {
	sla := validSLA()
	sla.SLOs = append(sla.SLOs, sla.SLOs[0])
	assert.ErrorIs(t, sla.Validate(), ErrDuplicateSLO)
}

func TestSLA_ValidateRejectsExpiryBeforeEffective(t *testing.T) {
	sla := validSLA()
	sla.ExpiresAt = sla.EffectiveFrom.Add(-time.Hour)
	assert.ErrorIs(t, sla.Validate(), ErrInvalidDefinition)
}

func TestSLA_Expired(t *testing.T) {
	sla := validSLA()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, sla.Expired(now), "zero expiry never expires")

	sla.ExpiresAt = now.Add(-time.Minute)
	assert.True(t, sla.Expired(now))

	sla.ExpiresAt = now.Add(time.Minute)
	assert.False(t, sla.Expired(now))
}
