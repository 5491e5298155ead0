// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPulse/services/pulse/slo"
)

func TestStatus_Boundaries(t *testing.T) {
	q := &fakeQuerier{}
	alerts := &fakeAlertSink{}
	clock := newTestClock()
	m, err := NewMonitor(Config{MeetingPct: 99.9, AtRiskPct: 70}, q, nil,
		WithAlertSink(alerts), WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, m.RegisterSLA(context.Background(), testSLA("checkout")))

	assert.Equal(t, StatusUnknown, m.Status("checkout"), "no cached evaluation yet")
	assert.Equal(t, StatusUnknown, m.Status("nope"), "unregistered SLA")

	// Four cycles, one breach: 75% compliance sits in the at-risk band.
	for i := 0; i < 4; i++ {
		if i == 1 {
			q.set("checkout_success_rate", 50.0)
		} else {
			q.set("checkout_success_rate", 99.5)
		}
		_, err := m.EvaluateSLA(context.Background(), "checkout")
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}
	snap, ok := m.ComplianceSnapshot("checkout")
	require.True(t, ok)
	assert.InDelta(t, 75.0, snap.CompliancePct, 1e-9)
	assert.Equal(t, StatusAtRisk, m.Status("checkout"))
}

func TestStatus_MeetingAtFullCompliance(t *testing.T) {
	q := &fakeQuerier{}
	q.set("checkout_success_rate", 99.5)
	m, _, _ := newTestMonitor(t, q)
	require.NoError(t, m.RegisterSLA(context.Background(), testSLA("checkout")))

	_, err := m.EvaluateSLA(context.Background(), "checkout")
	require.NoError(t, err)
	assert.Equal(t, StatusMeeting, m.Status("checkout"))
}

func TestReport_UnknownSLA(t *testing.T) {
	m, _, clock := newTestMonitor(t, &fakeQuerier{})
	_, err := m.Report("missing", clock.Now().Add(-time.Hour), clock.Now())
	assert.ErrorIs(t, err, ErrSLANotFound)
}

func TestReport_RangeFilterAndAverages(t *testing.T) {
	q := &fakeQuerier{}
	m, _, clock := newTestMonitor(t, q)
	require.NoError(t, m.RegisterSLA(context.Background(), testSLA("checkout")))

	// One old sample, then three in the reporting range: two healthy
	// measurements and one backend failure.
	q.set("checkout_success_rate", 99.2)
	_, err := m.EvaluateSLA(context.Background(), "checkout")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	rangeStart := clock.Now()

	q.set("checkout_success_rate", 99.4)
	_, err = m.EvaluateSLA(context.Background(), "checkout")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	q.fail("checkout_success_rate", errors.New("timeout"))
	_, err = m.EvaluateSLA(context.Background(), "checkout")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	q.set("checkout_success_rate", 99.8)
	_, err = m.EvaluateSLA(context.Background(), "checkout")
	require.NoError(t, err)

	rep, err := m.Report("checkout", rangeStart, clock.Now())
	require.NoError(t, err)

	assert.Equal(t, "checkout", rep.SLA)
	assert.Equal(t, "acme", rep.Customer)
	assert.Equal(t, clock.Now(), rep.GeneratedAt)
	require.Len(t, rep.SLOs, 1)

	got := rep.SLOs[0]
	assert.Equal(t, 3, got.Samples, "the pre-range sample is excluded")
	assert.InDelta(t, 100.0*2/3, got.CompliancePct, 1e-9)
	// Synthetic failure samples carry no measured value and are excluded
	// from the average.
	assert.InDelta(t, (99.4+99.8)/2, got.AverageValue, 1e-9)
}

func TestReport_StrictestPenalty(t *testing.T) {
	q := &fakeQuerier{}
	m, _, clock := newTestMonitor(t, q)
	require.NoError(t, m.RegisterSLA(context.Background(), testSLA("checkout")))

	start := clock.Now()
	for i := 0; i < 10; i++ {
		if i < 9 {
			q.set("checkout_success_rate", 99.5)
		} else {
			q.set("checkout_success_rate", 80.0)
		}
		_, err := m.EvaluateSLA(context.Background(), "checkout")
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	rep, err := m.Report("checkout", start, clock.Now())
	require.NoError(t, err)
	assert.InDelta(t, 90.0, rep.CompliancePct, 1e-9)

	// 90% breaches both the 99% and 95% floors; the strictest (lowest)
	// breached floor carries the penalty.
	require.NotNil(t, rep.BreachedPenalty)
	assert.InDelta(t, 95.0, rep.BreachedPenalty.CompliancePct, 1e-9)
	assert.Equal(t, "10% service credit", rep.BreachedPenalty.Penalty)
}

func TestReport_NoSamplesIsFullyCompliant(t *testing.T) {
	m, _, clock := newTestMonitor(t, &fakeQuerier{})
	require.NoError(t, m.RegisterSLA(context.Background(), testSLA("checkout")))

	rep, err := m.Report("checkout", clock.Now().Add(-time.Hour), clock.Now())
	require.NoError(t, err)
	assert.InDelta(t, 100.0, rep.CompliancePct, 1e-9)
	assert.Nil(t, rep.BreachedPenalty)
}

func TestStrictestBreached(t *testing.T) {
	thresholds := []slo.PenaltyThreshold{
		{CompliancePct: 99, Penalty: "5%"},
		{CompliancePct: 95, Penalty: "10%"},
		{CompliancePct: 90, Penalty: "25%"},
	}

	assert.Nil(t, strictestBreached(thresholds, 99.5))
	assert.Equal(t, 99.0, strictestBreached(thresholds, 98.0).CompliancePct)
	assert.Equal(t, 95.0, strictestBreached(thresholds, 92.0).CompliancePct)
	assert.Equal(t, 90.0, strictestBreached(thresholds, 50.0).CompliancePct)
	assert.Nil(t, strictestBreached(nil, 0))
}
