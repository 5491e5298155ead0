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
	"time"

	"github.com/AleutianAI/AleutianPulse/services/pulse/slo"
)

// Status classifies an SLA's cached compliance state.
type Status string

const (
	StatusMeeting  Status = "MEETING"
	StatusAtRisk   Status = "AT_RISK"
	StatusBreached Status = "BREACHED"
	StatusUnknown  Status = "UNKNOWN"
)

// Status returns the SLA's current status from the compliance cache.
//
// UNKNOWN means no cached data: the SLA is unregistered, expired before
// its first evaluation, or not yet evaluated.
func (m *Monitor) Status(name string) Status {
	m.mu.RLock()
	snap, ok := m.cache[name]
	m.mu.RUnlock()
	if !ok {
		return StatusUnknown
	}

	switch {
	case snap.CompliancePct >= m.cfg.MeetingPct:
		return StatusMeeting
	case snap.CompliancePct >= m.cfg.AtRiskPct:
		return StatusAtRisk
	default:
		return StatusBreached
	}
}

// ComplianceSnapshot returns the cached evaluation result for an SLA.
func (m *Monitor) ComplianceSnapshot(name string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.cache[name]
	return snap, ok
}

// SLOReport summarizes one SLO over a reporting range.
type SLOReport struct {
	SLO           string
	CompliancePct float64

	// AverageValue is the mean measured value over successful
	// measurements; synthetic failure samples are excluded.
	AverageValue float64

	Samples int
}

// Report is a compliance report for an SLA over a time range.
type Report struct {
	SLA         string
	Customer    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	GeneratedAt time.Time

	SLOs []SLOReport

	// CompliancePct is overall compliance across all SLO samples in range.
	CompliancePct float64

	// BreachedPenalty is the strictest penalty threshold breached by the
	// overall compliance, or nil when none applies.
	BreachedPenalty *slo.PenaltyThreshold
}

// Report derives a compliance report from measurement history.
//
// Measurements are range-filtered by timestamp: ring-buffer eviction is
// capacity-based and time-unaware, so the filter happens at read time.
func (m *Monitor) Report(name string, start, end time.Time) (Report, error) {
	s, err := m.SLA(name)
	if err != nil {
		return Report{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var total, compliant int
	slos := make([]SLOReport, 0, len(s.SLOs))
	for _, o := range s.SLOs {
		var count, ok int
		var sum float64
		var measured int
		if buf, exists := m.buffers[bufferKey(s.Name, o.Name)]; exists {
			buf.ForEach(func(x Measurement) bool {
				if x.Timestamp.Before(start) || x.Timestamp.After(end) {
					return true
				}
				count++
				if x.Compliant {
					ok++
				}
				if !x.MeasurementFailed {
					sum += x.MeasuredValue
					measured++
				}
				return true
			})
		}

		pct := 100.0
		if count > 0 {
			pct = float64(ok) / float64(count) * 100
		}
		avg := 0.0
		if measured > 0 {
			avg = sum / float64(measured)
		}
		slos = append(slos, SLOReport{
			SLO:           o.Name,
			CompliancePct: pct,
			AverageValue:  avg,
			Samples:       count,
		})
		total += count
		compliant += ok
	}

	overall := 100.0
	if total > 0 {
		overall = float64(compliant) / float64(total) * 100
	}

	return Report{
		SLA:             s.Name,
		Customer:        s.Customer,
		PeriodStart:     start,
		PeriodEnd:       end,
		GeneratedAt:     m.clock(),
		SLOs:            slos,
		CompliancePct:   overall,
		BreachedPenalty: strictestBreached(s.PenaltyThresholds, overall),
	}, nil
}

// strictestBreached returns the most severe breached penalty: the lowest
// compliance floor the measured percentage fell under.
func strictestBreached(thresholds []slo.PenaltyThreshold, pct float64) *slo.PenaltyThreshold {
	var breached *slo.PenaltyThreshold
	for i := range thresholds {
		t := thresholds[i]
		if pct >= t.CompliancePct {
			continue
		}
		if breached == nil || t.CompliancePct < breached.CompliancePct {
			breached = &thresholds[i]
		}
	}
	return breached
}
