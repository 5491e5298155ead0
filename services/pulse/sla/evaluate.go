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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianPulse/services/pulse/collector"
	"github.com/AleutianAI/AleutianPulse/services/pulse/slo"
)

// EvaluateSLA runs one compliance pass over every SLO of the named SLA:
// measure, compare, recompute error budget, append the measurement, and
// refresh the compliance cache. The loop calls this once per cycle; tests
// and callers may drive it directly.
//
// Measurement failures are isolated per SLO (synthetic non-compliant
// sample, 100% budget consumed); only configuration errors abort the pass.
func (m *Monitor) EvaluateSLA(ctx context.Context, name string) (Snapshot, error) {
	s, err := m.SLA(name)
	if err != nil {
		return Snapshot{}, err
	}

	now := m.clock()
	if s.Expired(now) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSLAExpired, name)
	}

	overall := true
	details := make([]SLODetail, 0, len(s.SLOs))
	for _, o := range s.SLOs {
		detail, err := m.evaluateSLO(ctx, s, o, now)
		if err != nil {
			// Configuration error: fail loud, do not cache a partial pass.
			return Snapshot{}, err
		}
		if !detail.Compliant {
			overall = false
		}
		details = append(details, detail)
	}

	pct := m.compliancePercentage(s, now)
	snap := Snapshot{
		Timestamp:        now,
		SLA:              s.Name,
		OverallCompliant: overall,
		CompliancePct:    pct,
		SLOs:             details,
	}

	m.mu.Lock()
	m.cache[s.Name] = snap
	m.mu.Unlock()

	if pct < m.cfg.ComplianceWarningPct {
		m.fireAlert(ctx, AlertComplianceWarning, collector.SeverityWarning, map[string]any{
			"sla":                   s.Name,
			"compliance_percentage": pct,
			"threshold":             m.cfg.ComplianceWarningPct,
		})
	}

	if m.instr != nil {
		outcome := "compliant"
		if !overall {
			outcome = "non_compliant"
		}
		m.instr.SLAEvaluations.Add(context.Background(), int64(len(s.SLOs)),
			metric.WithAttributes(
				attribute.String("sla", s.Name),
				attribute.String("outcome", outcome)))
	}
	return snap, nil
}

// evaluateSLO measures one SLO and appends the resulting sample.
func (m *Monitor) evaluateSLO(ctx context.Context, s slo.SLA, o slo.SLO, now time.Time) (SLODetail, error) {
	qctx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	value, qerr := m.querier.Query(qctx, o.SLI.MetricQuery, string(o.SLI.Aggregation),
		now.Add(-o.MeasurementWindow), now)
	cancel()

	var meas Measurement
	if qerr != nil {
		// Measurement error: synthetic non-compliant sample so budget and
		// streak accounting see the failure; remaining SLOs still run.
		m.logger.Warn("slo measurement failed",
			slog.String("sla", s.Name),
			slog.String("slo", o.Name),
			slog.String("error", qerr.Error()))
		if m.instr != nil {
			m.instr.MeasurementErrors.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("slo", o.Name)))
		}
		meas = Measurement{
			Timestamp:           now,
			SLA:                 s.Name,
			SLO:                 o.Name,
			TargetValue:         o.Target,
			Compliant:           false,
			ErrorBudgetConsumed: 100,
			MeasurementFailed:   true,
		}
	} else {
		compliant, cerr := slo.Compare(value, o.Target, o.Operator)
		if cerr != nil {
			return SLODetail{}, cerr
		}

		// Budget is computed over historical samples inside the rolling
		// window; the sample being produced does not judge itself.
		cutoff := now.Add(-o.RollingWindow)
		m.mu.Lock()
		hist := m.bufferLocked(s.Name, o.Name).Filter(func(x Measurement) bool {
			return !x.Timestamp.Before(cutoff)
		})
		m.mu.Unlock()

		meas = Measurement{
			Timestamp:           now,
			SLA:                 s.Name,
			SLO:                 o.Name,
			MeasuredValue:       value,
			TargetValue:         o.Target,
			Compliant:           compliant,
			ErrorBudgetConsumed: errorBudgetConsumed(hist, o.Target),
		}
	}

	m.mu.Lock()
	buf := m.bufferLocked(s.Name, o.Name)
	buf.Push(meas)
	recent := buf.Last(m.cfg.ConsecutiveBreaches)
	m.mu.Unlock()

	if meas.ErrorBudgetConsumed >= m.cfg.BudgetCriticalPct {
		m.fireAlert(ctx, AlertErrorBudgetCritical, collector.SeverityCritical, map[string]any{
			"sla":                   s.Name,
			"slo":                   o.Name,
			"error_budget_consumed": meas.ErrorBudgetConsumed,
			"threshold":             m.cfg.BudgetCriticalPct,
		})
	}
	if len(recent) == m.cfg.ConsecutiveBreaches && allNonCompliant(recent) {
		m.fireAlert(ctx, AlertConsecutiveBreaches, collector.SeverityCritical, map[string]any{
			"sla":      s.Name,
			"slo":      o.Name,
			"breaches": m.cfg.ConsecutiveBreaches,
		})
	}

	return SLODetail{
		SLO:                 o.Name,
		MeasuredValue:       meas.MeasuredValue,
		TargetValue:         o.Target,
		Compliant:           meas.Compliant,
		ErrorBudgetConsumed: meas.ErrorBudgetConsumed,
		MeasurementFailed:   meas.MeasurementFailed,
	}, nil
}

// compliancePercentage is the share of compliant samples across all of
// the SLA's SLOs within its reporting period. No samples counts as fully
// compliant.
func (m *Monitor) compliancePercentage(s slo.SLA, now time.Time) float64 {
	cutoff := now.Add(-s.ReportingPeriod)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var total, compliant int
	for _, o := range s.SLOs {
		buf, ok := m.buffers[bufferKey(s.Name, o.Name)]
		if !ok {
			continue
		}
		buf.ForEach(func(x Measurement) bool {
			if !x.Timestamp.Before(cutoff) {
				total++
				if x.Compliant {
					compliant++
				}
			}
			return true
		})
	}
	if total == 0 {
		return 100
	}
	return float64(compliant) / float64(total) * 100
}

// errorBudgetConsumed computes the percentage of error budget used over a
// rolling window of historical measurements. Always within [0,100].
func errorBudgetConsumed(hist []Measurement, target float64) float64 {
	count := len(hist)
	actual := 0
	for _, x := range hist {
		if !x.Compliant {
			actual++
		}
	}

	allowed := float64(count) * (100 - target) / 100
	var consumed float64
	if allowed <= 0 {
		if actual > 0 {
			consumed = 100
		}
	} else {
		consumed = float64(actual) / allowed * 100
	}

	if consumed < 0 {
		return 0
	}
	if consumed > 100 {
		return 100
	}
	return consumed
}

func allNonCompliant(samples []Measurement) bool {
	for _, x := range samples {
		if x.Compliant {
			return false
		}
	}
	return true
}
