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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianPulse/services/pulse/collector"
)

// Alert types fired by the compliance engine.
const (
	// AlertErrorBudgetCritical fires when consumed error budget reaches
	// the configured critical percentage.
	AlertErrorBudgetCritical = "error_budget_critical"

	// AlertConsecutiveBreaches fires when the last N measurements of an
	// SLO are all non-compliant.
	AlertConsecutiveBreaches = "consecutive_breaches"

	// AlertComplianceWarning fires when SLA-level compliance drops below
	// the configured warning percentage.
	AlertComplianceWarning = "compliance_warning"
)

// fireAlert delivers an alert through the alert sink and mirrors it as a
// telemetry event. Delivery is fire-and-forget: sink failures are logged
// and never abort an evaluation.
func (m *Monitor) fireAlert(ctx context.Context, alertType string, severity collector.Severity, details map[string]any) {
	if err := m.alerts.SendAlert(ctx, alertType, details); err != nil {
		m.logger.Warn("alert delivery failed",
			slog.String("alert_type", alertType),
			slog.String("error", err.Error()))
	}

	if m.coll != nil {
		attrs := collector.NewAttributes()
		for k, v := range details {
			attrs.Set(k, attrValueFor(v))
		}
		m.coll.RecordEvent(ctx, alertType, attrs, severity)
	}

	if m.instr != nil {
		m.instr.AlertsFired.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("alert_type", alertType)))
	}
}

// attrValueFor maps alert detail values onto the telemetry attribute
// variant.
func attrValueFor(v any) collector.AttrValue {
	switch t := v.(type) {
	case string:
		return collector.StringValue(t)
	case float64:
		return collector.FloatValue(t)
	case int:
		return collector.IntValue(int64(t))
	case int64:
		return collector.IntValue(t)
	case bool:
		return collector.BoolValue(t)
	case nil:
		return collector.NullValue()
	default:
		return collector.StringValue(fmt.Sprint(t))
	}
}
