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
	"log/slog"

	"github.com/AleutianAI/AleutianPulse/services/pulse/slo"
)

// DefinitionStore persists SLA definitions keyed by name.
//
// The store is consulted at registration and load time only, never in the
// evaluation hot path. Monitor state is rebuildable from the store plus
// fresh measurements after a restart.
type DefinitionStore interface {
	Upsert(ctx context.Context, sla slo.SLA) error
	Get(ctx context.Context, name string) (slo.SLA, error)
	List(ctx context.Context) ([]slo.SLA, error)
	Delete(ctx context.Context, name string) error
}

// AlertSink delivers compliance alerts. Fire-and-forget: failures are
// logged by the monitor and never abort an evaluation.
type AlertSink interface {
	SendAlert(ctx context.Context, alertType string, details map[string]any) error
}

// LogAlertSink writes alerts to a structured logger. It is the default
// sink when no external delivery transport is wired.
type LogAlertSink struct {
	Logger *slog.Logger
}

// SendAlert logs the alert at warn level. Never fails.
func (s *LogAlertSink) SendAlert(_ context.Context, alertType string, details map[string]any) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := make([]any, 0, 2+2*len(details))
	args = append(args, slog.String("alert_type", alertType))
	for k, v := range details {
		args = append(args, slog.Any(k, v))
	}
	logger.Warn("sla alert", args...)
	return nil
}
