// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPulse/services/pulse/sla"
	"github.com/AleutianAI/AleutianPulse/services/pulse/slo"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storedSLA(name string) slo.SLA {
	return slo.SLA{
		Name:     name,
		Customer: "acme",
		SLOs: []slo.SLO{
			{
				Name: "availability",
				SLI: slo.SLI{
					Name:        name + "-availability",
					Type:        slo.SLIAvailability,
					MetricQuery: name + "_success_rate",
					Aggregation: slo.AggMean,
				},
				Target:            99.9,
				Operator:          slo.OpGE,
				MeasurementWindow: 5 * time.Minute,
				RollingWindow:     24 * time.Hour,
			},
		},
		ReportingPeriod: 30 * 24 * time.Hour,
	}
}

func TestStore_UpsertGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	def := storedSLA("checkout")
	def.EffectiveFrom = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(ctx, def))

	got, err := s.Get(ctx, "checkout")
	require.NoError(t, err)
	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, def.Customer, got.Customer)
	require.Len(t, got.SLOs, 1)
	assert.Equal(t, def.SLOs[0].Operator, got.SLOs[0].Operator)
	assert.Equal(t, def.SLOs[0].RollingWindow, got.SLOs[0].RollingWindow)
	assert.True(t, got.EffectiveFrom.Equal(def.EffectiveFrom))
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, sla.ErrSLANotFound)
}

func TestStore_UpsertReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, storedSLA("checkout")))

	updated := storedSLA("checkout")
	updated.Customer = "globex"
	require.NoError(t, s.Upsert(ctx, updated))

	got, err := s.Get(ctx, "checkout")
	require.NoError(t, err)
	assert.Equal(t, "globex", got.Customer)

	defs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestStore_ListAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, storedSLA("checkout")))
	require.NoError(t, s.Upsert(ctx, storedSLA("search")))

	defs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	require.NoError(t, s.Delete(ctx, "checkout"))
	_, err = s.Get(ctx, "checkout")
	assert.ErrorIs(t, err, sla.ErrSLANotFound)

	assert.NoError(t, s.Delete(ctx, "checkout"), "deleting an absent name is a no-op")

	defs, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "search", defs[0].Name)
}

func TestStore_CancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Upsert(ctx, storedSLA("checkout")))
	_, err := s.Get(ctx, "checkout")
	assert.Error(t, err)
	_, err = s.List(ctx)
	assert.Error(t, err)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.SyncWrites = false
	cfg.GCInterval = 0

	s, err := Open(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(context.Background(), storedSLA("checkout")))
	require.NoError(t, s.Close())

	s, err = Open(cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(context.Background(), "checkout")
	require.NoError(t, err)
	assert.Equal(t, "checkout", got.Name)
}
