// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDetector(t *testing.T, cfg Config) *Detector {
	t.Helper()
	d, err := NewDetector(cfg)
	require.NoError(t, err)
	return d
}

func TestNewDetector_InvalidConfig(t *testing.T) {
	_, err := NewDetector(Config{WindowSize: -1, StdThreshold: 3})
	assert.Error(t, err)

	_, err = NewDetector(Config{WindowSize: 10, StdThreshold: -2})
	assert.Error(t, err)
}

func TestDetector_WarmupNeverFlags(t *testing.T) {
	d := mustDetector(t, Config{WindowSize: 100, StdThreshold: 3})

	// First ten calls are warm-up regardless of how extreme the value is.
	for i := 0; i < 9; i++ {
		assert.False(t, d.IsAnomaly(100))
	}
	assert.False(t, d.IsAnomaly(1e9))
	assert.Equal(t, 10, d.Len())
}

func TestDetector_FlagsOutliersAfterWarmup(t *testing.T) {
	d := mustDetector(t, Config{WindowSize: 100, StdThreshold: 3})

	// Alternating values give a non-zero deviation.
	for i := 0; i < 5; i++ {
		d.AddValue(99)
		d.AddValue(101)
	}

	assert.False(t, d.IsAnomaly(100), "value at the mean is never anomalous")
	assert.True(t, d.IsAnomaly(1000), "value far beyond threshold·std is anomalous")
}

func TestDetector_ZeroDeviation(t *testing.T) {
	d := mustDetector(t, Config{WindowSize: 100, StdThreshold: 3})

	for i := 0; i < 10; i++ {
		d.AddValue(50)
	}

	// With std==0 the repeated value is the only non-anomalous input.
	assert.False(t, d.IsAnomaly(50))
	assert.True(t, d.IsAnomaly(50.0001))
}

func TestDetector_JudgmentUsesPreInsertStatistics(t *testing.T) {
	d := mustDetector(t, Config{WindowSize: 100, StdThreshold: 2})

	for i := 0; i < 10; i++ {
		d.AddValue(10)
	}

	// The outlier is judged against the flat history, then inserted.
	assert.True(t, d.IsAnomaly(500))
	assert.Equal(t, 11, d.Len())

	// Statistics now include the outlier, widening the expected range.
	lo, hi := d.ExpectedRange()
	assert.Less(t, lo, 10.0)
	assert.Greater(t, hi, 10.0)
}

func TestDetector_ExpectedRange(t *testing.T) {
	d := mustDetector(t, Config{WindowSize: 100, StdThreshold: 3})

	lo, hi := d.ExpectedRange()
	assert.Equal(t, lo, hi, "no samples: degenerate range")

	for i := 0; i < 4; i++ {
		d.AddValue(7)
	}
	lo, hi = d.ExpectedRange()
	assert.Equal(t, 7.0, lo)
	assert.Equal(t, 7.0, hi)

	d.AddValue(1)
	d.AddValue(13)
	lo, hi = d.ExpectedRange()
	assert.LessOrEqual(t, lo, hi)
	assert.Less(t, lo, 7.0)
	assert.Greater(t, hi, 7.0)
}

func TestDetector_WindowEvictsOldest(t *testing.T) {
	d := mustDetector(t, Config{WindowSize: 5, StdThreshold: 3})

	for i := 1; i <= 10; i++ {
		d.AddValue(float64(i))
	}

	assert.Equal(t, []float64{6, 7, 8, 9, 10}, d.Values())
}
