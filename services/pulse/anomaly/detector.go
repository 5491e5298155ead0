// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package anomaly implements a per-metric sliding-window statistical model.
//
// A Detector keeps the last N observations of a single metric and flags new
// values whose z-score against the window exceeds a configured threshold.
// Judgments only begin after a warm-up of ten samples.
package anomaly

import (
	"fmt"
	"math"

	"github.com/AleutianAI/AleutianPulse/services/pulse/history"
)

// minSamples is the warm-up threshold. Values observed before this many
// samples are recorded but never judged.
const minSamples = 10

// Config controls a Detector.
type Config struct {
	// WindowSize is the maximum number of observations retained.
	WindowSize int

	// StdThreshold is the z-score above which a value is an anomaly.
	StdThreshold float64
}

// ApplyDefaults fills zero fields with conservative defaults.
func (c *Config) ApplyDefaults() {
	if c.WindowSize == 0 {
		c.WindowSize = 100
	}
	if c.StdThreshold == 0 {
		c.StdThreshold = 3.0
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", c.WindowSize)
	}
	if c.StdThreshold <= 0 {
		return fmt.Errorf("std threshold must be positive, got %g", c.StdThreshold)
	}
	return nil
}

// Detector is a sliding-window statistical model for one metric.
//
// # Thread Safety
//
// NOT safe for concurrent use. The collector serializes access per metric.
type Detector struct {
	cfg    Config
	window *history.RingBuffer[float64]
	mean   float64
	std    float64
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg Config) (*Detector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	return &Detector{
		cfg:    cfg,
		window: history.NewRingBuffer[float64](cfg.WindowSize),
	}, nil
}

// AddValue records an observation, evicting the oldest when the window is
// full, and refreshes the running statistics.
func (d *Detector) AddValue(v float64) {
	d.window.Push(v)
	d.recompute()
}

// IsAnomaly judges v against the statistics of past observations, then
// records it.
//
// # Description
//
// During warm-up (fewer than ten samples) the value is recorded and never
// flagged. After warm-up, v is judged against the pre-insert mean and
// standard deviation, so a value never participates in its own judgment.
// With zero deviation, only a value exactly equal to the repeated history
// is non-anomalous. The value is always inserted afterwards.
func (d *Detector) IsAnomaly(v float64) bool {
	if d.window.Len() < minSamples {
		d.AddValue(v)
		return false
	}

	var anomalous bool
	if d.std == 0 {
		anomalous = v != d.mean
	} else {
		z := math.Abs(v-d.mean) / d.std
		anomalous = z > d.cfg.StdThreshold
	}

	d.AddValue(v)
	return anomalous
}

// ExpectedRange returns the band of values considered normal under the
// latest statistics: (mean, mean) with zero deviation, otherwise
// mean ± StdThreshold·std.
func (d *Detector) ExpectedRange() (lo, hi float64) {
	if d.std == 0 {
		return d.mean, d.mean
	}
	delta := d.cfg.StdThreshold * d.std
	return d.mean - delta, d.mean + delta
}

// Values returns the current window contents, oldest first.
func (d *Detector) Values() []float64 {
	return d.window.Slice()
}

// Len returns the number of retained observations.
func (d *Detector) Len() int {
	return d.window.Len()
}

// recompute refreshes the population mean and standard deviation over the
// current window.
func (d *Detector) recompute() {
	vals := d.window.Slice()
	n := float64(len(vals))
	if n == 0 {
		d.mean, d.std = 0, 0
		return
	}

	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / n

	var sq float64
	for _, v := range vals {
		delta := v - mean
		sq += delta * delta
	}

	d.mean = mean
	d.std = math.Sqrt(sq / n)
}
