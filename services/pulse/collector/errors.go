// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collector

import "errors"

// Sentinel errors for the collector.
var (
	// ErrNilMetricsSink indicates the collector was built without a metrics sink.
	ErrNilMetricsSink = errors.New("metrics sink must not be nil")

	// ErrNilEventSink indicates the collector was built without an event sink.
	ErrNilEventSink = errors.New("event sink must not be nil")

	// ErrCollectorClosed indicates use after Close.
	ErrCollectorClosed = errors.New("collector is closed")

	// ErrDetectorRegistered indicates a duplicate detector registration.
	ErrDetectorRegistered = errors.New("anomaly detector already registered for metric")
)
