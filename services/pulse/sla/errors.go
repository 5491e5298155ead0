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

import "errors"

// Sentinel errors for the SLA monitor.
var (
	// ErrNilQuerier indicates the monitor was built without a metric
	// query backend.
	ErrNilQuerier = errors.New("metric querier must not be nil")

	// ErrDuplicateSLA indicates a registration under an existing name.
	ErrDuplicateSLA = errors.New("sla already registered")

	// ErrSLANotFound indicates a lookup for an unregistered SLA.
	ErrSLANotFound = errors.New("sla not found")

	// ErrSLAExpired indicates an evaluation request for an SLA past its
	// expiry date. Expired SLAs never produce fresh measurements.
	ErrSLAExpired = errors.New("sla expired")

	// ErrMonitorClosed indicates use after Close.
	ErrMonitorClosed = errors.New("monitor is closed")
)
