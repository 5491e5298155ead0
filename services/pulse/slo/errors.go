// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package slo

import "errors"

// Sentinel errors for definition handling. All of these are configuration
// errors: they surface synchronously and are never swallowed.
var (
	// ErrUnknownOperator indicates an unsupported comparison operator.
	ErrUnknownOperator = errors.New("unknown comparison operator")

	// ErrInvalidDefinition indicates a structurally invalid SLA/SLO/SLI.
	ErrInvalidDefinition = errors.New("invalid definition")

	// ErrDuplicateSLO indicates two SLOs with the same name in one SLA.
	ErrDuplicateSLO = errors.New("duplicate slo name")
)
