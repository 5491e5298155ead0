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

import (
	"fmt"
	"math"
)

// Operator compares a measured value against an SLO target.
type Operator string

const (
	OpLE Operator = "<="
	OpGE Operator = ">="
	OpLT Operator = "<"
	OpGT Operator = ">"
	OpEQ Operator = "=="
)

// EqualityEpsilon is the tolerance for the == operator.
const EqualityEpsilon = 0.001

// Compare reports whether value satisfies the objective target under op.
//
// Equality is satisfied within EqualityEpsilon. An unknown operator is a
// configuration error and fails loud.
func Compare(value, target float64, op Operator) (bool, error) {
	switch op {
	case OpLE:
		return value <= target, nil
	case OpGE:
		return value >= target, nil
	case OpLT:
		return value < target, nil
	case OpGT:
		return value > target, nil
	case OpEQ:
		return math.Abs(value-target) <= EqualityEpsilon, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}
