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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		target float64
		op     Operator
		want   bool
	}{
		{"le equal", 99, 99, OpLE, true},
		{"le below", 98, 99, OpLE, true},
		{"le above", 100, 99, OpLE, false},
		{"ge equal", 99, 99, OpGE, true},
		{"ge above", 99.5, 99, OpGE, true},
		{"ge below", 98.9, 99, OpGE, false},
		{"lt strict", 99, 99, OpLT, false},
		{"gt strict", 99, 99, OpGT, false},
		{"eq within epsilon", 99.0005, 99.0, OpEQ, true},
		{"eq outside epsilon", 99.1, 99.0, OpEQ, false},
		{"eq exact", 42, 42, OpEQ, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.value, tt.target, tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompare_UnknownOperatorFailsLoud(t *testing.T) {
	_, err := Compare(1, 2, Operator("~="))
	assert.ErrorIs(t, err, ErrUnknownOperator)
}
