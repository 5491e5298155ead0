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

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// EventKind classifies a telemetry event.
type EventKind string

const (
	EventKindMetric  EventKind = "metric"
	EventKindTrace   EventKind = "trace"
	EventKindLog     EventKind = "log"
	EventKindEvent   EventKind = "event"
	EventKindProfile EventKind = "profile"
)

// Severity grades a telemetry event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ValueKind discriminates the closed attribute variant.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueString
	ValueFloat
	ValueInt
	ValueBool
	ValueList
	ValueMap
)

// AttrValue is a closed variant for attribute values: string, float, int,
// bool, null, list, or nested attribute map. Zero value is null.
type AttrValue struct {
	kind ValueKind
	str  string
	num  float64
	i    int64
	b    bool
	list []AttrValue
	m    *Attributes
}

func StringValue(s string) AttrValue  { return AttrValue{kind: ValueString, str: s} }
func FloatValue(f float64) AttrValue  { return AttrValue{kind: ValueFloat, num: f} }
func IntValue(i int64) AttrValue      { return AttrValue{kind: ValueInt, i: i} }
func BoolValue(b bool) AttrValue      { return AttrValue{kind: ValueBool, b: b} }
func NullValue() AttrValue            { return AttrValue{kind: ValueNull} }
func ListValue(vs ...AttrValue) AttrValue {
	return AttrValue{kind: ValueList, list: vs}
}
func MapValue(m *Attributes) AttrValue { return AttrValue{kind: ValueMap, m: m} }

// Kind returns the variant discriminator.
func (v AttrValue) Kind() ValueKind { return v.kind }

// AsString returns the string payload; ok is false for other kinds.
func (v AttrValue) AsString() (string, bool) { return v.str, v.kind == ValueString }

// AsFloat returns the float payload; ok is false for other kinds.
func (v AttrValue) AsFloat() (float64, bool) { return v.num, v.kind == ValueFloat }

// AsInt returns the int payload; ok is false for other kinds.
func (v AttrValue) AsInt() (int64, bool) { return v.i, v.kind == ValueInt }

// AsBool returns the bool payload; ok is false for other kinds.
func (v AttrValue) AsBool() (bool, bool) { return v.b, v.kind == ValueBool }

// AsList returns the list payload; ok is false for other kinds.
func (v AttrValue) AsList() ([]AttrValue, bool) { return v.list, v.kind == ValueList }

// AsMap returns the nested map payload; ok is false for other kinds.
func (v AttrValue) AsMap() (*Attributes, bool) { return v.m, v.kind == ValueMap }

// String renders the value for logs and sinks.
func (v AttrValue) String() string {
	switch v.kind {
	case ValueNull:
		return "null"
	case ValueString:
		return v.str
	case ValueFloat:
		return fmt.Sprintf("%g", v.num)
	case ValueInt:
		return fmt.Sprintf("%d", v.i)
	case ValueBool:
		return fmt.Sprintf("%t", v.b)
	case ValueList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case ValueMap:
		if v.m == nil {
			return "{}"
		}
		parts := make([]string, 0, v.m.Len())
		v.m.ForEach(func(k string, val AttrValue) {
			parts = append(parts, k+"="+val.String())
		})
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return fmt.Sprintf("<unknown kind %d>", v.kind)
	}
}

// Attr is one key/value attribute pair.
type Attr struct {
	Key   string
	Value AttrValue
}

// Attributes is an insertion-ordered string→AttrValue map.
//
// # Thread Safety
//
// NOT safe for concurrent mutation; the collector copies attributes into
// events under its own lock.
type Attributes struct {
	attrs []Attr
	index map[string]int
}

// NewAttributes builds an attribute map preserving argument order. Later
// duplicates overwrite earlier values in place.
func NewAttributes(attrs ...Attr) *Attributes {
	a := &Attributes{index: make(map[string]int, len(attrs))}
	for _, at := range attrs {
		a.Set(at.Key, at.Value)
	}
	return a
}

// Set inserts or replaces a value. Replacement keeps the original position.
func (a *Attributes) Set(key string, v AttrValue) {
	if a.index == nil {
		a.index = make(map[string]int)
	}
	if i, ok := a.index[key]; ok {
		a.attrs[i].Value = v
		return
	}
	a.index[key] = len(a.attrs)
	a.attrs = append(a.attrs, Attr{Key: key, Value: v})
}

// Get looks up a value by key.
func (a *Attributes) Get(key string) (AttrValue, bool) {
	if a == nil || a.index == nil {
		return AttrValue{}, false
	}
	i, ok := a.index[key]
	if !ok {
		return AttrValue{}, false
	}
	return a.attrs[i].Value, true
}

// Len returns the number of attributes.
func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.attrs)
}

// ForEach visits attributes in insertion order.
func (a *Attributes) ForEach(fn func(key string, v AttrValue)) {
	if a == nil {
		return
	}
	for _, at := range a.attrs {
		fn(at.Key, at.Value)
	}
}

// Clone returns an independent copy.
func (a *Attributes) Clone() *Attributes {
	if a == nil {
		return NewAttributes()
	}
	c := &Attributes{
		attrs: make([]Attr, len(a.attrs)),
		index: make(map[string]int, len(a.index)),
	}
	copy(c.attrs, a.attrs)
	for k, v := range a.index {
		c.index[k] = v
	}
	return c
}

// TelemetryEvent is a single buffered event. Immutable once recorded;
// consumed and discarded on flush.
type TelemetryEvent struct {
	ID         string
	Timestamp  time.Time
	Kind       EventKind
	Name       string
	Attributes *Attributes
	Severity   Severity
	TraceID    string
	SpanID     string
}

// MetricPoint is one observation of a named metric.
type MetricPoint struct {
	Timestamp time.Time
	Value     float64
	Labels    map[string]string

	// ExemplarTraceID links the point to the trace active when it was
	// recorded, when any.
	ExemplarTraceID string
}

// SpanStatus is the terminal status of a trace span.
type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// TraceSpan is a timed, named unit of work, optionally nested under a
// parent. Status, end time, and error are set only when the span closes.
type TraceSpan struct {
	SpanID       string
	TraceID      string
	ParentSpanID string // empty for root spans
	Name         string
	StartTime    time.Time
	EndTime      *time.Time
	Attributes   *Attributes
	Status       SpanStatus
	Err          error
	Events       []TelemetryEvent
}

// Point is one (timestamp, value) sample inside a TimeSeries.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// TimeSeries is a batch of samples for one (metric, label set) pair,
// ready for a metrics sink.
type TimeSeries struct {
	Metric string
	Labels map[string]string
	Points []Point
}

// labelFingerprint returns a canonical rendering of a label set, used to
// group buffered points into series.
func labelFingerprint(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}
