/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runbatch

import (
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	// RunSpanName is the name of the span that starts a run when it has no parent.
	RunSpanName = "ai.agent.run"

	// RunIDKey holds the run identifier. A non-empty string set by the caller is reused.
	RunIDKey = attribute.Key("lemma.run_id")

	// AutoEndRootKey, set when the root starts, asks the processor to end the root
	// once its direct children close.
	AutoEndRootKey = attribute.Key("lemma.auto_end_root")
)

// DefaultDeniedScopes lists the instrumentation scopes excluded from exported batches.
var DefaultDeniedScopes = []string{"next.js"}

// RunAttributes is the typed view of the run attributes the processor reads and writes.
type RunAttributes struct {
	RunID       string
	AutoEndRoot bool
}

// ParseRunAttributes extracts the run attributes from a span attribute set.
// Values of the wrong type are ignored.
func ParseRunAttributes(attrs []attribute.KeyValue) RunAttributes {
	var ra RunAttributes
	for _, kv := range attrs {
		switch kv.Key {
		case RunIDKey:
			if kv.Value.Type() == attribute.STRING {
				ra.RunID = kv.Value.AsString()
			}
		case AutoEndRootKey:
			if kv.Value.Type() == attribute.BOOL {
				ra.AutoEndRoot = kv.Value.AsBool()
			}
		}
	}
	return ra
}

// KeyValues renders the attributes that are set.
func (ra RunAttributes) KeyValues() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if ra.RunID != "" {
		attrs = append(attrs, RunIDKey.String(ra.RunID))
	}
	if ra.AutoEndRoot {
		attrs = append(attrs, AutoEndRootKey.Bool(true))
	}
	return attrs
}

// spanKey identifies a span within the process.
type spanKey struct {
	traceID trace.TraceID
	spanID  trace.SpanID
}

func keyOf(sc trace.SpanContext) spanKey {
	return spanKey{traceID: sc.TraceID(), spanID: sc.SpanID()}
}

// spanInfo is the subset of a span the registry needs.
type spanInfo struct {
	key       spanKey
	parent    spanKey
	hasParent bool
	name      string
	scope     string
}

func describe(s sdktrace.ReadOnlySpan) spanInfo {
	parent := s.Parent()
	return spanInfo{
		key:       keyOf(s.SpanContext()),
		parent:    keyOf(parent),
		hasParent: parent.IsValid(),
		name:      s.Name(),
		scope:     s.InstrumentationScope().Name,
	}
}

// isRunRoot reports whether the span starts a new run.
func (si spanInfo) isRunRoot() bool {
	return si.name == RunSpanName && !si.hasParent
}
