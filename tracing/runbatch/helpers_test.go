/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runbatch

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// recordingExporter captures every batch handed to it.
type recordingExporter struct {
	mu        sync.Mutex
	batches   [][]sdktrace.ReadOnlySpan
	exportErr error
	flushErr  error
	flushes   int
	shutdowns int
}

func (e *recordingExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, append([]sdktrace.ReadOnlySpan(nil), spans...))
	return e.exportErr
}

func (e *recordingExporter) ForceFlush(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushes++
	return e.flushErr
}

func (e *recordingExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdowns++
	return nil
}

// names returns the span names of every exported batch.
func (e *recordingExporter) names() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, 0, len(e.batches))
	for _, batch := range e.batches {
		names := make([]string, 0, len(batch))
		for _, s := range batch {
			names = append(names, s.Name())
		}
		out = append(out, names)
	}
	return out
}

func (e *recordingExporter) snapshot() [][]sdktrace.ReadOnlySpan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]sdktrace.ReadOnlySpan(nil), e.batches...)
}

type harness struct {
	processor *Processor
	exporter  *recordingExporter
	provider  *sdktrace.TracerProvider
	tracer    trace.Tracer
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	exporter := &recordingExporter{}
	processor := New(exporter, opts...)
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(processor))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return &harness{
		processor: processor,
		exporter:  exporter,
		provider:  provider,
		tracer:    provider.Tracer("lemma"),
	}
}

// startRun starts a top-level run span, optionally with a pre-assigned run ID.
func (h *harness) startRun(runID string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := append([]attribute.KeyValue(nil), extra...)
	if runID != "" {
		attrs = append(attrs, RunIDKey.String(runID))
	}
	return h.tracer.Start(context.Background(), RunSpanName, trace.WithAttributes(attrs...))
}

// startAutoEndRun starts a top-level run span whose automatic ending is armed
// later through the returned AutoEnd.
func (h *harness) startAutoEndRun() (context.Context, trace.Span, *AutoEnd) {
	ctx, autoEnd := WithAutoEnd(context.Background())
	_, root := h.tracer.Start(ctx, RunSpanName)
	return trace.ContextWithSpan(context.Background(), root), root, autoEnd
}

// attr returns the string value of key on s.
func attr(s sdktrace.ReadOnlySpan, key attribute.Key) string {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value.Emit()
		}
	}
	return ""
}
