/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Compile-time check that Processor implements SpanProcessor.
var _ sdktrace.SpanProcessor = (*Processor)(nil)

// flusher is implemented by exporters that buffer internally.
type flusher interface {
	ForceFlush(ctx context.Context) error
}

// Processor is a span processor that exports the spans of each run as one batch
// once the run is complete. It is safe for concurrent use.
type Processor struct {
	exporter      sdktrace.SpanExporter
	deniedScopes  []string
	newRunID      func() string
	exportTimeout time.Duration
	logger        *clog.Logger

	mu       sync.Mutex // guards registry, buffer and stopped
	registry *registry
	buffer   *batchBuffer
	stopped  bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a Processor that hands completed run batches to exporter.
func New(exporter sdktrace.SpanExporter, opts ...Option) *Processor {
	p := &Processor{
		exporter:      exporter,
		deniedScopes:  DefaultDeniedScopes,
		newRunID:      uuid.NewString,
		exportTimeout: DefaultExportTimeout,
		logger:        clog.FromContext(context.Background()),
		registry:      newRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.buffer = newBatchBuffer(p.deniedScopes)
	return p
}

// OnStart registers root spans as new runs and maps every other span to the
// run of its parent.
func (p *Processor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	si := describe(s)

	if si.isRunRoot() {
		attrs := ParseRunAttributes(s.Attributes())
		if attrs.RunID == "" {
			attrs.RunID = p.newRunID()
		}
		s.SetAttributes(RunIDKey.String(attrs.RunID))

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.stopped {
			return
		}
		r := p.registry.startRoot(si, attrs, s)
		if a := autoEndFromContext(parent); a != nil {
			a.bind(p, r)
		}
		runsStarted.Inc()
		openRuns.Inc()
		return
	}

	if !si.hasParent {
		return
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	r, ok := p.registry.startChild(si)
	p.mu.Unlock()

	if !ok {
		spansUnmapped.Inc()
		return
	}
	// The run ID never changes once assigned.
	s.SetAttributes(RunIDKey.String(r.id))
}

// OnEnd buffers the span with its run and exports the run if it is complete.
func (p *Processor) OnEnd(s sdktrace.ReadOnlySpan) {
	si := describe(s)

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	r, direct, ok := p.registry.end(si)
	if !ok {
		p.mu.Unlock()
		return
	}
	if !p.buffer.add(r, s) {
		spansFiltered.WithLabelValues(si.scope).Inc()
	}

	var (
		batch   []sdktrace.ReadOnlySpan
		runID   = r.id
		endRoot sdktrace.ReadWriteSpan
	)
	switch {
	case r.complete():
		batch = p.takeLocked(r)
	case direct:
		endRoot = p.autoEndLocked(r)
	}
	p.mu.Unlock()

	if endRoot != nil {
		// Ending the root re-enters OnEnd, which completes the run.
		endRoot.End()
		return
	}
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.exportTimeout)
	defer cancel()
	if err := p.export(ctx, batch, triggerComplete); err != nil {
		p.logger.With("run_id", runID).
			With("spans", len(batch)).
			Error("Failed to export run batch", "error", err)
		otel.Handle(err)
	}
}

// arm marks r for automatic ending and ends its root when no direct children
// are open. It returns false once the run is no longer tracked.
func (p *Processor) arm(r *run) bool {
	p.mu.Lock()
	if p.stopped || !p.registry.tracked(r) {
		p.mu.Unlock()
		return false
	}
	r.autoEndRoot = true
	endRoot := p.autoEndLocked(r)
	p.mu.Unlock()

	if endRoot != nil {
		endRoot.End()
	}
	return true
}

// autoEndLocked returns the root span to end when r is armed and idle, or nil.
// Must be called with p.mu held; the caller ends the span after unlocking.
func (p *Processor) autoEndLocked(r *run) sdktrace.ReadWriteSpan {
	if !r.autoEndRoot || r.autoEnding || r.rootEnded || r.openChildren > 0 {
		return nil
	}
	r.autoEnding = true
	return r.rootSpan
}

// ForceFlush exports every run that has buffered spans, complete or not, and
// then flushes the exporter if it supports flushing.
func (p *Processor) ForceFlush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	pending := p.buffer.pending()
	batches := make([][]sdktrace.ReadOnlySpan, 0, len(pending))
	for _, r := range pending {
		batches = append(batches, p.takeLocked(r))
	}
	p.mu.Unlock()

	var errs []error
	for _, batch := range batches {
		if err := p.export(ctx, batch, triggerFlush); err != nil {
			errs = append(errs, err)
		}
	}
	if f, ok := p.exporter.(flusher); ok {
		if err := f.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing exporter: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes all buffered runs and shuts down the exporter. Only the
// first call has any effect; later calls return the first call's result.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		flushErr := p.ForceFlush(ctx)

		p.mu.Lock()
		openRuns.Sub(float64(p.registry.len()))
		p.registry.reset()
		p.buffer.reset()
		p.mu.Unlock()

		var shutdownErr error
		if err := p.exporter.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("shutting down exporter: %w", err)
		}
		p.shutdownErr = errors.Join(flushErr, shutdownErr)
	})
	return p.shutdownErr
}

// takeLocked removes the run's batch and forgets the run.
// Must be called with p.mu held.
func (p *Processor) takeLocked(r *run) []sdktrace.ReadOnlySpan {
	batch := p.buffer.take(r)
	if p.registry.tracked(r) {
		p.registry.purge(r)
		openRuns.Dec()
	}
	return batch
}

// export hands a batch to the exporter. Empty batches are never exported.
// Must be called without p.mu held.
func (p *Processor) export(ctx context.Context, batch []sdktrace.ReadOnlySpan, trigger string) error {
	if len(batch) == 0 {
		return nil
	}
	if err := p.exporter.ExportSpans(ctx, batch); err != nil {
		exportErrors.WithLabelValues(trigger).Inc()
		return fmt.Errorf("exporting run batch of %d spans: %w", len(batch), err)
	}
	runsExported.WithLabelValues(trigger).Inc()
	spansExported.Add(float64(len(batch)))
	return nil
}
