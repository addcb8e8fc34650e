/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runbatch

import (
	"slices"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// batchBuffer accumulates the spans of each run awaiting export.
// It is not safe for concurrent use; the Processor guards it with its mutex.
type batchBuffer struct {
	denied  map[string]struct{}
	batches map[*run][]sdktrace.ReadOnlySpan
	order   []*run // runs in the order their first span was buffered
}

func newBatchBuffer(deniedScopes []string) *batchBuffer {
	denied := make(map[string]struct{}, len(deniedScopes))
	for _, scope := range deniedScopes {
		denied[scope] = struct{}{}
	}
	return &batchBuffer{
		denied:  denied,
		batches: make(map[*run][]sdktrace.ReadOnlySpan),
	}
}

// filtered reports whether spans from the scope are kept out of batches.
func (b *batchBuffer) filtered(scope string) bool {
	_, ok := b.denied[scope]
	return ok
}

// add appends a span to the run's batch. It returns false when the span's
// scope is denied.
func (b *batchBuffer) add(r *run, s sdktrace.ReadOnlySpan) bool {
	if b.filtered(s.InstrumentationScope().Name) {
		return false
	}
	batch, ok := b.batches[r]
	if !ok {
		b.order = append(b.order, r)
	}
	b.batches[r] = append(batch, s)
	return true
}

// take removes and returns the run's batch. The returned slice may be empty.
func (b *batchBuffer) take(r *run) []sdktrace.ReadOnlySpan {
	batch, ok := b.batches[r]
	if !ok {
		return nil
	}
	delete(b.batches, r)
	b.order = slices.DeleteFunc(b.order, func(o *run) bool { return o == r })
	return batch
}

// pending returns the runs that have buffered spans, oldest first.
func (b *batchBuffer) pending() []*run {
	return slices.Clone(b.order)
}

// reset drops all buffered spans.
func (b *batchBuffer) reset() {
	b.batches = make(map[*run][]sdktrace.ReadOnlySpan)
	b.order = nil
}
