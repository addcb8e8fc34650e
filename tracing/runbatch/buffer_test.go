/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runbatch

import (
	"testing"

	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func stub(name, scope string) sdktrace.ReadOnlySpan {
	return tracetest.SpanStub{
		Name:                 name,
		InstrumentationScope: instrumentation.Scope{Name: scope},
	}.Snapshot()
}

func TestBatchBuffer(t *testing.T) {
	t.Parallel()
	b := newBatchBuffer(DefaultDeniedScopes)
	r1, r2 := &run{id: "a"}, &run{id: "b"}

	if !b.add(r2, stub("b-1", "lemma")) {
		t.Error("add(b-1): got filtered, wanted kept")
	}
	if b.add(r1, stub("render", "next.js")) {
		t.Error("add(render): got kept, wanted filtered")
	}
	b.add(r1, stub("a-1", "lemma"))
	b.add(r2, stub("b-2", "lemma"))

	pending := b.pending()
	if len(pending) != 2 || pending[0] != r2 || pending[1] != r1 {
		t.Fatalf("pending: got = %v, wanted = [b a]", pending)
	}

	batch := b.take(r2)
	if got := len(batch); got != 2 {
		t.Errorf("take(b) size: got = %d, wanted = 2", got)
	}
	if got := b.take(r2); got != nil {
		t.Errorf("second take(b): got = %v, wanted nil", got)
	}
	if got := b.pending(); len(got) != 1 || got[0] != r1 {
		t.Errorf("pending after take: got = %v, wanted = [a]", got)
	}

	b.reset()
	if got := b.pending(); len(got) != 0 {
		t.Errorf("pending after reset: got = %v, wanted empty", got)
	}
}

func TestBatchBufferFilteredOnlyRun(t *testing.T) {
	t.Parallel()
	b := newBatchBuffer([]string{"noisy"})
	r := &run{id: "a"}

	b.add(r, stub("noise", "noisy"))
	if got := b.pending(); len(got) != 0 {
		t.Errorf("pending: got = %v, wanted empty", got)
	}
	if got := b.take(r); len(got) != 0 {
		t.Errorf("take: got = %v, wanted empty", got)
	}
}
