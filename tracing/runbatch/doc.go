/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package runbatch provides an OpenTelemetry span processor that groups every span
belonging to one agent run into a single exported batch.

# Overview

A run is the tree of spans rooted at a top-level span named "ai.agent.run" (see
RunSpanName) that has no parent. The Processor observes span lifecycle events from
the OpenTelemetry SDK and:

  - Assigns each run an identifier, reusing the "lemma.run_id" attribute when the
    caller already set one, and writes it back onto the root span
  - Maps every descendant span to its run and buffers it when it ends
  - Tracks the open direct children of the root so that a run is exported only once
    its root has ended and all direct children have closed, in either order
  - Hands each run's batch to the exporter exactly once, then forgets the run

Spans whose instrumentation scope is on the deny-list are still correlated but are
left out of the exported batch. Spans that cannot be tied to a run are ignored.

# Usage

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(url))
	if err != nil {
		return err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(runbatch.New(exporter)),
	)
	defer provider.Shutdown(ctx)

# Completion

Export is deferred until both the root span has ended and its open direct-child
count has reached zero. Deeper descendants are buffered with the run but never hold
it open. ForceFlush exports every run with buffered spans regardless of completion
and is the only way to reclaim runs whose spans are never ended.

When a root span starts with "lemma.auto_end_root" set to true, the processor ends
the root itself as soon as its last open direct child ends. Callers that only know
when the root may end after it has started, such as a wrapper whose function runs
several steps in sequence, start the root from a WithAutoEnd context instead and
call AutoEnd.Arm once no further direct children will be started:

	ctx, autoEnd := runbatch.WithAutoEnd(ctx)
	ctx, root := tracer.Start(ctx, runbatch.RunSpanName, trace.WithNewRoot())
	step(ctx)
	step(ctx)
	if !autoEnd.Arm() {
		root.End()
	}
*/
package runbatch
