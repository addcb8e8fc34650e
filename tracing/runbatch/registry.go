/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runbatch

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// run tracks one top-level span and its descendants until the run is exported.
type run struct {
	id          string
	root        spanKey
	rootSpan    sdktrace.ReadWriteSpan // ended by the processor once autoEndRoot is armed
	autoEndRoot bool                   // armed at root start or by AutoEnd.Arm
	autoEnding  bool
	rootEnded   bool

	openChildren   int
	directChildren map[spanKey]struct{} // direct children that have not ended
	members        map[spanKey]struct{} // every span mapped to this run
}

// complete reports whether the run may be exported.
func (r *run) complete() bool {
	return r.rootEnded && r.openChildren == 0
}

// registry maps spans to runs. It is not safe for concurrent use; the
// Processor guards it with its mutex.
type registry struct {
	spans map[spanKey]*run
	runs  map[*run]struct{}
}

func newRegistry() *registry {
	return &registry{
		spans: make(map[spanKey]*run),
		runs:  make(map[*run]struct{}),
	}
}

// startRoot registers a new run for a top-level span.
func (reg *registry) startRoot(si spanInfo, attrs RunAttributes, span sdktrace.ReadWriteSpan) *run {
	r := &run{
		id:             attrs.RunID,
		root:           si.key,
		rootSpan:       span,
		autoEndRoot:    attrs.AutoEndRoot,
		directChildren: make(map[spanKey]struct{}),
		members:        map[spanKey]struct{}{si.key: {}},
	}
	reg.spans[si.key] = r
	reg.runs[r] = struct{}{}
	return r
}

// startChild maps a span to its parent's run. It returns false when the
// parent is not part of a tracked run.
func (reg *registry) startChild(si spanInfo) (*run, bool) {
	if !si.hasParent {
		return nil, false
	}
	r, ok := reg.spans[si.parent]
	if !ok {
		return nil, false
	}
	reg.spans[si.key] = r
	r.members[si.key] = struct{}{}
	if si.parent == r.root {
		r.openChildren++
		r.directChildren[si.key] = struct{}{}
	}
	return r, true
}

// end records that a span ended. It returns the span's run, whether the span
// was an open direct child of the root, and false when the span is unmapped.
func (reg *registry) end(si spanInfo) (r *run, direct bool, ok bool) {
	r, ok = reg.spans[si.key]
	if !ok {
		return nil, false, false
	}
	switch {
	case si.key == r.root:
		r.rootEnded = true
	default:
		if _, open := r.directChildren[si.key]; open {
			delete(r.directChildren, si.key)
			r.openChildren--
			direct = true
		}
	}
	return r, direct, true
}

// purge forgets a run and every span mapped to it.
func (reg *registry) purge(r *run) {
	for key := range r.members {
		if reg.spans[key] == r {
			delete(reg.spans, key)
		}
	}
	delete(reg.runs, r)
	r.members = nil
	r.directChildren = nil
	r.rootSpan = nil
}

// tracked reports whether r has not been purged.
func (reg *registry) tracked(r *run) bool {
	_, ok := reg.runs[r]
	return ok
}

// len returns the number of open runs.
func (reg *registry) len() int {
	return len(reg.runs)
}

// reset drops all state.
func (reg *registry) reset() {
	reg.spans = make(map[spanKey]*run)
	reg.runs = make(map[*run]struct{})
}
