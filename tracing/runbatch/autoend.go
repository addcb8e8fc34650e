/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runbatch

import (
	"context"
	"sync"
)

type autoEndKey struct{}

// AutoEnd arms automatic ending of a run root after the root has started. It is
// bound to the run when the root is started with a context from WithAutoEnd.
type AutoEnd struct {
	mu sync.Mutex
	p  *Processor
	r  *run
}

// WithAutoEnd returns a context that binds the returned AutoEnd to the run root
// started from it. Only the first Processor to see the root binds it.
func WithAutoEnd(ctx context.Context) (context.Context, *AutoEnd) {
	a := &AutoEnd{}
	return context.WithValue(ctx, autoEndKey{}, a), a
}

func autoEndFromContext(ctx context.Context) *AutoEnd {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(autoEndKey{}).(*AutoEnd)
	return a
}

func (a *AutoEnd) bind(p *Processor, r *run) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.p == nil {
		a.p, a.r = p, r
	}
}

// Arm lets the processor end the root once its open direct children have
// ended, and ends it right away when none are open. It returns false when no
// Processor tracks the run, in which case the caller must end the root itself.
func (a *AutoEnd) Arm() bool {
	if a == nil {
		return false
	}
	a.mu.Lock()
	p, r := a.p, a.r
	a.mu.Unlock()
	if p == nil {
		return false
	}
	return p.arm(r)
}
