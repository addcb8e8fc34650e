/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runbatch

import (
	"slices"
	"time"

	"github.com/chainguard-dev/clog"
)

// DefaultExportTimeout bounds exports triggered by run completion.
const DefaultExportTimeout = 30 * time.Second

// Option configures a Processor.
type Option func(*Processor)

// WithDeniedScopes replaces the instrumentation scopes whose spans are left out
// of exported batches. Spans from these scopes are still tracked.
func WithDeniedScopes(scopes ...string) Option {
	return func(p *Processor) {
		p.deniedScopes = slices.Clone(scopes)
	}
}

// WithRunIDGenerator sets the function used to create run identifiers for
// root spans that do not carry one.
func WithRunIDGenerator(gen func() string) Option {
	return func(p *Processor) {
		if gen != nil {
			p.newRunID = gen
		}
	}
}

// WithExportTimeout bounds each export triggered by run completion.
func WithExportTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.exportTimeout = d
		}
	}
}

// WithLogger sets the logger used for export failures.
func WithLogger(logger *clog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}
