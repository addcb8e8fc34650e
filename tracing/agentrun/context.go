/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agentrun

import (
	"context"
)

// contextKey is used for storing run state in context.Context
type contextKey string

const (
	experimentModeKey contextKey = "experiment_mode"
	runContextKey     contextKey = "run_context"
)

// WithExperimentMode marks every run started from ctx as an experiment.
func WithExperimentMode(ctx context.Context) context.Context {
	return context.WithValue(ctx, experimentModeKey, true)
}

// IsExperimentMode reports whether runs started from ctx are experiments.
func IsExperimentMode(ctx context.Context) bool {
	enabled, _ := ctx.Value(experimentModeKey).(bool)
	return enabled
}

func withRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey, rc)
}

// FromContext returns the run that ctx was derived from, if any.
func FromContext(ctx context.Context) (*RunContext, bool) {
	rc, ok := ctx.Value(runContextKey).(*RunContext)
	return rc, ok
}
