/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package instrument

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/uselemma/lemma-go/tracing/metrics"
)

// ScopeName is the instrumentation scope of LLM call spans.
const ScopeName = "lemma.instrument"

// Option configures the instrumentation.
type Option func(*config)

type config struct {
	provider trace.TracerProvider
	metrics  *metrics.GenAI
}

// WithTracerProvider sets the provider spans are created with. By default the
// global provider at request time is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.provider = tp
	}
}

// WithMetrics sets where token usage and request counts are recorded.
func WithMetrics(m *metrics.GenAI) Option {
	return func(c *config) {
		c.metrics = m
	}
}

func newConfig(opts []Option) config {
	c := config{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewGenAI(metrics.DefaultMeterName)
	}
	return c
}

func (c config) tracer() trace.Tracer {
	provider := c.provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return provider.Tracer(ScopeName)
}
