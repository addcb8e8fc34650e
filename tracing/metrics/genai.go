/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// DefaultMeterName is the meter used by the LLM client instrumentation.
const DefaultMeterName = "lemma.instrument"

// GenAI provides OpenTelemetry metrics for LLM API calls.
// It includes counters for token usage (input and output) and requests,
// with support for graceful degradation if metric creation fails.
type GenAI struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	requests     metric.Int64Counter
	attrEnricher AttributeEnricher
}

// Option configures a GenAI instance.
type Option func(*options)

type options struct {
	provider metric.MeterProvider
	enricher AttributeEnricher
}

// WithMeterProvider sets the provider counters are created from. The global
// provider is used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.provider = mp
	}
}

// WithAttributeEnricher sets an enricher that is called before recording each
// metric to add contextual attributes.
func WithAttributeEnricher(enricher AttributeEnricher) Option {
	return func(o *options) {
		o.enricher = enricher
	}
}

// NewGenAI creates a new GenAI metrics instance with the specified meter name.
// If any counter fails to initialize, a warning is logged and a no-op counter
// is used instead.
func NewGenAI(meterName string, opts ...Option) *GenAI {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.provider == nil {
		o.provider = otel.GetMeterProvider()
	}
	meter := o.provider.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	inputTokens, err := meter.Int64Counter("gen_ai.client.token.input",
		metric.WithDescription("The number of input tokens sent to the model"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create input tokens counter, metrics will be disabled", "error", err, "meter", meterName)
		inputTokens = noop.Int64Counter{}
	}

	outputTokens, err := meter.Int64Counter("gen_ai.client.token.output",
		metric.WithDescription("The number of output tokens generated by the model"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create output tokens counter, metrics will be disabled", "error", err, "meter", meterName)
		outputTokens = noop.Int64Counter{}
	}

	requests, err := meter.Int64Counter("gen_ai.client.requests",
		metric.WithDescription("The number of LLM API requests made"),
		metric.WithUnit("{requests}"))
	if err != nil {
		slog.Warn("Failed to create request counter, metrics will be disabled", "error", err, "meter", meterName)
		requests = noop.Int64Counter{}
	}

	return &GenAI{
		inputTokens:  inputTokens,
		outputTokens: outputTokens,
		requests:     requests,
		attrEnricher: o.enricher,
	}
}

func (m *GenAI) baseAttributes(ctx context.Context, system, model string, attrs []attribute.KeyValue) []attribute.KeyValue {
	baseAttrs := []attribute.KeyValue{
		attribute.String("gen_ai.system", system),
		attribute.String("gen_ai.request.model", model),
	}
	if m.attrEnricher != nil {
		baseAttrs = m.attrEnricher(ctx, baseAttrs)
	}
	return append(baseAttrs, attrs...)
}

// RecordTokens records input and output token usage for one model call.
func (m *GenAI) RecordTokens(ctx context.Context, system, model string, inputTokens, outputTokens int64, attrs ...attribute.KeyValue) {
	baseAttrs := m.baseAttributes(ctx, system, model, attrs)
	m.inputTokens.Add(ctx, inputTokens, metric.WithAttributes(baseAttrs...))
	m.outputTokens.Add(ctx, outputTokens, metric.WithAttributes(baseAttrs...))
}

// RecordRequest records one API request and whether it failed.
func (m *GenAI) RecordRequest(ctx context.Context, system, model string, failed bool, attrs ...attribute.KeyValue) {
	baseAttrs := m.baseAttributes(ctx, system, model, attrs)
	baseAttrs = append(baseAttrs, attribute.Bool("error", failed))
	m.requests.Add(ctx, 1, metric.WithAttributes(baseAttrs...))
}
