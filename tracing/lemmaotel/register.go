/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package lemmaotel

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"

	"github.com/uselemma/lemma-go/tracing/runbatch"
)

const userAgent = "lemma-go"

// NewExporter creates the OTLP exporter described by cfg.
func NewExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Protocol {
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpointURL(cfg.BaseURL),
			otlptracegrpc.WithHeaders(cfg.Headers()),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent(userAgent)),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP gRPC exporter: %w", err)
		}
		return exporter, nil

	default:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpointURL(cfg.TracesEndpoint()),
			otlptracehttp.WithHeaders(cfg.Headers()),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP HTTP exporter: %w", err)
		}
		return exporter, nil
	}
}

// Option configures Register.
type Option func(*registerOptions)

type registerOptions struct {
	exporter      sdktrace.SpanExporter
	processorOpts []runbatch.Option
	providerOpts  []sdktrace.TracerProviderOption
	skipGlobal    bool
}

// WithExporter replaces the OTLP exporter built from the configuration.
func WithExporter(exporter sdktrace.SpanExporter) Option {
	return func(o *registerOptions) {
		o.exporter = exporter
	}
}

// WithProcessorOptions configures the run batch processor.
func WithProcessorOptions(opts ...runbatch.Option) Option {
	return func(o *registerOptions) {
		o.processorOpts = append(o.processorOpts, opts...)
	}
}

// WithProviderOptions passes additional options to the tracer provider.
func WithProviderOptions(opts ...sdktrace.TracerProviderOption) Option {
	return func(o *registerOptions) {
		o.providerOpts = append(o.providerOpts, opts...)
	}
}

// WithoutGlobal leaves the global tracer provider untouched.
func WithoutGlobal() Option {
	return func(o *registerOptions) {
		o.skipGlobal = true
	}
}

// Register builds a tracer provider that batches spans per run and ships them
// to Lemma, installs it as the global tracer provider and returns it. Callers
// should Shutdown the provider before exiting so that open runs are flushed.
func Register(ctx context.Context, cfg Config, opts ...Option) (*sdktrace.TracerProvider, error) {
	o := registerOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	exporter := o.exporter
	if exporter == nil {
		var err error
		if exporter, err = NewExporter(ctx, cfg); err != nil {
			return nil, err
		}
	}

	processor := runbatch.New(exporter, append([]runbatch.Option{
		runbatch.WithLogger(clog.FromContext(ctx)),
	}, o.processorOpts...)...)

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
	)

	provider := sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(res),
	}, o.providerOpts...)...)

	if !o.skipGlobal {
		otel.SetTracerProvider(provider)
	}

	clog.FromContext(ctx).With("protocol", cfg.Protocol).
		With("service", cfg.ServiceName).
		Info("Registered Lemma tracer provider")
	return provider, nil
}
