/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agentrun

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/uselemma/lemma-go/tracing/runbatch"
)

// TracerName is the instrumentation scope of run spans.
const TracerName = "lemma"

// Func is an agent function traced by Wrap. The ctx it receives carries the
// run's root span.
type Func[In, Out any] func(ctx context.Context, run *RunContext, input In) (Out, error)

// Result is returned by a wrapped function.
type Result[Out any] struct {
	Output Out
	RunID  string
	// Span is the run's root span. It is still open when the run was
	// configured with WithAutoEndRoot and direct children were open at return.
	Span trace.Span
}

type config struct {
	autoEndRoot bool
	experiment  bool
	provider    trace.TracerProvider
	newRunID    func() string
}

// Option configures Wrap.
type Option func(*config)

// WithAutoEndRoot leaves the root span open when the wrapped function returns
// successfully while direct children of the root are still open. The run batch
// processor ends the root once the last of them ends. Children that start and
// end while the function runs never end the root early. When no children are
// open at return, or no run batch processor tracks the run, the root is ended
// before the wrapped call returns.
func WithAutoEndRoot() Option {
	return func(c *config) {
		c.autoEndRoot = true
	}
}

// WithExperiment flags every run of the wrapped function as an experiment.
func WithExperiment(enabled bool) Option {
	return func(c *config) {
		c.experiment = enabled
	}
}

// WithTracerProvider sets the provider run spans are created with. By default
// the global provider at call time is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.provider = tp
	}
}

// WithRunIDGenerator overrides how run IDs are generated.
func WithRunIDGenerator(gen func() string) Option {
	return func(c *config) {
		if gen != nil {
			c.newRunID = gen
		}
	}
}

// Wrap returns a function that traces each call of fn as a new run named
// agentName.
func Wrap[In, Out any](agentName string, fn Func[In, Out], opts ...Option) func(context.Context, In) (Result[Out], error) {
	cfg := config{newRunID: uuid.NewString}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, input In) (Result[Out], error) {
		provider := cfg.provider
		if provider == nil {
			provider = otel.GetTracerProvider()
		}
		tracer := provider.Tracer(TracerName)

		runID := cfg.newRunID()
		attrs := []attribute.KeyValue{
			AgentNameKey.String(agentName),
			runbatch.RunIDKey.String(runID),
			InputKey.String(encode(input)),
			IsExperimentKey.Bool(cfg.experiment || IsExperimentMode(ctx)),
		}

		startCtx := ctx
		var autoEnd *runbatch.AutoEnd
		if cfg.autoEndRoot {
			startCtx, autoEnd = runbatch.WithAutoEnd(ctx)
		}
		_, span := tracer.Start(startCtx, runbatch.RunSpanName,
			trace.WithNewRoot(),
			trace.WithAttributes(attrs...),
		)
		runCtx := trace.ContextWithSpan(ctx, span)
		rc := &RunContext{
			runID:       runID,
			span:        span,
			tracer:      tracer,
			autoEndRoot: cfg.autoEndRoot,
			startTime:   time.Now(),
		}
		runCtx = withRunContext(runCtx, rc)

		log := clog.FromContext(ctx).With("agent", agentName).With("run_id", runID)
		res := Result[Out]{RunID: runID, Span: span}

		defer func() {
			if v := recover(); v != nil {
				err := fmt.Errorf("panic: %v", v)
				span.RecordError(err, trace.WithStackTrace(true))
				span.SetStatus(codes.Error, err.Error())
				span.End()
				log.Error("Agent run panicked", "error", err)
				panic(v)
			}
		}()

		out, err := fn(runCtx, rc, input)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			log.With("duration_ms", time.Since(rc.startTime).Milliseconds()).
				Warn("Agent run failed", "error", err)
			return res, err
		}

		res.Output = out
		if cfg.autoEndRoot {
			span.SetAttributes(runbatch.AutoEndRootKey.Bool(true))
			if !autoEnd.Arm() {
				span.End()
			}
		} else {
			span.End()
		}
		log.With("duration_ms", time.Since(rc.startTime).Milliseconds()).Info("Agent run completed")
		return res, nil
	}
}
