/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agentrun

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attributes recorded on run and tool call spans.
const (
	AgentNameKey         = attribute.Key("ai.agent.name")
	InputKey             = attribute.Key("ai.agent.input")
	OutputKey            = attribute.Key("ai.agent.output")
	GenerationResultsKey = attribute.Key("ai.agent.generation_results")
	IsExperimentKey      = attribute.Key("lemma.is_experiment")

	ToolNameKey   = attribute.Key("ai.tool.name")
	ToolIDKey     = attribute.Key("ai.tool.id")
	ToolInputKey  = attribute.Key("ai.tool.input")
	ToolOutputKey = attribute.Key("ai.tool.output")

	// ToolCallSpanName names the child span started by StartToolCall.
	ToolCallSpanName = "ai.agent.tool_call"
)

// RunContext is handed to a wrapped function for the duration of one run.
type RunContext struct {
	runID       string
	span        trace.Span
	tracer      trace.Tracer
	autoEndRoot bool
	startTime   time.Time
}

// RunID returns the identifier of this run.
func (rc *RunContext) RunID() string {
	return rc.runID
}

// Span returns the run's root span.
func (rc *RunContext) Span() trace.Span {
	return rc.span
}

// Complete records the run's output and ends the root span, unless the run
// was configured to have its root ended automatically once its children close.
func (rc *RunContext) Complete(result any) {
	rc.span.SetAttributes(OutputKey.String(encode(result)))
	if !rc.autoEndRoot {
		rc.span.End()
	}
}

// Fail records err on the root span and marks it failed. The span stays open,
// so several failures can be attributed to one run.
func (rc *RunContext) Fail(err error) {
	if err == nil {
		return
	}
	rc.span.RecordError(err)
	rc.span.SetStatus(codes.Error, err.Error())
}

// RecordGenerationResults attaches generation results to the root span.
func (rc *RunContext) RecordGenerationResults(results map[string]string) {
	rc.span.SetAttributes(GenerationResultsKey.String(encode(results)))
}

// RecordTokenUsage records model and token usage on the root span.
func (rc *RunContext) RecordTokenUsage(model string, inputTokens, outputTokens int64) {
	rc.span.SetAttributes(
		attribute.String("gen_ai.request.model", model),
		attribute.Int64("gen_ai.usage.input_tokens", inputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", outputTokens),
	)
}

// ToolCall is one tool invocation within a run.
type ToolCall struct {
	ID        string
	Name      string
	StartTime time.Time
	span      trace.Span
}

// StartToolCall starts a child span for a tool invocation under ctx, which
// should be the context the wrapped function received or one derived from it.
func (rc *RunContext) StartToolCall(ctx context.Context, id, name string, params map[string]any) (context.Context, *ToolCall) {
	attrs := []attribute.KeyValue{
		ToolNameKey.String(name),
		ToolIDKey.String(id),
	}
	if len(params) > 0 {
		attrs = append(attrs, ToolInputKey.String(encode(params)))
	}
	ctx, span := rc.tracer.Start(ctx, ToolCallSpanName, trace.WithAttributes(attrs...))
	return ctx, &ToolCall{
		ID:        id,
		Name:      name,
		StartTime: time.Now(),
		span:      span,
	}
}

// Complete records the tool's result or error and ends its span.
func (tc *ToolCall) Complete(result any, err error) {
	if err != nil {
		tc.span.RecordError(err)
		tc.span.SetStatus(codes.Error, err.Error())
	} else {
		if result != nil {
			tc.span.SetAttributes(ToolOutputKey.String(encode(result)))
		}
		tc.span.SetStatus(codes.Ok, "")
	}
	tc.span.End()
}

// encode renders v as JSON, falling back to its default formatting.
func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
