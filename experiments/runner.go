/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package experiments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/uselemma/lemma-go/tracing/agentrun"
)

// Agent answers one test case and returns the ID of the run that traced it.
// The ctx it receives is in experiment mode.
type Agent func(ctx context.Context, input map[string]any) (runID string, err error)

// FromWrapped adapts a function returned by agentrun.Wrap to an Agent. Test
// case inputs are converted to In through JSON.
func FromWrapped[In, Out any](fn func(context.Context, In) (agentrun.Result[Out], error)) Agent {
	return func(ctx context.Context, input map[string]any) (string, error) {
		in, err := convertInput[In](input)
		if err != nil {
			return "", err
		}
		res, err := fn(ctx, in)
		if err != nil {
			return "", err
		}
		return res.RunID, nil
	}
}

func convertInput[In any](input map[string]any) (In, error) {
	var in In
	if m, ok := any(input).(In); ok {
		return m, nil
	}
	b, err := json.Marshal(input)
	if err != nil {
		return in, fmt.Errorf("encoding input: %w", err)
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return in, fmt.Errorf("decoding input into %T: %w", in, err)
	}
	return in, nil
}

// Runner runs agents over experiments.
type Runner struct {
	source   Source
	recorder Recorder
	flusher  Flusher
}

// NewRunner returns a runner that reads test cases from source, flushes
// spans through flusher before recording results with recorder. A nil
// flusher skips the flush.
func NewRunner(source Source, recorder Recorder, flusher Flusher) *Runner {
	return &Runner{source: source, recorder: recorder, flusher: flusher}
}

type runOptions struct {
	concurrency int
}

// RunOption configures Run.
type RunOption func(*runOptions)

// WithConcurrency bounds how many test cases run at once. n <= 0 runs every
// case at once.
func WithConcurrency(n int) RunOption {
	return func(o *runOptions) {
		o.concurrency = n
	}
}

// Run invokes agent on every test case of experimentID and records the
// resulting run IDs under strategyName. A test case whose agent call fails
// or returns no run ID is left out of the results; it does not fail the run.
func (r *Runner) Run(ctx context.Context, experimentID, strategyName string, agent Agent, opts ...RunOption) (Summary, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	log := clog.FromContext(ctx).With("experiment", experimentID).With("strategy", strategyName)

	cases, err := r.source.GetTestCases(ctx, experimentID)
	if err != nil {
		return Summary{}, fmt.Errorf("fetching test cases: %w", err)
	}
	total := len(cases)
	log.With("test_cases", total).With("concurrency", o.concurrency).Info("Running experiment")

	start := time.Now()
	col := newCollector(experimentID, strategyName, total)
	caseCtx := clog.WithLogger(agentrun.WithExperimentMode(ctx), log)

	// A plain group: one failed case must not cancel the others.
	var g errgroup.Group
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for i, tc := range cases {
		g.Go(func() error {
			runCase(caseCtx, col, i, tc, agent, total)
			return nil
		})
	}
	_ = g.Wait()

	results := col.Results()
	summary := Summary{
		Successful: len(results),
		Total:      total,
		Results:    results,
		Failures:   col.Failures(),
	}
	log.With("successful", summary.Successful).
		With("total", total).
		With("duration", time.Since(start)).
		Info("Experiment cases finished")

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if r.flusher != nil {
		if err := r.flusher.ForceFlush(ctx); err != nil {
			log.Warn("Failed to flush traces before recording results", "error", err)
		}
	}

	if err := r.recorder.RecordResults(ctx, experimentID, strategyName, summary.Results); err != nil {
		r.countRun(experimentID, strategyName, false)
		return summary, fmt.Errorf("recording results: %w", err)
	}
	r.countRun(experimentID, strategyName, true)
	log.Info("Recorded experiment results")
	return summary, nil
}

func (*Runner) countRun(experimentID, strategyName string, recorded bool) {
	runsCounter.With(prometheus.Labels{
		"experiment": experimentID,
		"strategy":   strategyName,
		"recorded":   strconv.FormatBool(recorded),
	}).Inc()
}

func runCase(ctx context.Context, col *collector, i int, tc TestCase, agent Agent, total int) {
	log := clog.FromContext(ctx).With("test_case", tc.ID)

	var done int
	runID, err := callAgent(ctx, agent, tc.InputData)
	switch {
	case err != nil:
		done = col.fail(i, outcomeFailed, Failure{TestCaseID: tc.ID, Reason: err.Error()})
		log.With("completed", done).With("total", total).Warn("Test case failed", "error", err)
	case runID == "":
		done = col.fail(i, outcomeMissingRunID, Failure{TestCaseID: tc.ID, Reason: "agent returned no run ID"})
		log.With("completed", done).With("total", total).Warn("Test case returned no run ID")
	default:
		done = col.succeed(i, Result{RunID: runID, TestCaseID: tc.ID})
		log.With("completed", done).With("total", total).With("run_id", runID).Info("Test case completed")
	}
}

var errSkipped = errors.New("skipped")

// callAgent converts a panic into an error.
func callAgent(ctx context.Context, agent Agent, input map[string]any) (runID string, err error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", errSkipped, err)
	}
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("agent panicked: %v", v)
		}
	}()
	return agent(ctx, input)
}
