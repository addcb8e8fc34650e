/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package experiments

import "context"

// TestCase is a single input of an experiment.
type TestCase struct {
	ID        string         `json:"id" yaml:"id"`
	InputData map[string]any `json:"inputData" yaml:"inputData"`
}

// Result links a test case to the run that answered it.
type Result struct {
	RunID      string `json:"runId"`
	TestCaseID string `json:"testCaseId"`
}

// Failure describes a test case that produced no result.
type Failure struct {
	TestCaseID string `json:"testCaseId"`
	Reason     string `json:"reason"`
}

// Summary is the outcome of Runner.Run.
type Summary struct {
	Successful int `json:"successful"`
	Total      int `json:"total"`

	// Results are in test case order.
	Results  []Result  `json:"results,omitempty"`
	Failures []Failure `json:"failures,omitempty"`
}

// Source provides the test cases of an experiment.
type Source interface {
	GetTestCases(ctx context.Context, experimentID string) ([]TestCase, error)
}

// Recorder stores the results of an experiment run under a strategy name.
type Recorder interface {
	RecordResults(ctx context.Context, experimentID, strategyName string, results []Result) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, experimentID, strategyName string, results []Result) error

// RecordResults implements Recorder.
func (f RecorderFunc) RecordResults(ctx context.Context, experimentID, strategyName string, results []Result) error {
	return f(ctx, experimentID, strategyName, results)
}

// Flusher exports buffered spans. *trace.TracerProvider from the OTel SDK
// implements it.
type Flusher interface {
	ForceFlush(ctx context.Context) error
}
