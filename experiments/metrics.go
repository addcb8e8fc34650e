/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package experiments

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a single test case.
const (
	outcomeSucceeded    = "succeeded"
	outcomeFailed       = "failed"
	outcomeMissingRunID = "missing_run_id"
)

var (
	casesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lemma_experiment_cases_total",
			Help: "Total number of experiment test cases run, by outcome",
		},
		[]string{"experiment", "strategy", "outcome"},
	)

	runsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lemma_experiment_runs_total",
			Help: "Total number of experiment runs, by whether their results were recorded",
		},
		[]string{"experiment", "strategy", "recorded"},
	)
)
