/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runbatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	triggerComplete = "complete"
	triggerFlush    = "flush"
)

var (
	runsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lemma_runbatch_runs_started_total",
			Help: "Total number of runs registered by the run batch processor",
		},
	)

	runsExported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lemma_runbatch_runs_exported_total",
			Help: "Total number of run batches handed to the exporter",
		},
		[]string{"trigger"},
	)

	spansExported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lemma_runbatch_spans_exported_total",
			Help: "Total number of spans handed to the exporter",
		},
	)

	spansUnmapped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lemma_runbatch_spans_unmapped_total",
			Help: "Total number of child spans whose parent was not part of a tracked run",
		},
	)

	spansFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lemma_runbatch_spans_filtered_total",
			Help: "Total number of spans left out of a batch because of their instrumentation scope",
		},
		[]string{"scope"},
	)

	exportErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lemma_runbatch_export_errors_total",
			Help: "Total number of failed batch exports",
		},
		[]string{"trigger"},
	)

	openRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lemma_runbatch_open_runs",
			Help: "Number of runs currently tracked and not yet exported",
		},
	)
)
