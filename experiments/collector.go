/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package experiments

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// collector gathers the outcome of each test case of a run. Outcomes are
// kept in test case order regardless of the order cases finish in.
type collector struct {
	experiment, strategy string

	mu       sync.Mutex
	results  []*Result
	failures []*Failure
	done     int
}

func newCollector(experiment, strategy string, total int) *collector {
	return &collector{
		experiment: experiment,
		strategy:   strategy,
		results:    make([]*Result, total),
		failures:   make([]*Failure, total),
	}
}

func (c *collector) succeed(i int, r Result) int {
	c.count(outcomeSucceeded)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[i] = &r
	c.done++
	return c.done
}

func (c *collector) fail(i int, outcome string, f Failure) int {
	c.count(outcome)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[i] = &f
	c.done++
	return c.done
}

func (c *collector) count(outcome string) {
	casesCounter.With(prometheus.Labels{
		"experiment": c.experiment,
		"strategy":   c.strategy,
		"outcome":    outcome,
	}).Inc()
}

// Results returns a copy of the successful results.
func (c *collector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, 0, len(c.results))
	for _, r := range c.results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// Failures returns a copy of the failures.
func (c *collector) Failures() []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Failure
	for _, f := range c.failures {
		if f != nil {
			out = append(out, *f)
		}
	}
	return out
}
