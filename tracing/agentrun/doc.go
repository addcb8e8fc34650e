/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package agentrun wraps agent functions so that every invocation is traced as
one run.

# Overview

Wrap produces a function that, on each call, starts a new top-level
"ai.agent.run" span, tags it with the agent name, a fresh run ID, the
JSON-encoded input and the experiment flag, and calls the wrapped function
with a context that carries the span. Spans started from that context become
children of the run, so a runbatch.Processor exports the whole tree as one
batch.

The wrapped function receives a RunContext for signaling:

  - Complete records the output and ends the run span.
  - Fail records an error on the run span without ending it.
  - RecordGenerationResults attaches arbitrary generation results.
  - StartToolCall starts a child span for one tool invocation.

If the wrapped function returns an error or panics, the wrapper records it on
the run span, ends the span and returns the same error (or re-panics).

# Usage

	agent := agentrun.Wrap("summarizer",
		func(ctx context.Context, run *agentrun.RunContext, in Request) (string, error) {
			out, err := summarize(ctx, in)
			if err != nil {
				return "", err
			}
			run.Complete(out)
			return out, nil
		})

	res, err := agent(ctx, Request{Text: "..."})
	fmt.Println(res.RunID, res.Output)

# Experiment mode

Runs are flagged as experiments either with the WithExperiment option or by
calling the wrapped function with a context returned by WithExperimentMode.
*/
package agentrun
