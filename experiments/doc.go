/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package experiments runs an agent over the test cases of a Lemma
// experiment and records which run answered which case.
//
// A run of an experiment fetches the test cases, invokes the agent once per
// case with experiment mode set on the context, flushes the tracer provider
// so every run's spans have been exported, and then posts the run IDs back:
//
//	client, err := experiments.ClientFromEnv(ctx)
//	if err != nil {
//		return err
//	}
//	runner := experiments.NewRunner(client, client, tp)
//	summary, err := runner.Run(ctx, "exp-123", "baseline", experiments.FromWrapped(agent))
//
// Test cases can also be read from a local YAML or JSON file with FileSource.
package experiments
