/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package experiments

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileSource reads test cases from a local file, for running an experiment
// without fetching its cases from the API. The file holds either a list of
// test cases or a mapping from experiment ID to such a list. Since JSON is
// a subset of YAML, both formats are accepted.
//
//	- id: tc-1
//	  inputData:
//	    prompt: What is the capital of France?
type FileSource struct {
	Path string
}

var _ Source = FileSource{}

// GetTestCases implements Source. When the file is keyed by experiment,
// only the cases of experimentID are returned.
func (f FileSource) GetTestCases(_ context.Context, experimentID string) ([]TestCase, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading test cases: %w", err)
	}
	return parseTestCases(data, experimentID)
}

func parseTestCases(data []byte, experimentID string) ([]TestCase, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parsing test cases: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var cases []TestCase
		if err := root.Decode(&cases); err != nil {
			return nil, fmt.Errorf("decoding test cases: %w", err)
		}
		return cases, validateTestCases(cases)

	case yaml.MappingNode:
		var byExperiment map[string][]TestCase
		if err := root.Decode(&byExperiment); err != nil {
			return nil, fmt.Errorf("decoding test cases: %w", err)
		}
		cases, ok := byExperiment[experimentID]
		if !ok {
			return nil, fmt.Errorf("no test cases for experiment %q", experimentID)
		}
		return cases, validateTestCases(cases)

	default:
		return nil, fmt.Errorf("test cases must be a list or a mapping of experiment ID to list, got %s", root.Tag)
	}
}

func validateTestCases(cases []TestCase) error {
	seen := make(map[string]struct{}, len(cases))
	for i, tc := range cases {
		if tc.ID == "" {
			return fmt.Errorf("test case %d has no id", i)
		}
		if _, dup := seen[tc.ID]; dup {
			return fmt.Errorf("duplicate test case id %q", tc.ID)
		}
		seen[tc.ID] = struct{}{}
	}
	return nil
}
