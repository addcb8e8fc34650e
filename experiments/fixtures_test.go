/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package experiments

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		file       string
		contents   string
		experiment string
		want       []TestCase
		wantErr    bool
	}{{
		name: "yaml list",
		file: "cases.yaml",
		contents: `
- id: tc-1
  inputData:
    prompt: What is the capital of France?
- id: tc-2
  inputData:
    prompt: Name a prime number.
    temperature: 0.5
`,
		want: []TestCase{
			{ID: "tc-1", InputData: map[string]any{"prompt": "What is the capital of France?"}},
			{ID: "tc-2", InputData: map[string]any{"prompt": "Name a prime number.", "temperature": 0.5}},
		},
	}, {
		name:     "json list",
		file:     "cases.json",
		contents: `[{"id": "tc-1", "inputData": {"prompt": "hi"}}]`,
		want:     []TestCase{{ID: "tc-1", InputData: map[string]any{"prompt": "hi"}}},
	}, {
		name: "keyed by experiment",
		file: "cases.yaml",
		contents: `
exp-1:
  - id: a
    inputData: {prompt: one}
exp-2:
  - id: b
    inputData: {prompt: two}
`,
		experiment: "exp-2",
		want:       []TestCase{{ID: "b", InputData: map[string]any{"prompt": "two"}}},
	}, {
		name:       "unknown experiment",
		file:       "cases.yaml",
		contents:   "exp-1: []\n",
		experiment: "exp-9",
		wantErr:    true,
	}, {
		name: "empty file",
		file: "cases.yaml",
	}, {
		name:     "missing id",
		file:     "cases.yaml",
		contents: "- inputData: {prompt: hi}\n",
		wantErr:  true,
	}, {
		name:     "duplicate id",
		file:     "cases.yaml",
		contents: "- id: a\n- id: a\n",
		wantErr:  true,
	}, {
		name:     "scalar",
		file:     "cases.yaml",
		contents: "nope\n",
		wantErr:  true,
	}, {
		name:     "malformed",
		file:     "cases.yaml",
		contents: "- id: [\n",
		wantErr:  true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.contents), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			got, err := FileSource{Path: path}.GetTestCases(context.Background(), tt.experiment)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetTestCases: got error = %v, wanted error = %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("GetTestCases: (-want, +got) = %s", diff)
			}
		})
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	t.Parallel()
	src := FileSource{Path: filepath.Join(t.TempDir(), "absent.yaml")}
	if _, err := src.GetTestCases(context.Background(), "exp-1"); err == nil {
		t.Error("GetTestCases: got = nil, wanted error")
	}
}
