/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package report renders the outcome of an experiment run.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/uselemma/lemma-go/experiments"
)

// maxReasonLen bounds how much of a failure reason is shown in a cell.
const maxReasonLen = 60

// SuccessRate returns the fraction of test cases that produced a run, or 0
// when the experiment had no test cases.
func SuccessRate(s experiments.Summary) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total)
}

// WriteSummary writes a markdown table with one row per test case followed
// by the success rate. It reports whether the success rate is below
// threshold.
func WriteSummary(w io.Writer, s experiments.Summary, threshold float64) (bool, error) {
	rate := SuccessRate(s)
	below := rate < threshold

	var buf bytes.Buffer
	buf.WriteString("## Experiment Summary\n\n")

	if len(s.Results)+len(s.Failures) > 0 {
		table := newTable([]string{"Test Case", "Status", "Run ID / Reason"}, &buf)
		for _, r := range s.Results {
			_ = table.Append([]string{r.TestCaseID, "ok", r.RunID})
		}
		for _, f := range s.Failures {
			_ = table.Append([]string{f.TestCaseID, "❌ failed", truncate(f.Reason)})
		}
		if err := table.Render(); err != nil {
			return below, fmt.Errorf("rendering table: %w", err)
		}
		buf.WriteString("\n")
	}

	line := fmt.Sprintf("%d/%d test cases succeeded (%.1f%%)", s.Successful, s.Total, rate*100)
	if below {
		line = fmt.Sprintf("❌ %s, below %.1f%%", line, threshold*100)
	}
	buf.WriteString(line + "\n")

	_, err := w.Write(buf.Bytes())
	return below, err
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxReasonLen {
		return string(r[:maxReasonLen-1]) + "…"
	}
	return s
}
