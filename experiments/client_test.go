/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package experiments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/uselemma/lemma-go/experiments/retry"
)

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 3, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestClientGetTestCases(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method: got = %s, wanted = GET", r.Method)
		}
		if got, want := r.URL.Path, "/experiments/exp-1/test-cases"; got != want {
			t.Errorf("path: got = %s, wanted = %s", got, want)
		}
		if got, want := r.Header.Get("Authorization"), "Bearer secret"; got != want {
			t.Errorf("Authorization: got = %q, wanted = %q", got, want)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"tc-1","inputData":{"query":"hello"}},{"id":"tc-2","inputData":{"query":"world"}}]`))
	}))
	t.Cleanup(srv.Close)

	// Trailing slashes on the base URL are dropped.
	c, err := NewClient("secret", srv.URL+"/")
	require.NoError(t, err)

	got, err := c.GetTestCases(context.Background(), "exp-1")
	require.NoError(t, err)

	want := []TestCase{
		{ID: "tc-1", InputData: map[string]any{"query": "hello"}},
		{ID: "tc-2", InputData: map[string]any{"query": "world"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetTestCases: (-want, +got) = %s", diff)
	}
}

func TestClientRecordResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		results []Result
		want    string
	}{{
		name:    "results",
		results: []Result{{RunID: "run-1", TestCaseID: "tc-1"}, {RunID: "run-3", TestCaseID: "tc-3"}},
		want:    `{"strategyName":"baseline","results":[{"runId":"run-1","testCaseId":"tc-1"},{"runId":"run-3","testCaseId":"tc-3"}]}`,
	}, {
		name: "no results",
		want: `{"strategyName":"baseline","results":[]}`,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var body json.RawMessage
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method: got = %s, wanted = POST", r.Method)
				}
				if got, want := r.URL.Path, "/experiments/exp-1/results"; got != want {
					t.Errorf("path: got = %s, wanted = %s", got, want)
				}
				if got, want := r.Header.Get("Content-Type"), "application/json"; got != want {
					t.Errorf("Content-Type: got = %q, wanted = %q", got, want)
				}
				if got, want := r.Header.Get("Authorization"), "Bearer secret"; got != want {
					t.Errorf("Authorization: got = %q, wanted = %q", got, want)
				}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decoding body: %v", err)
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			t.Cleanup(srv.Close)

			c, err := NewClient("secret", srv.URL)
			require.NoError(t, err)
			require.NoError(t, c.RecordResults(context.Background(), "exp-1", "baseline", tt.results))

			if got := string(body); got != tt.want {
				t.Errorf("body: got = %s, wanted = %s", got, tt.want)
			}
		})
	}
}

func TestClientRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient("secret", srv.URL, WithRetry(fastRetry()))
	require.NoError(t, err)

	cases, err := c.GetTestCases(context.Background(), "exp-1")
	require.NoError(t, err)
	if len(cases) != 0 {
		t.Errorf("cases: got = %v, wanted none", cases)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls: got = %d, wanted = 3", got)
	}
}

func TestClientStatusError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "experiment not found", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient("secret", srv.URL, WithRetry(fastRetry()))
	require.NoError(t, err)

	_, err = c.GetTestCases(context.Background(), "missing")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error: got = %v, wanted a *StatusError", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("status: got = %d, wanted = %d", se.StatusCode, http.StatusNotFound)
	}
	if se.Body != "experiment not found" {
		t.Errorf("body: got = %q, wanted = %q", se.Body, "experiment not found")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls: got = %d, wanted = 1", got)
	}
}

func TestClientRetriesExhausted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient("secret", srv.URL, WithRetry(fastRetry()))
	require.NoError(t, err)

	err = c.RecordResults(context.Background(), "exp-1", "baseline", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("error: got = %v, wanted a 503 *StatusError", err)
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	if _, err := NewClient("", ""); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("missing key: got = %v, wanted = %v", err, ErrMissingAPIKey)
	}
	if _, err := NewClient("k", "", WithRetry(retry.Config{MaxRetries: -1})); err == nil {
		t.Error("invalid retry config: got = nil, wanted error")
	}

	c, err := NewClient("k", "")
	require.NoError(t, err)
	if got, want := c.experimentURL("exp/1", "results"), "https://api.uselemma.ai/experiments/exp%2F1/results"; got != want {
		t.Errorf("experimentURL: got = %s, wanted = %s", got, want)
	}
}

func TestStatusErrorRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{&StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{&StatusError{StatusCode: http.StatusInternalServerError}, true},
		{&StatusError{StatusCode: http.StatusBadRequest}, false},
		{&StatusError{StatusCode: http.StatusUnauthorized}, false},
		{errors.New("connection reset"), true},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.err); got != tt.want {
			t.Errorf("isRetryable(%v): got = %v, wanted = %v", tt.err, got, tt.want)
		}
	}
}
