/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package experiments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/uselemma/lemma-go/experiments/retry"
	"github.com/uselemma/lemma-go/tracing/lemmaotel"
)

// ErrMissingAPIKey is returned by NewClient when no API key is given.
var ErrMissingAPIKey = errors.New("missing API key; set LEMMA_API_KEY")

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("lemma API returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("lemma API returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// Anything other than a status error is a transport failure, unless the
	// caller gave up.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Client talks to the Lemma experiments API. It implements Source and
// Recorder.
type Client struct {
	baseURL string
	http    *http.Client
	retry   retry.Config
}

var (
	_ Source   = (*Client)(nil)
	_ Recorder = (*Client)(nil)
)

type clientOptions struct {
	base  http.RoundTripper
	retry retry.Config
}

// ClientOption configures NewClient.
type ClientOption func(*clientOptions)

// WithTransport sets the transport requests are sent over. Authentication and
// tracing are layered on top of it.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) {
		o.base = rt
	}
}

// WithRetry overrides the retry policy for 429 and 5xx responses.
func WithRetry(cfg retry.Config) ClientOption {
	return func(o *clientOptions) {
		o.retry = cfg
	}
}

// NewClient returns a client for the API at baseURL, authenticating with
// apiKey. An empty baseURL selects the hosted API.
func NewClient(apiKey, baseURL string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if baseURL == "" {
		baseURL = lemmaotel.DefaultBaseURL
	}

	o := clientOptions{base: http.DefaultTransport, retry: retry.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: &oauth2.Transport{
				Source: ts,
				Base:   otelhttp.NewTransport(o.base),
			},
		},
		retry: o.retry,
	}, nil
}

// ClientFromEnv builds a client from LEMMA_API_KEY and LEMMA_API_URL.
func ClientFromEnv(ctx context.Context, opts ...ClientOption) (*Client, error) {
	cfg, err := lemmaotel.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewClient(cfg.APIKey, cfg.BaseURL, opts...)
}

// GetTestCases fetches the test cases of an experiment.
func (c *Client) GetTestCases(ctx context.Context, experimentID string) ([]TestCase, error) {
	return retry.Do(ctx, c.retry, "get test cases", isRetryable, func(ctx context.Context) ([]TestCase, error) {
		var cases []TestCase
		if err := c.do(ctx, http.MethodGet, c.experimentURL(experimentID, "test-cases"), nil, &cases); err != nil {
			return nil, err
		}
		return cases, nil
	})
}

type recordRequest struct {
	StrategyName string   `json:"strategyName"`
	Results      []Result `json:"results"`
}

// RecordResults posts the results of a run of an experiment.
func (c *Client) RecordResults(ctx context.Context, experimentID, strategyName string, results []Result) error {
	if results == nil {
		results = []Result{}
	}
	body, err := json.Marshal(recordRequest{StrategyName: strategyName, Results: results})
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}

	_, err = retry.Do(ctx, c.retry, "record results", isRetryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodPost, c.experimentURL(experimentID, "results"), body, nil)
	})
	return err
}

func (c *Client) experimentURL(experimentID, resource string) string {
	return c.baseURL + "/experiments/" + url.PathEscape(experimentID) + "/" + resource
}

// do sends one request and decodes a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
