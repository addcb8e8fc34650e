/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package lemmaotel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/uselemma/lemma-go/tracing/runbatch"
)

type capturedRequest struct {
	path        string
	auth        string
	project     string
	contentType string
}

func newIngestServer(t *testing.T) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, capturedRequest{
			path:        r.URL.Path,
			auth:        r.Header.Get("Authorization"),
			project:     r.Header.Get("X-Lemma-Project-ID"),
			contentType: r.Header.Get("Content-Type"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), requests...)
	}
}

func TestRegisterExportsOverHTTP(t *testing.T) {
	t.Parallel()
	srv, requests := newIngestServer(t)
	ctx := context.Background()

	provider, err := Register(ctx, Config{
		APIKey:      "secret",
		ProjectID:   "proj-1",
		BaseURL:     srv.URL,
		Protocol:    ProtocolHTTP,
		ServiceName: "test-agent",
	}, WithoutGlobal())
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	rctx, root := provider.Tracer("lemma").Start(ctx, runbatch.RunSpanName)
	_, child := provider.Tracer("lemma").Start(rctx, "step")
	child.End()
	root.End()

	got := requests()
	if len(got) != 1 {
		t.Fatalf("requests: got = %d, wanted = 1", len(got))
	}
	if got[0].path != "/otel/v1/traces" {
		t.Errorf("path: got = %q, wanted = %q", got[0].path, "/otel/v1/traces")
	}
	if got[0].auth != "Bearer secret" {
		t.Errorf("authorization: got = %q, wanted = %q", got[0].auth, "Bearer secret")
	}
	if got[0].project != "proj-1" {
		t.Errorf("project header: got = %q, wanted = %q", got[0].project, "proj-1")
	}
	if got[0].contentType != "application/x-protobuf" {
		t.Errorf("content type: got = %q, wanted = %q", got[0].contentType, "application/x-protobuf")
	}
}

func TestRegisterRequiresCredentials(t *testing.T) {
	t.Parallel()
	_, err := Register(context.Background(), Config{BaseURL: DefaultBaseURL, Protocol: ProtocolHTTP}, WithoutGlobal())
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Register: got = %v, wanted = %v", err, ErrMissingCredentials)
	}
}

func TestRegisterWithExporter(t *testing.T) {
	t.Parallel()
	exporter := tracetest.NewInMemoryExporter()

	provider, err := Register(context.Background(), Config{ServiceName: "svc"},
		WithExporter(exporter),
		WithProcessorOptions(runbatch.WithRunIDGenerator(func() string { return "fixed" })),
		WithoutGlobal())
	require.NoError(t, err)

	_, root := provider.Tracer("lemma").Start(context.Background(), runbatch.RunSpanName)
	root.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	if got := runbatch.ParseRunAttributes(spans[0].Attributes).RunID; got != "fixed" {
		t.Errorf("run id: got = %q, wanted = %q", got, "fixed")
	}
	if v, ok := spans[0].Resource.Set().Value(semconv.ServiceNameKey); !ok || v.AsString() != "svc" {
		t.Errorf("service name: got = %q, wanted = %q", v.AsString(), "svc")
	}

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewExporterGRPC(t *testing.T) {
	t.Parallel()
	// The gRPC exporter connects lazily, so construction succeeds without a collector.
	exporter, err := NewExporter(context.Background(), Config{
		APIKey:    "key",
		ProjectID: "proj",
		BaseURL:   "http://127.0.0.1:4317",
		Protocol:  ProtocolGRPC,
		Insecure:  true,
	})
	require.NoError(t, err)
	require.NoError(t, exporter.Shutdown(context.Background()))
}
