/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package instrument

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attributes, following the OpenTelemetry GenAI conventions.
const (
	SystemKey        = attribute.Key("gen_ai.system")
	OperationKey     = attribute.Key("gen_ai.operation.name")
	RequestModelKey  = attribute.Key("gen_ai.request.model")
	ResponseModelKey = attribute.Key("gen_ai.response.model")
	InputTokensKey   = attribute.Key("gen_ai.usage.input_tokens")
	OutputTokensKey  = attribute.Key("gen_ai.usage.output_tokens")
	StatusCodeKey    = attribute.Key("http.response.status_code")
	StreamingKey     = attribute.Key("gen_ai.request.stream")
)

const (
	operationChat     = "chat"
	eventStreamPrefix = "text/event-stream"
)

// System names an LLM provider API.
type System string

// Supported systems.
const (
	SystemAnthropic System = "anthropic"
	SystemOpenAI    System = "openai"
	SystemGemini    System = "gemini"
)

// Next sends a request further down the client stack.
type Next = func(*http.Request) (*http.Response, error)

// Middleware wraps one HTTP request of an SDK client. It matches the
// middleware shape of the Anthropic and OpenAI SDKs.
type Middleware func(req *http.Request, next Next) (*http.Response, error)

// usage is what a response reveals about the call.
type usage struct {
	model        string
	inputTokens  int64
	outputTokens int64
}

// merge folds a later observation into u. Non-zero values win.
func (u *usage) merge(o usage) {
	if o.model != "" {
		u.model = o.model
	}
	if o.inputTokens != 0 {
		u.inputTokens = o.inputTokens
	}
	if o.outputTokens != 0 {
		u.outputTokens = o.outputTokens
	}
}

// parser understands one provider's wire format.
type parser interface {
	// requestModel extracts the requested model from the request.
	requestModel(r *http.Request, body []byte) string
	// streaming reports whether the request asks for a streamed response.
	streaming(r *http.Request, body []byte) bool
	// parse reads usage from one JSON document: a whole response body or a
	// single server-sent event payload.
	parse(data []byte) usage
}

func parserFor(system System) parser {
	switch system {
	case SystemAnthropic:
		return anthropicParser{}
	case SystemOpenAI:
		return openAIParser{}
	case SystemGemini:
		return geminiParser{}
	default:
		return nopParser{}
	}
}

// New returns a Middleware that traces requests to the given system.
func New(system System, opts ...Option) Middleware {
	cfg := newConfig(opts)
	p := parserFor(system)

	return func(req *http.Request, next Next) (*http.Response, error) {
		if req.Method != http.MethodPost {
			return next(req)
		}

		// Work on a shallow copy so the caller's request is left untouched.
		req = req.WithContext(req.Context())
		body, err := readRequestBody(req)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		model := p.requestModel(req, body)
		stream := p.streaming(req, body)

		name := operationChat
		if model != "" {
			name += " " + model
		}
		ctx, span := cfg.tracer().Start(req.Context(), name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				SystemKey.String(string(system)),
				OperationKey.String(operationChat),
				RequestModelKey.String(model),
				StreamingKey.Bool(stream),
			))

		rec := &recorder{
			span:    span,
			metrics: cfg.metrics,
			ctx:     ctx,
			system:  string(system),
			model:   model,
		}

		resp, err := next(req.WithContext(ctx))
		if err != nil {
			rec.finish(usage{}, err)
			return resp, err
		}

		span.SetAttributes(StatusCodeKey.Int(resp.StatusCode))
		if resp.StatusCode >= http.StatusBadRequest {
			rec.status = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}

		if strings.HasPrefix(resp.Header.Get("Content-Type"), eventStreamPrefix) {
			resp.Body = newStreamBody(resp.Body, p.parse, rec.finish)
			return resp, nil
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			rec.finish(usage{}, err)
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		resp.Body = io.NopCloser(bytes.NewReader(data))
		rec.finish(p.parse(data), nil)
		return resp, nil
	}
}

// Transport returns a RoundTripper that applies m to every request sent
// through base. A nil base means http.DefaultTransport.
func Transport(base http.RoundTripper, m Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return m(req, base.RoundTrip)
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// readRequestBody reads the body and puts an identical one back in place.
func readRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return body, nil
}
