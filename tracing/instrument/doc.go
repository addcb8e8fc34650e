/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package instrument traces LLM API calls made through the vendor SDKs.

Each POST request to a model API gets one client span, started under the
request's context, so calls made inside an agentrun.Wrap function become part
of that run. The span carries the provider (gen_ai.system), the requested and
responding model, token usage and the HTTP status. Token usage is also counted
through tracing/metrics.

Streaming responses are parsed as server-sent events while the caller reads
them; the span ends when the body is fully read or closed.

	client := anthropic.NewClient(instrument.Anthropic())
	oai := openai.NewClient(instrument.OpenAI())

	cfg := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
	instrument.Google(cfg)
	gemini, err := genai.NewClient(ctx, cfg)
*/
package instrument
