/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package instrument

import (
	"encoding/json"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Google instruments the HTTP client of a genai client configuration and
// returns cfg. The existing client's transport, if any, is kept underneath.
// For the Vertex AI backend, supply an HTTPClient that already carries
// credentials.
//
//	cfg := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
//	client, err := genai.NewClient(ctx, instrument.Google(cfg))
func Google(cfg *genai.ClientConfig, opts ...Option) *genai.ClientConfig {
	client := &http.Client{}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		client = &c
	}
	client.Transport = Transport(client.Transport, New(SystemGemini, opts...))
	cfg.HTTPClient = client
	return cfg
}

type nopParser struct{}

func (nopParser) requestModel(*http.Request, []byte) string { return "" }
func (nopParser) streaming(*http.Request, []byte) bool      { return false }
func (nopParser) parse([]byte) usage                        { return usage{} }

type geminiParser struct{}

// requestModel reads the model from paths such as
// /v1beta/models/gemini-2.0-flash:generateContent.
func (geminiParser) requestModel(r *http.Request, _ []byte) string {
	_, rest, ok := strings.Cut(r.URL.Path, "models/")
	if !ok {
		return ""
	}
	model, _, _ := strings.Cut(rest, ":")
	return model
}

func (geminiParser) streaming(r *http.Request, _ []byte) bool {
	return strings.HasSuffix(r.URL.Path, ":streamGenerateContent")
}

func (geminiParser) parse(data []byte) usage {
	var resp genai.GenerateContentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return usage{}
	}
	u := usage{model: resp.ModelVersion}
	if md := resp.UsageMetadata; md != nil {
		u.inputTokens = int64(md.PromptTokenCount)
		u.outputTokens = int64(md.CandidatesTokenCount)
	}
	return u
}
