/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package instrument

import (
	"encoding/json"
	"net/http"

	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
)

// OpenAI returns a client option that traces Chat Completions and Responses
// API calls.
//
//	client := openai.NewClient(instrument.OpenAI())
func OpenAI(opts ...Option) openaioption.RequestOption {
	mw := New(SystemOpenAI, opts...)
	return openaioption.WithMiddleware(func(req *http.Request, next openaioption.MiddlewareNext) (*http.Response, error) {
		return mw(req, next)
	})
}

type openAIParser struct{}

type openAIRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

func (openAIParser) requestModel(_ *http.Request, body []byte) string {
	var req openAIRequest
	_ = json.Unmarshal(body, &req)
	return req.Model
}

func (openAIParser) streaming(_ *http.Request, body []byte) bool {
	var req openAIRequest
	_ = json.Unmarshal(body, &req)
	return req.Stream
}

// responsesUsage is the Responses API shape, both as a whole body and nested
// in stream events.
type responsesUsage struct {
	Model string `json:"model"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

func (openAIParser) parse(data []byte) usage {
	var head struct {
		Object   string          `json:"object"`
		Response *responsesUsage `json:"response"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return usage{}
	}

	switch head.Object {
	case "chat.completion":
		var cc openai.ChatCompletion
		if err := json.Unmarshal(data, &cc); err != nil {
			return usage{}
		}
		return usage{
			model:        cc.Model,
			inputTokens:  cc.Usage.PromptTokens,
			outputTokens: cc.Usage.CompletionTokens,
		}

	case "chat.completion.chunk":
		var chunk openai.ChatCompletionChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return usage{}
		}
		return usage{
			model:        chunk.Model,
			inputTokens:  chunk.Usage.PromptTokens,
			outputTokens: chunk.Usage.CompletionTokens,
		}

	case "response":
		var r responsesUsage
		if err := json.Unmarshal(data, &r); err != nil {
			return usage{}
		}
		return usage{model: r.Model, inputTokens: r.Usage.InputTokens, outputTokens: r.Usage.OutputTokens}
	}

	// Responses API stream events carry the response under "response".
	if r := head.Response; r != nil {
		return usage{model: r.Model, inputTokens: r.Usage.InputTokens, outputTokens: r.Usage.OutputTokens}
	}
	return usage{}
}
