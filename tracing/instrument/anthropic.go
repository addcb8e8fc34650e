/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package instrument

import (
	"encoding/json"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic returns a client option that traces Messages API calls.
//
//	client := anthropic.NewClient(instrument.Anthropic())
func Anthropic(opts ...Option) anthropicoption.RequestOption {
	mw := New(SystemAnthropic, opts...)
	return anthropicoption.WithMiddleware(func(req *http.Request, next anthropicoption.MiddlewareNext) (*http.Response, error) {
		return mw(req, next)
	})
}

type anthropicParser struct{}

type anthropicRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

func (anthropicParser) requestModel(_ *http.Request, body []byte) string {
	var req anthropicRequest
	_ = json.Unmarshal(body, &req)
	return req.Model
}

func (anthropicParser) streaming(_ *http.Request, body []byte) bool {
	var req anthropicRequest
	_ = json.Unmarshal(body, &req)
	return req.Stream
}

func (anthropicParser) parse(data []byte) usage {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return usage{}
	}

	switch head.Type {
	case "message":
		var msg anthropic.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return usage{}
		}
		return usage{
			model:        string(msg.Model),
			inputTokens:  msg.Usage.InputTokens,
			outputTokens: msg.Usage.OutputTokens,
		}

	case "message_start", "message_delta":
		var ev anthropic.MessageStreamEventUnion
		if err := json.Unmarshal(data, &ev); err != nil {
			return usage{}
		}
		if head.Type == "message_delta" {
			return usage{outputTokens: ev.Usage.OutputTokens}
		}
		return usage{
			model:        string(ev.Message.Model),
			inputTokens:  ev.Message.Usage.InputTokens,
			outputTokens: ev.Message.Usage.OutputTokens,
		}
	}
	return usage{}
}
