/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package instrument

import (
	"bytes"
	"context"
	"io"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/uselemma/lemma-go/tracing/metrics"
)

// recorder finishes the span of one LLM call exactly once.
type recorder struct {
	span    trace.Span
	metrics *metrics.GenAI
	ctx     context.Context
	system  string
	model   string
	status  string // non-empty when the API answered with an error status
	once    sync.Once
}

func (r *recorder) finish(u usage, err error) {
	r.once.Do(func() {
		model := r.model
		if u.model != "" {
			r.span.SetAttributes(ResponseModelKey.String(u.model))
			if model == "" {
				model = u.model
			}
		}
		if u.inputTokens != 0 || u.outputTokens != 0 {
			r.span.SetAttributes(
				InputTokensKey.Int64(u.inputTokens),
				OutputTokensKey.Int64(u.outputTokens),
			)
			r.metrics.RecordTokens(r.ctx, r.system, model, u.inputTokens, u.outputTokens)
		}

		switch {
		case err != nil:
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, err.Error())
		case r.status != "":
			r.span.SetStatus(codes.Error, r.status)
		}
		r.metrics.RecordRequest(r.ctx, r.system, model, err != nil || r.status != "")
		r.span.End()
	})
}

// streamBody parses server-sent events as the caller reads them.
type streamBody struct {
	rc     io.ReadCloser
	parse  func([]byte) usage
	finish func(usage, error)

	mu      sync.Mutex
	pending []byte
	usage   usage
}

func newStreamBody(rc io.ReadCloser, parse func([]byte) usage, finish func(usage, error)) *streamBody {
	return &streamBody{rc: rc, parse: parse, finish: finish}
}

func (b *streamBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)

	b.mu.Lock()
	if n > 0 {
		b.pending = append(b.pending, p[:n]...)
		b.scanLocked(false)
	}
	if err != nil {
		b.scanLocked(true)
	}
	u := b.usage
	b.mu.Unlock()

	switch {
	case err == io.EOF:
		b.finish(u, nil)
	case err != nil:
		b.finish(u, err)
	}
	return n, err
}

func (b *streamBody) Close() error {
	err := b.rc.Close()

	b.mu.Lock()
	b.scanLocked(true)
	u := b.usage
	b.mu.Unlock()

	b.finish(u, nil)
	return err
}

// scanLocked parses every complete line of pending, or all of it when final.
func (b *streamBody) scanLocked(final bool) {
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			if !final || len(b.pending) == 0 {
				return
			}
			i = len(b.pending)
		}
		line := bytes.TrimSpace(b.pending[:i])
		if i < len(b.pending) {
			b.pending = b.pending[i+1:]
		} else {
			b.pending = nil
		}

		data, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 || bytes.Equal(data, []byte("[DONE]")) {
			continue
		}
		b.usage.merge(b.parse(data))
	}
}
