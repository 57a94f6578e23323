// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package stream frames provider events as server-sent events for the
// browser client.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/curioswitch/aichat/server/internal/llm"
)

type finishEvent struct {
	Type string `json:"type"`
}

type errorEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewWriter prepares w for server-sent events and returns a Writer over
// it. The response status is committed by the first event.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("stream: response writer does not support flushing") //nolint:err113
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	return &Writer{w: w, f: f}, nil
}

// Writer writes ordered events to the client, flushing after each so
// tokens render as they arrive.
type Writer struct {
	w http.ResponseWriter
	f http.Flusher
}

// Send forwards one provider event to the client.
func (s *Writer) Send(ev llm.Event) error {
	return s.write(ev)
}

// Finish terminates the stream after a completed turn.
func (s *Writer) Finish() error {
	return s.write(finishEvent{Type: "finish"})
}

// Error reports a failure on an already-started stream. The message is a
// fixed user-facing string, never an internal error.
func (s *Writer) Error(msg string) error {
	return s.write(errorEvent{Type: "error", Text: msg})
}

func (s *Writer) write(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("stream: marshalling event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("stream: writing event: %w", err)
	}
	s.f.Flush()
	return nil
}
