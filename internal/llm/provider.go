// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package llm invokes the hosted language-model providers used for chat
// turns, title generation, and artifact generation.
package llm

import (
	"context"
	"encoding/json"

	"github.com/curioswitch/aichat/server/internal/chatdb"
)

// EventType identifies a streamed provider event.
type EventType string

const (
	// EventTextDelta is an increment of the answer text.
	EventTextDelta EventType = "text-delta"
	// EventReasoning is an increment of the reasoning trace side channel.
	EventReasoning EventType = "reasoning"
	// EventToolCall is a tool invocation requested by the model.
	EventToolCall EventType = "tool-call"
	// EventToolResult is the result of an executed tool call.
	EventToolResult EventType = "tool-result"
)

// Event is one element of a provider's response stream, in arrival order.
type Event struct {
	Type EventType `json:"type"`

	// Text holds the delta for text-delta and reasoning events.
	Text string `json:"text,omitempty"`

	// ToolCallID correlates tool-call and tool-result events.
	ToolCallID string `json:"toolCallId,omitempty"`

	// ToolName is set on tool-call and tool-result events.
	ToolName string `json:"toolName,omitempty"`

	// Args is the JSON arguments of a tool-call event.
	Args json.RawMessage `json:"args,omitempty"`

	// Result is the JSON result of a tool-result event.
	Result json.RawMessage `json:"result,omitempty"`
}

// Request is one chat turn to stream from a provider.
type Request struct {
	// Model is the client-facing chat model ID.
	Model string

	// System is the system prompt.
	System string

	// Messages is the full ordered history of the chat including the new
	// user message.
	Messages []chatdb.Message

	// ActiveTools restricts which registered tools the model may invoke.
	// Empty means no tools.
	ActiveTools []string

	// MaxSteps bounds sequential tool-invocation rounds in the turn.
	MaxSteps int
}

// Provider streams one chat turn. Events are emitted in order as they
// arrive from the provider; the returned messages are the response
// messages produced during the turn, ending with the final assistant
// message. Emit errors abort the stream.
type Provider interface {
	Stream(ctx context.Context, req *Request, emit func(Event) error) ([]chatdb.Message, error)
}
