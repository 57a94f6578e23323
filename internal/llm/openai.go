// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/curioswitch/aichat/server/internal/chatdb"
	"github.com/curioswitch/aichat/server/internal/tools"
)

// NewOpenAI returns a Provider streaming chat turns through the OpenAI
// chat completions API.
func NewOpenAI(client *openai.Client, registry *tools.Registry) *OpenAI {
	return &OpenAI{
		client:   client,
		registry: registry,
		newID:    uuid.NewString,
	}
}

// OpenAI streams chat turns from the OpenAI API, executing tool calls
// between completion rounds.
type OpenAI struct {
	client   *openai.Client
	registry *tools.Registry

	newID func() string
}

func (p *OpenAI) Stream(ctx context.Context, req *Request, emit func(Event) error) ([]chatdb.Message, error) {
	info, ok := LookupModel(req.Model)
	if !ok {
		return nil, fmt.Errorf("llm: unknown chat model %q", req.Model) //nolint:err113
	}

	msgs := historyParams(req)

	active := p.registry.Active(req.ActiveTools)
	toolParams := make([]openai.ChatCompletionToolUnionParam, len(active))
	for i, t := range active {
		toolParams[i] = openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name(),
			Description: openai.String(t.Description()),
			Parameters:  shared.FunctionParameters(t.Parameters()),
		})
	}

	var answer, reasoning strings.Builder
	var parts []chatdb.Part
	extract := &reasoningExtractor{}

	// Each iteration is one completion round; rounds after the first only
	// happen when the model requested tool calls, bounded by MaxSteps.
	for step := 0; ; step++ {
		params := openai.ChatCompletionNewParams{
			Model:    shared.ChatModel(info.ProviderModel),
			Messages: msgs,
		}
		if len(toolParams) > 0 {
			params.Tools = toolParams
		}

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		acc := openai.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			text, trace := delta, ""
			if info.ExtractReasoning {
				text, trace = extract.feed(delta)
			}
			if trace != "" {
				reasoning.WriteString(trace)
				if err := emit(Event{Type: EventReasoning, Text: trace}); err != nil {
					return nil, fmt.Errorf("llm: emitting reasoning delta: %w", err)
				}
			}
			if text != "" {
				answer.WriteString(text)
				if err := emit(Event{Type: EventTextDelta, Text: text}); err != nil {
					return nil, fmt.Errorf("llm: emitting text delta: %w", err)
				}
			}
		}
		if err := stream.Err(); err != nil {
			return nil, fmt.Errorf("llm: streaming completion: %w", err)
		}
		if len(acc.Choices) == 0 {
			return nil, fmt.Errorf("llm: completion returned no choices") //nolint:err113
		}

		msg := acc.Choices[0].Message
		if len(msg.ToolCalls) == 0 || step >= req.MaxSteps-1 {
			break
		}

		msgs = append(msgs, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			toolMsg, toolParts, err := p.runTool(ctx, tc, emit)
			if err != nil {
				return nil, err
			}
			parts = append(parts, toolParts...)
			msgs = append(msgs, toolMsg)
		}
	}

	if info.ExtractReasoning {
		text, trace := extract.flush()
		answer.WriteString(text)
		reasoning.WriteString(trace)
	}

	if reasoning.Len() > 0 {
		parts = append(parts, chatdb.Part{Type: chatdb.PartTypeReasoning, Text: reasoning.String()})
	}
	if answer.Len() > 0 || len(parts) == 0 {
		parts = append(parts, chatdb.Part{Type: chatdb.PartTypeText, Text: answer.String()})
	}

	return []chatdb.Message{{
		ID:        p.newID(),
		Role:      chatdb.RoleAssistant,
		Parts:     parts,
		CreatedAt: time.Now(),
	}}, nil
}

// runTool executes one requested tool call, emitting the call and result
// events. Tool failures are reported back to the model rather than
// aborting the turn.
func (p *OpenAI) runTool(ctx context.Context, tc openai.ChatCompletionMessageToolCallUnion, emit func(Event) error) (openai.ChatCompletionMessageParamUnion, []chatdb.Part, error) {
	name := tc.Function.Name
	args := json.RawMessage(tc.Function.Arguments)

	if err := emit(Event{Type: EventToolCall, ToolCallID: tc.ID, ToolName: name, Args: args}); err != nil {
		return openai.ChatCompletionMessageParamUnion{}, nil, fmt.Errorf("llm: emitting tool call: %w", err)
	}

	var result any
	if tool, ok := p.registry.Get(name); ok {
		res, err := tool.Run(ctx, args)
		if err != nil {
			slog.ErrorContext(ctx, "llm: tool execution failed", "tool", name, "error", err)
			result = map[string]string{"error": "The tool call failed."}
		} else {
			result = res
		}
	} else {
		result = map[string]string{"error": fmt.Sprintf("Unknown tool %q.", name)}
	}

	resJSON, err := json.Marshal(result)
	if err != nil {
		return openai.ChatCompletionMessageParamUnion{}, nil, fmt.Errorf("llm: marshalling tool result: %w", err)
	}
	if err := emit(Event{Type: EventToolResult, ToolCallID: tc.ID, ToolName: name, Result: resJSON}); err != nil {
		return openai.ChatCompletionMessageParamUnion{}, nil, fmt.Errorf("llm: emitting tool result: %w", err)
	}

	parts := []chatdb.Part{
		{Type: chatdb.PartTypeToolCall, ToolCallID: tc.ID, ToolName: name, Args: string(args)},
		{Type: chatdb.PartTypeToolResult, ToolCallID: tc.ID, ToolName: name, Result: string(resJSON)},
	}
	return openai.ToolMessage(string(resJSON), tc.ID), parts, nil
}

// historyParams converts the request history to completion message params.
// Only text parts are replayed to the provider; tool traffic from previous
// turns stays in the store.
func historyParams(req *Request) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		var sb strings.Builder
		for _, part := range m.Parts {
			if part.Type == chatdb.PartTypeText {
				sb.WriteString(part.Text)
			}
		}
		text := sb.String()
		if text == "" {
			continue
		}
		switch m.Role {
		case chatdb.RoleUser:
			msgs = append(msgs, openai.UserMessage(text))
		case chatdb.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(text))
		case chatdb.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(text))
		}
	}
	return msgs
}
