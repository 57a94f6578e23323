// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package tools implements the fixed tool set the chat model may invoke
// during a turn.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is a capability the model can invoke with JSON arguments.
type Tool interface {
	// Name is the function name exposed to the model.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// Parameters is the JSON schema of the tool arguments.
	Parameters() map[string]any

	// Run executes the tool. The result is serialized back to the model.
	Run(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry holds the registered tools by name.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry returns a Registry containing the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Active returns the tools matching the given names, preserving order and
// skipping unknown names.
func (r *Registry) Active(names []string) []Tool {
	active := make([]Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			active = append(active, t)
		}
	}
	return active
}
