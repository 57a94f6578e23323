// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package llm

// Client-facing model identifiers.
const (
	// ModelChat is the default chat model.
	ModelChat = "chat-model"
	// ModelChatReasoning is the chat model exposing a reasoning trace. It
	// runs with all tools disabled.
	ModelChatReasoning = "chat-model-reasoning"
	// ModelTitle generates chat titles.
	ModelTitle = "title-model"
	// ModelArtifact generates and edits documents.
	ModelArtifact = "artifact-model"
)

// ModelInfo describes how a client-facing model ID maps onto a provider
// model.
type ModelInfo struct {
	// ProviderModel is the model name sent to the provider.
	ProviderModel string

	// ToolsEnabled reports whether the fixed tool set is active.
	ToolsEnabled bool

	// ExtractReasoning enables extraction of <think> tagged output onto the
	// reasoning side channel.
	ExtractReasoning bool
}

var chatModels = map[string]ModelInfo{
	ModelChat: {
		ProviderModel: "gpt-4.1",
		ToolsEnabled:  true,
	},
	ModelChatReasoning: {
		ProviderModel:    "o3",
		ExtractReasoning: true,
	},
}

// LookupModel resolves a client-facing chat model ID.
func LookupModel(id string) (ModelInfo, bool) {
	info, ok := chatModels[id]
	return info, ok
}
