// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"fmt"

	"github.com/curioswitch/aichat/server/internal/i18n"
)

const regularPrompt = `You are a friendly assistant! Keep your responses concise and helpful.`

const artifactsPrompt = `Artifacts is a special user interface mode that helps users with writing,
editing, and other content creation tasks. When you create or update a document, it is shown on
the right side of the screen while the conversation stays on the left.

Use the createDocument tool for substantial content (>10 lines) or when the user explicitly asks
for a document. Do not update a document right after creating it; wait for user feedback first.
Use the updateDocument tool to revise an existing document, defaulting to full rewrites for major
changes and targeted changes for specific requests. Use requestSuggestions when the user asks for
feedback on a document.`

// SystemPrompt returns the system prompt for a chat model. The reasoning
// model runs without tools, so it does not receive the artifacts
// instructions.
func SystemPrompt(modelID string) string {
	if info, ok := LookupModel(modelID); ok && !info.ToolsEnabled {
		return regularPrompt
	}
	return regularPrompt + "\n\n" + artifactsPrompt
}

// AugmentedSystemPrompt folds retrieved search context into the system
// prompt when augmentation produced anything.
func AugmentedSystemPrompt(modelID string, searchContext string) string {
	prompt := SystemPrompt(modelID)
	if searchContext == "" {
		return prompt
	}
	return prompt + "\n\nSupplementary context retrieved for the latest user message. " +
		"Use it only when relevant:\n" + searchContext
}

const titlePrompt = `Generate a short title based on the first message a user begins a
conversation with. Ensure it is not more than 80 characters long. The title should be a summary
of the user's message. Do not use quotes or colons.`

// TitlePrompt returns the title-generation prompt, asking for the user's
// language when the request carried one.
func TitlePrompt(ctx context.Context) string {
	if lng := i18n.UserLanguage(ctx); lng != "" {
		return fmt.Sprintf("%s Write the title in the language with code %q.", titlePrompt, lng)
	}
	return titlePrompt
}
