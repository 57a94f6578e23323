// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package chatdb

import "time"

type Role string

const (
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"
	// RoleSystem represents a system message.
	RoleSystem Role = "system"
)

type Visibility string

const (
	// VisibilityPrivate restricts a chat to its owner.
	VisibilityPrivate Visibility = "private"
	// VisibilityPublic allows anyone to read a chat.
	VisibilityPublic Visibility = "public"
)

type PartType string

const (
	// PartTypeText is ordinary answer text.
	PartTypeText PartType = "text"
	// PartTypeReasoning is a reasoning trace emitted on the side channel.
	PartTypeReasoning PartType = "reasoning"
	// PartTypeToolCall is a tool invocation requested by the model.
	PartTypeToolCall PartType = "tool-call"
	// PartTypeToolResult is the result of executing a tool call.
	PartTypeToolResult PartType = "tool-result"
)

// Part is one typed fragment of a message.
type Part struct {
	// Type is the type of the part.
	Type PartType `firestore:"type" json:"type"`

	// Text is the content for text and reasoning parts.
	Text string `firestore:"text,omitempty" json:"text,omitempty"`

	// ToolCallID correlates a tool call with its result.
	ToolCallID string `firestore:"toolCallId,omitempty" json:"toolCallId,omitempty"`

	// ToolName is the name of the invoked tool.
	ToolName string `firestore:"toolName,omitempty" json:"toolName,omitempty"`

	// Args is the JSON-encoded arguments of a tool call.
	Args string `firestore:"args,omitempty" json:"args,omitempty"`

	// Result is the JSON-encoded result of a tool call.
	Result string `firestore:"result,omitempty" json:"result,omitempty"`
}

// Attachment is a file reference attached to a message.
type Attachment struct {
	// Name is the display name of the file.
	Name string `firestore:"name" json:"name"`

	// URL is the location of the uploaded file.
	URL string `firestore:"url" json:"url"`

	// ContentType is the MIME type of the file.
	ContentType string `firestore:"contentType" json:"contentType"`
}

// Message represents a message in a chat conversation.
type Message struct {
	// ID is the unique identifier of the message.
	ID string `firestore:"id" json:"id"`

	// ChatID is the ID of the chat the message belongs to.
	ChatID string `firestore:"chatId" json:"chatId"`

	// UserID is the ID of the chat owner, denormalized for quota counts.
	UserID string `firestore:"userId" json:"-"`

	// Role is the role of the message sender.
	Role Role `firestore:"role" json:"role"`

	// Parts is the ordered content of the message.
	Parts []Part `firestore:"parts" json:"parts"`

	// Attachments are files attached to the message.
	Attachments []Attachment `firestore:"attachments,omitempty" json:"attachments,omitempty"`

	// CreatedAt is the timestamp when the message was created.
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
}

// Chat represents a conversation owned by a single user.
type Chat struct {
	// ID is the unique identifier for the chat.
	ID string `firestore:"id" json:"id"`

	// UserID is the ID of the owning user.
	UserID string `firestore:"userId" json:"userId"`

	// Title is a short description derived from the first user message.
	Title string `firestore:"title" json:"title"`

	// Visibility controls who may read the chat.
	Visibility Visibility `firestore:"visibility" json:"visibility"`

	// CreatedAt is the timestamp when the chat was created.
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
}

// Document represents an artifact created by the model through the
// createDocument tool.
type Document struct {
	// ID is the unique identifier of the document.
	ID string `firestore:"id" json:"id"`

	// UserID is the ID of the user the document was created for.
	UserID string `firestore:"userId" json:"userId"`

	// Title is the title of the document.
	Title string `firestore:"title" json:"title"`

	// Kind is the kind of document, currently always "text".
	Kind string `firestore:"kind" json:"kind"`

	// Content is the document body.
	Content string `firestore:"content" json:"content"`

	// CreatedAt is the timestamp when this version was written.
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
}

// Suggestion is a writing suggestion for a document.
type Suggestion struct {
	// ID is the unique identifier of the suggestion.
	ID string `firestore:"id" json:"id"`

	// DocumentID is the ID of the document the suggestion applies to.
	DocumentID string `firestore:"documentId" json:"documentId"`

	// OriginalText is the text the suggestion replaces.
	OriginalText string `firestore:"originalText" json:"originalText"`

	// SuggestedText is the proposed replacement.
	SuggestedText string `firestore:"suggestedText" json:"suggestedText"`

	// Description explains the improvement.
	Description string `firestore:"description" json:"description"`

	// CreatedAt is the timestamp when the suggestion was created.
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
}
