// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/curioswitch/aichat/server/internal/auth"
	"github.com/curioswitch/aichat/server/internal/chatdb"
)

// DocumentStore persists documents and suggestions created by tools.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc *chatdb.Document) error
	GetDocument(ctx context.Context, id string) (*chatdb.Document, error)
	SaveSuggestions(ctx context.Context, suggestions []chatdb.Suggestion) error
}

const artifactModel = "gemini-2.5-flash"

var errUnauthenticated = errors.New("tools: no authenticated user in context")

func generateText(ctx context.Context, genAI *genai.Client, system string, prompt string) (string, error) {
	res, err := genAI.Models.GenerateContent(ctx, artifactModel,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleModel),
		})
	if err != nil {
		return "", fmt.Errorf("tools: calling GenerateContent: %w", err)
	}
	if len(res.Candidates) != 1 || len(res.Candidates[0].Content.Parts) != 1 || res.Candidates[0].Content.Parts[0].Text == "" {
		return "", fmt.Errorf("tools: unexpected response from generate ai: %v", res) //nolint:err113
	}
	return res.Candidates[0].Content.Parts[0].Text, nil
}

// NewCreateDocument returns the createDocument tool.
func NewCreateDocument(genAI *genai.Client, store DocumentStore) *CreateDocument {
	return &CreateDocument{genAI: genAI, store: store}
}

// CreateDocument generates a document with the artifact model and saves it.
type CreateDocument struct {
	genAI *genai.Client
	store DocumentStore
}

func (t *CreateDocument) Name() string {
	return "createDocument"
}

func (t *CreateDocument) Description() string {
	return "Create a document for a writing or content creation activity."
}

func (t *CreateDocument) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "The title of the document.",
			},
			"kind": map[string]any{
				"type": "string",
				"enum": []string{"text"},
			},
		},
		"required": []string{"title", "kind"},
	}
}

type createDocumentArgs struct {
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

type documentResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

func (t *CreateDocument) Run(ctx context.Context, args json.RawMessage) (any, error) {
	var a createDocumentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("tools: unmarshalling createDocument args: %w", err)
	}
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}

	content, err := generateText(ctx, t.genAI, createDocumentPrompt, a.Title)
	if err != nil {
		return nil, err
	}

	doc := &chatdb.Document{
		ID:        uuid.NewString(),
		UserID:    id.UserID,
		Title:     a.Title,
		Kind:      a.Kind,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := t.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}

	return documentResult{
		ID:      doc.ID,
		Title:   doc.Title,
		Kind:    doc.Kind,
		Content: "A document was created and is now visible to the user.",
	}, nil
}

// NewUpdateDocument returns the updateDocument tool.
func NewUpdateDocument(genAI *genai.Client, store DocumentStore) *UpdateDocument {
	return &UpdateDocument{genAI: genAI, store: store}
}

// UpdateDocument rewrites an existing document based on a described change.
type UpdateDocument struct {
	genAI *genai.Client
	store DocumentStore
}

func (t *UpdateDocument) Name() string {
	return "updateDocument"
}

func (t *UpdateDocument) Description() string {
	return "Update a document with the given description."
}

func (t *UpdateDocument) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{
				"type":        "string",
				"description": "The ID of the document to update.",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "The description of changes that need to be made.",
			},
		},
		"required": []string{"id", "description"},
	}
}

type updateDocumentArgs struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

func (t *UpdateDocument) Run(ctx context.Context, args json.RawMessage) (any, error) {
	var a updateDocumentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("tools: unmarshalling updateDocument args: %w", err)
	}
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}

	doc, err := t.store.GetDocument(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != id.UserID {
		return nil, fmt.Errorf("tools: document %q not owned by caller", a.ID) //nolint:err113
	}

	content, err := generateText(ctx, t.genAI, updateDocumentPrompt(doc.Content), a.Description)
	if err != nil {
		return nil, err
	}

	doc.Content = content
	doc.CreatedAt = time.Now()
	if err := t.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}

	return documentResult{
		ID:      doc.ID,
		Title:   doc.Title,
		Kind:    doc.Kind,
		Content: "The document has been updated successfully.",
	}, nil
}
