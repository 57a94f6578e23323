// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/curioswitch/aichat/server/internal/auth"
	"github.com/curioswitch/aichat/server/internal/chatdb"
)

// NewRequestSuggestions returns the requestSuggestions tool.
func NewRequestSuggestions(genAI *genai.Client, store DocumentStore) *RequestSuggestions {
	return &RequestSuggestions{genAI: genAI, store: store}
}

// RequestSuggestions generates writing suggestions for a document with the
// artifact model and stores them.
type RequestSuggestions struct {
	genAI *genai.Client
	store DocumentStore
}

func (t *RequestSuggestions) Name() string {
	return "requestSuggestions"
}

func (t *RequestSuggestions) Description() string {
	return "Request suggestions for a document."
}

func (t *RequestSuggestions) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"documentId": map[string]any{
				"type":        "string",
				"description": "The ID of the document to request edits for.",
			},
		},
		"required": []string{"documentId"},
	}
}

type requestSuggestionsArgs struct {
	DocumentID string `json:"documentId"`
}

type generatedSuggestion struct {
	OriginalSentence  string `json:"originalSentence"`
	SuggestedSentence string `json:"suggestedSentence"`
	Description       string `json:"description"`
}

func (t *RequestSuggestions) Run(ctx context.Context, args json.RawMessage) (any, error) {
	var a requestSuggestionsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("tools: unmarshalling requestSuggestions args: %w", err)
	}
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, errUnauthenticated
	}

	doc, err := t.store.GetDocument(ctx, a.DocumentID)
	if err != nil {
		return nil, err
	}

	res, err := t.genAI.Models.GenerateContent(ctx, artifactModel,
		[]*genai.Content{genai.NewContentFromText(doc.Content, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(suggestionsPrompt, genai.RoleModel),
			ResponseMIMEType:  "application/json",
			ResponseSchema: &genai.Schema{
				Type:        "array",
				Description: "Suggestions to improve the writing.",
				Items: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"originalSentence": {
							Type:        "string",
							Description: "The original sentence.",
						},
						"suggestedSentence": {
							Type:        "string",
							Description: "The suggested replacement sentence.",
						},
						"description": {
							Type:        "string",
							Description: "The description of the suggestion.",
						},
					},
					Required: []string{"originalSentence", "suggestedSentence", "description"},
				},
			},
		})
	if err != nil {
		return nil, fmt.Errorf("tools: calling GenerateContent for suggestions: %w", err)
	}
	if len(res.Candidates) != 1 || len(res.Candidates[0].Content.Parts) != 1 || res.Candidates[0].Content.Parts[0].Text == "" {
		return nil, fmt.Errorf("tools: unexpected suggestions response: %v", res) //nolint:err113
	}

	var generated []generatedSuggestion
	if err := json.Unmarshal([]byte(res.Candidates[0].Content.Parts[0].Text), &generated); err != nil {
		return nil, fmt.Errorf("tools: unmarshalling generated suggestions: %w", err)
	}

	now := time.Now()
	suggestions := make([]chatdb.Suggestion, len(generated))
	for i, g := range generated {
		suggestions[i] = chatdb.Suggestion{
			ID:            uuid.NewString(),
			DocumentID:    doc.ID,
			OriginalText:  g.OriginalSentence,
			SuggestedText: g.SuggestedSentence,
			Description:   g.Description,
			CreatedAt:     now,
		}
	}
	if err := t.store.SaveSuggestions(ctx, suggestions); err != nil {
		return nil, err
	}

	return map[string]any{
		"id":      doc.ID,
		"title":   doc.Title,
		"kind":    doc.Kind,
		"message": "Suggestions have been added to the document.",
	}, nil
}
