// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const titleModel = "gemini-2.5-flash"

// NewTitler returns a Titler.
func NewTitler(genAI *genai.Client) *Titler {
	return &Titler{genAI: genAI}
}

// Titler generates chat titles from the first user message.
type Titler struct {
	genAI *genai.Client
}

func (t *Titler) GenerateTitle(ctx context.Context, message string) (string, error) {
	res, err := t.genAI.Models.GenerateContent(ctx, titleModel,
		[]*genai.Content{genai.NewContentFromText(message, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(TitlePrompt(ctx), genai.RoleModel),
		})
	if err != nil {
		return "", fmt.Errorf("llm: calling GenerateContent for title: %w", err)
	}
	if len(res.Candidates) != 1 || len(res.Candidates[0].Content.Parts) != 1 || res.Candidates[0].Content.Parts[0].Text == "" {
		return "", fmt.Errorf("llm: unexpected response from generate ai for title: %v", res) //nolint:err113
	}
	return strings.TrimSpace(res.Candidates[0].Content.Parts[0].Text), nil
}
