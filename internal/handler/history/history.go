// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/curioswitch/aichat/server/internal/auth"
	"github.com/curioswitch/aichat/server/internal/chatdb"
)

const defaultLimit = 20

// Store lists a user's chats.
type Store interface {
	GetChatsByUser(ctx context.Context, userID string, limit int) ([]chatdb.Chat, error)
}

// NewHandler returns a Handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Handler lists the caller's chats, newest first.
type Handler struct {
	store Store
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident, ok := auth.FromContext(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	chats, err := h.store.GetChatsByUser(ctx, ident.UserID, limit)
	if err != nil {
		slog.ErrorContext(ctx, "history: getting user chats", "error", err)
		http.Error(w, "An error occurred while processing your request!", http.StatusInternalServerError)
		return
	}
	if chats == nil {
		chats = []chatdb.Chat{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chats); err != nil {
		slog.ErrorContext(ctx, "history: encoding response", "error", err)
	}
}
