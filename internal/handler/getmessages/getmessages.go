// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package getmessages

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/curioswitch/aichat/server/internal/auth"
	"github.com/curioswitch/aichat/server/internal/chatdb"
)

// Store reads chats and their messages.
type Store interface {
	GetChat(ctx context.Context, id string) (*chatdb.Chat, error)
	GetMessages(ctx context.Context, chatID string) ([]chatdb.Message, error)
}

// NewHandler returns a Handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Handler returns the ordered messages of a chat. Private chats are
// readable only by their owner; public chats by anyone authenticated.
type Handler struct {
	store Store
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ident, ok := auth.FromContext(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chat, err := h.store.GetChat(ctx, id)
	if err != nil {
		if errors.Is(err, chatdb.ErrChatNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "getmessages: getting chat", "error", err)
		http.Error(w, "An error occurred while processing your request!", http.StatusInternalServerError)
		return
	}
	if chat.Visibility != chatdb.VisibilityPublic && chat.UserID != ident.UserID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	msgs, err := h.store.GetMessages(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "getmessages: getting messages", "error", err)
		http.Error(w, "An error occurred while processing your request!", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []chatdb.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msgs); err != nil {
		slog.ErrorContext(ctx, "getmessages: encoding response", "error", err)
	}
}
