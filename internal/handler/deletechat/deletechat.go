// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package deletechat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/curioswitch/aichat/server/internal/auth"
	"github.com/curioswitch/aichat/server/internal/chatdb"
)

// Store deletes chats, returning the removed record for the confirmation
// display.
type Store interface {
	GetChat(ctx context.Context, id string) (*chatdb.Chat, error)
	DeleteChat(ctx context.Context, id string) (*chatdb.Chat, error)
}

// NewHandler returns a Handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Handler deletes a chat owned by the caller.
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
		slog.ErrorContext(ctx, "deletechat: getting chat", "error", err)
		http.Error(w, "An error occurred while processing your request!", http.StatusInternalServerError)
		return
	}
	if chat.UserID != ident.UserID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	deleted, err := h.store.DeleteChat(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "deletechat: deleting chat", "error", err)
		http.Error(w, "An error occurred while processing your request!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(deleted); err != nil {
		slog.ErrorContext(ctx, "deletechat: encoding response", "error", err)
	}
}
