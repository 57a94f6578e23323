// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package chat handles one chat turn: one user message in, one streamed
// assistant message out.
//
// The step order is a sequencing contract, not an artifact:
//
//	validate -> authorize -> check quota -> resolve chat -> persist the
//	user message -> augment context (best effort) -> stream the model ->
//	persist the assistant message (best effort)
//
// The user message is persisted before the provider is invoked so it
// survives a provider failure, and the provider stream is fully drained
// before the assistant message is persisted so the complete final message
// is available for the merge.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/curioswitch/aichat/server/internal/auth"
	"github.com/curioswitch/aichat/server/internal/chatdb"
	"github.com/curioswitch/aichat/server/internal/entitlements"
	"github.com/curioswitch/aichat/server/internal/llm"
	"github.com/curioswitch/aichat/server/internal/stream"
)

// Fixed user-facing messages. Internal details never reach the client.
const (
	msgBadRequest    = "Invalid request body"
	msgUnauthorized  = "Unauthorized"
	msgForbidden     = "Forbidden"
	msgQuotaExceeded = "You have exceeded your maximum number of messages for the day! Please try again later."
	msgInternal      = "An error occurred while processing your request!"
	msgStreamError   = "Oops, an error occurred!"
)

const (
	quotaWindow    = 24 * time.Hour
	augmentTimeout = 10 * time.Second
	saveTimeout    = 10 * time.Second
	saveMaxTries   = 3
)

// activeTools is the fixed tool set enabled for tool-capable models.
var activeTools = []string{"getWeather", "createDocument", "updateDocument", "requestSuggestions"}

// Store is the conversation store consumed by the orchestrator.
type Store interface {
	GetChat(ctx context.Context, id string) (*chatdb.Chat, error)
	SaveChat(ctx context.Context, chat *chatdb.Chat) error
	GetMessages(ctx context.Context, chatID string) ([]chatdb.Message, error)
	SaveMessages(ctx context.Context, msgs []chatdb.Message) error
	CountRecentUserMessages(ctx context.Context, userID string, window time.Duration) (int64, error)
}

// Titler derives a chat title from the first user message.
type Titler interface {
	GenerateTitle(ctx context.Context, message string) (string, error)
}

// Searcher retrieves supplementary context for the turn. Optional.
type Searcher interface {
	Context(ctx context.Context, query string) (string, error)
}

// NewHandler returns a Handler.
func NewHandler(store Store, provider llm.Provider, titler Titler, searcher Searcher, maxToolSteps int, timeout time.Duration) *Handler {
	return &Handler{
		store:        store,
		provider:     provider,
		titler:       titler,
		searcher:     searcher,
		maxToolSteps: maxToolSteps,
		timeout:      timeout,
	}
}

// Handler orchestrates chat turns.
type Handler struct {
	store        Store
	provider     llm.Provider
	titler       Titler
	searcher     Searcher
	maxToolSteps int
	timeout      time.Duration
}

type postRequest struct {
	ID                string          `json:"id"`
	Message           incomingMessage `json:"message"`
	SelectedChatModel string          `json:"selectedChatModel"`
}

type incomingMessage struct {
	ID          string              `json:"id"`
	Role        chatdb.Role         `json:"role"`
	Parts       []chatdb.Part       `json:"parts"`
	Attachments []chatdb.Attachment `json:"experimental_attachments"`
}

// text returns the concatenated text content of the message.
func (m *incomingMessage) text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == chatdb.PartTypeText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func (m *incomingMessage) valid() bool {
	return m.ID != "" && m.Role == chatdb.RoleUser && m.text() != ""
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, msgBadRequest, http.StatusBadRequest)
		return
	}
	info, known := llm.LookupModel(req.SelectedChatModel)
	if req.ID == "" || !known || !req.Message.valid() {
		http.Error(w, msgBadRequest, http.StatusBadRequest)
		return
	}

	ident, ok := auth.FromContext(ctx)
	if !ok {
		http.Error(w, msgUnauthorized, http.StatusUnauthorized)
		return
	}
	if !entitlements.CanUseModel(ident.Tier, req.SelectedChatModel) {
		http.Error(w, msgForbidden, http.StatusForbidden)
		return
	}

	count, err := h.store.CountRecentUserMessages(ctx, ident.UserID, quotaWindow)
	if err != nil {
		slog.ErrorContext(ctx, "chat: counting recent messages", "error", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}
	if count >= entitlements.ForTier(ident.Tier).MaxMessagesPerDay {
		http.Error(w, msgQuotaExceeded, http.StatusTooManyRequests)
		return
	}

	userText := req.Message.text()

	existing, err := h.store.GetChat(ctx, req.ID)
	switch {
	case errors.Is(err, chatdb.ErrChatNotFound):
		title, err := h.titler.GenerateTitle(ctx, userText)
		if err != nil {
			slog.ErrorContext(ctx, "chat: generating chat title", "error", err)
			http.Error(w, msgInternal, http.StatusInternalServerError)
			return
		}
		if err := h.store.SaveChat(ctx, &chatdb.Chat{
			ID:         req.ID,
			UserID:     ident.UserID,
			Title:      title,
			Visibility: chatdb.VisibilityPrivate,
			CreatedAt:  time.Now(),
		}); err != nil {
			slog.ErrorContext(ctx, "chat: saving chat", "error", err)
			http.Error(w, msgInternal, http.StatusInternalServerError)
			return
		}
	case err != nil:
		slog.ErrorContext(ctx, "chat: getting chat", "error", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	case existing.UserID != ident.UserID:
		http.Error(w, msgForbidden, http.StatusForbidden)
		return
	}

	previous, err := h.store.GetMessages(ctx, req.ID)
	if err != nil {
		slog.ErrorContext(ctx, "chat: getting chat messages", "error", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	userMsg := chatdb.Message{
		ID:          req.Message.ID,
		ChatID:      req.ID,
		UserID:      ident.UserID,
		Role:        chatdb.RoleUser,
		Parts:       req.Message.Parts,
		Attachments: req.Message.Attachments,
		CreatedAt:   time.Now(),
	}
	if err := h.store.SaveMessages(ctx, []chatdb.Message{userMsg}); err != nil {
		slog.ErrorContext(ctx, "chat: saving user message", "error", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	searchContext := h.augment(ctx, userText)

	var tools []string
	if info.ToolsEnabled {
		tools = activeTools
	}

	sw, err := stream.NewWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "chat: preparing event stream", "error", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	// The provider shares the request context: a client disconnect cancels
	// the in-flight model work and the turn is abandoned without an
	// assistant message.
	response, err := h.provider.Stream(ctx, &llm.Request{
		Model:       req.SelectedChatModel,
		System:      llm.AugmentedSystemPrompt(req.SelectedChatModel, searchContext),
		Messages:    append(previous, userMsg),
		ActiveTools: tools,
		MaxSteps:    h.maxToolSteps,
	}, sw.Send)
	if err != nil {
		slog.ErrorContext(ctx, "chat: streaming model response", "error", err)
		_ = sw.Error(msgStreamError)
		return
	}

	// The terminal frame goes out before persistence so a slow or retried
	// save never delays the client.
	if err := sw.Finish(); err != nil {
		slog.ErrorContext(ctx, "chat: finishing event stream", "error", err)
	}

	h.saveAssistant(ctx, req.ID, ident, response)
}

// augment retrieves supplementary context for the turn. It is best
// effort: failures are logged and the turn proceeds without augmentation.
func (h *Handler) augment(ctx context.Context, query string) string {
	if h.searcher == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, augmentTimeout)
	defer cancel()
	res, err := h.searcher.Context(ctx, query)
	if err != nil {
		slog.WarnContext(ctx, "chat: context augmentation failed", "error", err)
		return ""
	}
	return res
}

// saveAssistant persists the trailing assistant message of the response.
// The stream has already been delivered, so failures here are logged and
// swallowed. The save context is detached from request cancellation so a
// drain that completes right at the deadline is still persisted.
func (h *Handler) saveAssistant(ctx context.Context, chatID string, ident auth.Identity, response []chatdb.Message) {
	var assistant *chatdb.Message
	for i := len(response) - 1; i >= 0; i-- {
		if response[i].Role == chatdb.RoleAssistant {
			assistant = &response[i]
			break
		}
	}
	if assistant == nil {
		slog.ErrorContext(ctx, "chat: no assistant message in provider response")
		return
	}
	assistant.ChatID = chatID
	assistant.UserID = ident.UserID

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if _, err := backoff.Retry(saveCtx, func() (struct{}, error) {
		return struct{}{}, h.store.SaveMessages(saveCtx, []chatdb.Message{*assistant})
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(saveMaxTries)); err != nil {
		slog.ErrorContext(ctx, "chat: saving assistant message", "error", err)
	}
}
