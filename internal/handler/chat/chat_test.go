// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioswitch/aichat/server/internal/auth"
	"github.com/curioswitch/aichat/server/internal/chatdb"
	"github.com/curioswitch/aichat/server/internal/entitlements"
	"github.com/curioswitch/aichat/server/internal/handler/chat"
	"github.com/curioswitch/aichat/server/internal/llm"
)

type fakeStore struct {
	chats map[string]chatdb.Chat
	msgs  []chatdb.Message

	count    int64
	countErr error

	saveCalls int
	failCall  int
	failFrom  int
	reads     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{chats: map[string]chatdb.Chat{}}
}

func (s *fakeStore) GetChat(_ context.Context, id string) (*chatdb.Chat, error) {
	s.reads++
	c, ok := s.chats[id]
	if !ok {
		return nil, chatdb.ErrChatNotFound
	}
	return &c, nil
}

func (s *fakeStore) SaveChat(_ context.Context, c *chatdb.Chat) error {
	if _, ok := s.chats[c.ID]; ok {
		return errors.New("chat already exists")
	}
	s.chats[c.ID] = *c
	return nil
}

func (s *fakeStore) GetMessages(_ context.Context, chatID string) ([]chatdb.Message, error) {
	s.reads++
	var msgs []chatdb.Message
	for _, m := range s.msgs {
		if m.ChatID == chatID {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

func (s *fakeStore) SaveMessages(_ context.Context, msgs []chatdb.Message) error {
	s.saveCalls++
	if s.saveCalls == s.failCall || (s.failFrom > 0 && s.saveCalls >= s.failFrom) {
		return errors.New("firestore unavailable")
	}
	for _, msg := range msgs {
		replaced := false
		for i, existing := range s.msgs {
			if existing.ID == msg.ID {
				s.msgs[i] = msg
				replaced = true
				break
			}
		}
		if !replaced {
			s.msgs = append(s.msgs, msg)
		}
	}
	return nil
}

func (s *fakeStore) CountRecentUserMessages(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return s.count, s.countErr
}

type fakeProvider struct {
	events   []llm.Event
	response []chatdb.Message
	err      error

	req *llm.Request
}

func (p *fakeProvider) Stream(ctx context.Context, req *llm.Request, emit func(llm.Event) error) ([]chatdb.Message, error) {
	p.req = req
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, ev := range p.events {
		if err := emit(ev); err != nil {
			return nil, err
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.response, nil
}

type fakeTitler struct {
	title string
	err   error
}

func (t *fakeTitler) GenerateTitle(_ context.Context, _ string) (string, error) {
	return t.title, t.err
}

type fakeSearcher struct {
	result string
	err    error
	query  string
}

func (s *fakeSearcher) Context(_ context.Context, query string) (string, error) {
	s.query = query
	return s.result, s.err
}

func assistantResponse(text string) []chatdb.Message {
	return []chatdb.Message{{
		ID:        "assistant-1",
		Role:      chatdb.RoleAssistant,
		Parts:     []chatdb.Part{{Type: chatdb.PartTypeText, Text: text}},
		CreatedAt: time.Now(),
	}}
}

func postBody(t *testing.T, chatID, msgID, text, model string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id": chatID,
		"message": map[string]any{
			"id":    msgID,
			"role":  "user",
			"parts": []map[string]any{{"type": "text", "text": text}},
		},
		"selectedChatModel": model,
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func doPost(h *chat.Handler, body *bytes.Reader, ident *auth.Identity) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	if ident != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *ident))
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

// sseTypes parses the event types of a streamed response body in order.
func sseTypes(t *testing.T, body string) []string {
	t.Helper()
	var types []string
	for _, line := range strings.Split(body, "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		types = append(types, ev.Type)
	}
	return types
}

func owner() *auth.Identity {
	return &auth.Identity{UserID: "user-1", Tier: entitlements.TierRegular}
}

func TestNewChatTurn(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{
		events: []llm.Event{
			{Type: llm.EventToolCall, ToolCallID: "call-1", ToolName: "getWeather", Args: json.RawMessage(`{"latitude":42.36,"longitude":-71.06}`)},
			{Type: llm.EventToolResult, ToolCallID: "call-1", ToolName: "getWeather", Result: json.RawMessage(`{"current":{"temperature_2m":18.5}}`)},
			{Type: llm.EventTextDelta, Text: "It's 18.5C in Boston."},
		},
		response: assistantResponse("It's 18.5C in Boston."),
	}
	h := chat.NewHandler(store, provider, &fakeTitler{title: "Boston Weather"}, &fakeSearcher{}, 5, time.Minute)

	res := doPost(h, postBody(t, "chat-1", "msg-1", "What's the weather in Boston?", "chat-model"), owner())

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "text/event-stream", res.Header().Get("Content-Type"))
	assert.Equal(t, []string{"tool-call", "tool-result", "text-delta", "finish"}, sseTypes(t, res.Body.String()))

	created, ok := store.chats["chat-1"]
	require.True(t, ok)
	assert.Equal(t, "Boston Weather", created.Title)
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, chatdb.VisibilityPrivate, created.Visibility)

	require.Len(t, store.msgs, 2)
	assert.Equal(t, chatdb.RoleUser, store.msgs[0].Role)
	assert.Equal(t, "msg-1", store.msgs[0].ID)
	assert.Equal(t, chatdb.RoleAssistant, store.msgs[1].Role)
	assert.Equal(t, "chat-1", store.msgs[1].ChatID)
	assert.Equal(t, "user-1", store.msgs[1].UserID)

	require.NotNil(t, provider.req)
	assert.Contains(t, provider.req.ActiveTools, "getWeather")
	assert.Equal(t, 5, provider.req.MaxSteps)
	require.Len(t, provider.req.Messages, 1)
	assert.Equal(t, chatdb.RoleUser, provider.req.Messages[0].Role)
}

func TestExistingChatAppendsInOrder(t *testing.T) {
	store := newFakeStore()
	store.chats["chat-1"] = chatdb.Chat{ID: "chat-1", UserID: "user-1", Title: "Earlier"}
	base := time.Now().Add(-time.Hour)
	store.msgs = []chatdb.Message{
		{ID: "m1", ChatID: "chat-1", UserID: "user-1", Role: chatdb.RoleUser, Parts: []chatdb.Part{{Type: chatdb.PartTypeText, Text: "Hi"}}, CreatedAt: base},
		{ID: "m2", ChatID: "chat-1", UserID: "user-1", Role: chatdb.RoleAssistant, Parts: []chatdb.Part{{Type: chatdb.PartTypeText, Text: "Hello!"}}, CreatedAt: base.Add(time.Second)},
	}
	provider := &fakeProvider{response: assistantResponse("Sure.")}
	// Augmentation failing must not abort the turn or duplicate messages.
	searcher := &fakeSearcher{err: errors.New("search backend down")}
	h := chat.NewHandler(store, provider, &fakeTitler{title: "unused"}, searcher, 5, time.Minute)

	res := doPost(h, postBody(t, "chat-1", "m3", "One more thing", "chat-model"), owner())

	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, store.msgs, 4)
	ids := []string{store.msgs[0].ID, store.msgs[1].ID, store.msgs[2].ID}
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
	assert.Equal(t, chatdb.RoleAssistant, store.msgs[3].Role)

	// Full history including the new user message goes to the provider.
	require.NotNil(t, provider.req)
	require.Len(t, provider.req.Messages, 3)
	assert.NotContains(t, provider.req.System, "Supplementary context")
	assert.Equal(t, "One more thing", searcher.query)
}

func TestAugmentationContextForwarded(t *testing.T) {
	store := newFakeStore()
	store.chats["chat-1"] = chatdb.Chat{ID: "chat-1", UserID: "user-1"}
	provider := &fakeProvider{response: assistantResponse("ok")}
	h := chat.NewHandler(store, provider, &fakeTitler{}, &fakeSearcher{result: `{"title":"Boston"}`}, 5, time.Minute)

	res := doPost(h, postBody(t, "chat-1", "m1", "Tell me about Boston", "chat-model"), owner())

	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, provider.req)
	assert.Contains(t, provider.req.System, `{"title":"Boston"}`)
}

func TestReasoningModelDisablesTools(t *testing.T) {
	store := newFakeStore()
	store.chats["chat-1"] = chatdb.Chat{ID: "chat-1", UserID: "user-1"}
	provider := &fakeProvider{
		events: []llm.Event{
			{Type: llm.EventReasoning, Text: "Considering the question."},
			{Type: llm.EventTextDelta, Text: "The answer is 42."},
		},
		response: assistantResponse("The answer is 42."),
	}
	h := chat.NewHandler(store, provider, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

	res := doPost(h, postBody(t, "chat-1", "m1", "Why?", "chat-model-reasoning"), owner())

	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, provider.req)
	assert.Empty(t, provider.req.ActiveTools)
	assert.Equal(t, []string{"reasoning", "text-delta", "finish"}, sseTypes(t, res.Body.String()))
}

func TestInvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: "{"},
		{name: "missing chat id", body: `{"message":{"id":"m1","role":"user","parts":[{"type":"text","text":"hi"}]},"selectedChatModel":"chat-model"}`},
		{name: "unknown model", body: `{"id":"c1","message":{"id":"m1","role":"user","parts":[{"type":"text","text":"hi"}]},"selectedChatModel":"gpt-999"}`},
		{name: "assistant role", body: `{"id":"c1","message":{"id":"m1","role":"assistant","parts":[{"type":"text","text":"hi"}]},"selectedChatModel":"chat-model"}`},
		{name: "empty parts", body: `{"id":"c1","message":{"id":"m1","role":"user","parts":[]},"selectedChatModel":"chat-model"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			h := chat.NewHandler(store, &fakeProvider{}, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

			res := doPost(h, bytes.NewReader([]byte(tc.body)), owner())

			assert.Equal(t, http.StatusBadRequest, res.Code)
			// Validation failures terminate before any store access.
			assert.Zero(t, store.reads)
			assert.Empty(t, store.msgs)
			assert.Empty(t, store.chats)
		})
	}
}

func TestUnauthorized(t *testing.T) {
	store := newFakeStore()
	h := chat.NewHandler(store, &fakeProvider{}, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

	res := doPost(h, postBody(t, "chat-1", "m1", "hi", "chat-model"), nil)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Empty(t, store.msgs)
	assert.Empty(t, store.chats)
}

func TestQuotaExceeded(t *testing.T) {
	store := newFakeStore()
	store.count = entitlements.ForTier(entitlements.TierGuest).MaxMessagesPerDay
	h := chat.NewHandler(store, &fakeProvider{}, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

	ident := &auth.Identity{UserID: "guest-1", Tier: entitlements.TierGuest}
	res := doPost(h, postBody(t, "chat-1", "m1", "hi", "chat-model"), ident)

	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Contains(t, res.Body.String(), "exceeded your maximum number of messages")
	assert.Empty(t, store.msgs)
	assert.Empty(t, store.chats)
}

func TestForbidden(t *testing.T) {
	store := newFakeStore()
	store.chats["chat-1"] = chatdb.Chat{ID: "chat-1", UserID: "someone-else"}
	h := chat.NewHandler(store, &fakeProvider{}, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

	res := doPost(h, postBody(t, "chat-1", "m1", "hi", "chat-model"), owner())

	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Empty(t, store.msgs)
}

func TestProviderFailureKeepsUserMessage(t *testing.T) {
	store := newFakeStore()
	store.chats["chat-1"] = chatdb.Chat{ID: "chat-1", UserID: "user-1"}
	provider := &fakeProvider{
		events: []llm.Event{{Type: llm.EventTextDelta, Text: "partial"}},
		err:    errors.New("provider closed the stream"),
	}
	h := chat.NewHandler(store, provider, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

	res := doPost(h, postBody(t, "chat-1", "m1", "hi", "chat-model"), owner())

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{"text-delta", "error"}, sseTypes(t, res.Body.String()))
	assert.Contains(t, res.Body.String(), "Oops, an error occurred!")

	// The user message was persisted before the provider call and stays.
	require.Len(t, store.msgs, 1)
	assert.Equal(t, chatdb.RoleUser, store.msgs[0].Role)
}

func TestAssistantSaveRetried(t *testing.T) {
	store := newFakeStore()
	store.chats["chat-1"] = chatdb.Chat{ID: "chat-1", UserID: "user-1"}
	provider := &fakeProvider{response: assistantResponse("ok")}
	h := chat.NewHandler(store, provider, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

	// The first save call persists the user message. Fail the first
	// assistant attempt and let the retry succeed.
	store.failCall = 2

	res := doPost(h, postBody(t, "chat-1", "m1", "hi", "chat-model"), owner())

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 3, store.saveCalls)
	require.Len(t, store.msgs, 2)
	assert.Equal(t, chatdb.RoleAssistant, store.msgs[1].Role)
}

func TestFinishSentWhenAssistantSaveFails(t *testing.T) {
	store := newFakeStore()
	store.chats["chat-1"] = chatdb.Chat{ID: "chat-1", UserID: "user-1"}
	provider := &fakeProvider{
		events:   []llm.Event{{Type: llm.EventTextDelta, Text: "ok"}},
		response: assistantResponse("ok"),
	}
	h := chat.NewHandler(store, provider, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

	// Every save after the user message fails, exhausting the retries.
	store.failFrom = 2

	res := doPost(h, postBody(t, "chat-1", "m1", "hi", "chat-model"), owner())

	// The client still gets the complete stream with its terminal frame;
	// only the best-effort persistence is lost.
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{"text-delta", "finish"}, sseTypes(t, res.Body.String()))
	require.Len(t, store.msgs, 1)
	assert.Equal(t, chatdb.RoleUser, store.msgs[0].Role)
}

func TestModelEntitlement(t *testing.T) {
	store := newFakeStore()
	store.chats["chat-1"] = chatdb.Chat{ID: "chat-1", UserID: "guest-1"}
	provider := &fakeProvider{response: assistantResponse("ok")}
	h := chat.NewHandler(store, provider, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

	// Models in the tier's table pass the entitlement gate.
	ident := &auth.Identity{UserID: "guest-1", Tier: entitlements.TierGuest}
	res := doPost(h, postBody(t, "chat-1", "m1", "hi", "chat-model-reasoning"), ident)
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, store.msgs, 2)
}

func TestNoAssistantMessageLogged(t *testing.T) {
	store := newFakeStore()
	store.chats["chat-1"] = chatdb.Chat{ID: "chat-1", UserID: "user-1"}
	provider := &fakeProvider{response: []chatdb.Message{}}
	h := chat.NewHandler(store, provider, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

	res := doPost(h, postBody(t, "chat-1", "m1", "hi", "chat-model"), owner())

	// The stream already completed for the client; the missing assistant
	// message is an internal contract violation, not a user error.
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{"finish"}, sseTypes(t, res.Body.String()))
	require.Len(t, store.msgs, 1)
	assert.Equal(t, chatdb.RoleUser, store.msgs[0].Role)
}

func TestClientDisconnectAbandonsTurn(t *testing.T) {
	store := newFakeStore()
	store.chats["chat-1"] = chatdb.Chat{ID: "chat-1", UserID: "user-1"}
	provider := &fakeProvider{response: assistantResponse("never delivered")}
	h := chat.NewHandler(store, provider, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", postBody(t, "chat-1", "m1", "hi", "chat-model"))
	req = req.WithContext(auth.WithIdentity(ctx, *owner()))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	// The canceled request aborts provider work; no assistant message is
	// persisted for the abandoned turn.
	for _, m := range store.msgs {
		assert.NotEqual(t, chatdb.RoleAssistant, m.Role,
			fmt.Sprintf("unexpected assistant message %q", m.ID))
	}
}

func TestIdempotentUserMessageSave(t *testing.T) {
	store := newFakeStore()
	store.chats["chat-1"] = chatdb.Chat{ID: "chat-1", UserID: "user-1"}
	provider := &fakeProvider{response: assistantResponse("ok")}
	h := chat.NewHandler(store, provider, &fakeTitler{}, &fakeSearcher{}, 5, time.Minute)

	res := doPost(h, postBody(t, "chat-1", "m1", "hi", "chat-model"), owner())
	require.Equal(t, http.StatusOK, res.Code)

	// A retried turn with the same message ID does not duplicate it.
	provider.response = assistantResponse("ok again")
	res = doPost(h, postBody(t, "chat-1", "m1", "hi", "chat-model"), owner())
	require.Equal(t, http.StatusOK, res.Code)

	var userCount int
	for _, m := range store.msgs {
		if m.Role == chatdb.RoleUser {
			userCount++
		}
	}
	assert.Equal(t, 1, userCount)
}
