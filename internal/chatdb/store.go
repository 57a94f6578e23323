// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package chatdb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
)

// ErrChatNotFound is returned when a chat does not exist in the store.
var ErrChatNotFound = errors.New("chatdb: chat not found")

// NewStore returns a Store backed by firestore.
func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Store provides durable access to chats, messages, and documents.
// Message documents are keyed by message ID, so repeated saves of the
// same message are idempotent.
type Store struct {
	client *firestore.Client
}

func (s *Store) chats() *firestore.CollectionRef {
	return s.client.Collection("chats")
}

func (s *Store) messages() *firestore.CollectionRef {
	return s.client.Collection("messages")
}

// GetChat fetches a chat by ID, returning ErrChatNotFound if it does not
// exist.
func (s *Store) GetChat(ctx context.Context, id string) (*Chat, error) {
	doc, err := s.chats().Where("id", "==", id).Limit(1).Documents(ctx).Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("chatdb: getting chat document: %w", err)
	}
	var chat Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, fmt.Errorf("chatdb: decoding chat document: %w", err)
	}
	return &chat, nil
}

// SaveChat creates a new chat record. It fails if a chat with the same ID
// already exists, so concurrent turns racing to create the same chat have
// exactly one winner.
func (s *Store) SaveChat(ctx context.Context, chat *Chat) error {
	if _, err := s.chats().Doc(chat.ID).Create(ctx, chat); err != nil {
		return fmt.Errorf("chatdb: creating chat document: %w", err)
	}
	return nil
}

// GetMessages returns all messages of a chat ordered ascending by creation
// time.
func (s *Store) GetMessages(ctx context.Context, chatID string) ([]Message, error) {
	docs, err := s.messages().
		Where("chatId", "==", chatID).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("chatdb: getting messages: %w", err)
	}
	msgs := make([]Message, len(docs))
	for i, doc := range docs {
		if err := doc.DataTo(&msgs[i]); err != nil {
			return nil, fmt.Errorf("chatdb: decoding message document: %w", err)
		}
	}
	return msgs, nil
}

// SaveMessages appends messages to the store. Documents are keyed by
// message ID and written with Set, making the operation idempotent per ID.
func (s *Store) SaveMessages(ctx context.Context, msgs []Message) error {
	if err := s.client.RunTransaction(ctx, func(_ context.Context, t *firestore.Transaction) error {
		for _, msg := range msgs {
			if err := t.Set(s.messages().Doc(msg.ID), msg); err != nil {
				return fmt.Errorf("chatdb: setting message document: %w", err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("chatdb: saving messages: %w", err)
	}
	return nil
}

// CountRecentUserMessages counts the user-role messages sent by a user in a
// sliding window anchored to now.
func (s *Store) CountRecentUserMessages(ctx context.Context, userID string, window time.Duration) (int64, error) {
	q := s.messages().
		Where("userId", "==", userID).
		Where("role", "==", string(RoleUser)).
		Where("createdAt", ">", time.Now().Add(-window))
	res, err := q.NewAggregationQuery().WithCount("count").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("chatdb: counting recent messages: %w", err)
	}
	v, ok := res["count"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("chatdb: unexpected count aggregation result: %v", res) //nolint:err113
	}
	return v.GetIntegerValue(), nil
}

const deleteBatchSize = 100

// DeleteChat removes a chat and all of its messages, returning the deleted
// chat record.
func (s *Store) DeleteChat(ctx context.Context, id string) (*Chat, error) {
	chat, err := s.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}

	refs := s.messages().Where("chatId", "==", id).Select().Documents(ctx)
	var msgRefs []*firestore.DocumentRef
	for {
		doc, err := refs.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("chatdb: listing chat messages for delete: %w", err)
		}
		msgRefs = append(msgRefs, doc.Ref)
	}

	var grp errgroup.Group
	for batch := range slices.Chunk(msgRefs, deleteBatchSize) {
		grp.Go(func() error {
			return s.client.RunTransaction(ctx, func(_ context.Context, t *firestore.Transaction) error {
				for _, ref := range batch {
					if err := t.Delete(ref); err != nil {
						return fmt.Errorf("chatdb: deleting message document: %w", err)
					}
				}
				return nil
			})
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, fmt.Errorf("chatdb: deleting chat messages: %w", err)
	}

	if _, err := s.chats().Doc(id).Delete(ctx); err != nil {
		return nil, fmt.Errorf("chatdb: deleting chat document: %w", err)
	}
	return chat, nil
}

// GetChatsByUser returns a user's chats ordered newest first.
func (s *Store) GetChatsByUser(ctx context.Context, userID string, limit int) ([]Chat, error) {
	docs, err := s.chats().
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("chatdb: getting user chats: %w", err)
	}
	chats := make([]Chat, len(docs))
	for i, doc := range docs {
		if err := doc.DataTo(&chats[i]); err != nil {
			return nil, fmt.Errorf("chatdb: decoding chat document: %w", err)
		}
	}
	return chats, nil
}

// SaveDocument writes a document version keyed by document ID.
func (s *Store) SaveDocument(ctx context.Context, doc *Document) error {
	if _, err := s.client.Collection("documents").Doc(doc.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("chatdb: saving document: %w", err)
	}
	return nil
}

// GetDocument fetches a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	snap, err := s.client.Collection("documents").Where("id", "==", id).Limit(1).Documents(ctx).Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, fmt.Errorf("chatdb: document %q not found", id) //nolint:err113
		}
		return nil, fmt.Errorf("chatdb: getting document: %w", err)
	}
	var doc Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("chatdb: decoding document: %w", err)
	}
	return &doc, nil
}

// SaveSuggestions writes writing suggestions for a document.
func (s *Store) SaveSuggestions(ctx context.Context, suggestions []Suggestion) error {
	if err := s.client.RunTransaction(ctx, func(_ context.Context, t *firestore.Transaction) error {
		for _, sg := range suggestions {
			if err := t.Set(s.client.Collection("suggestions").Doc(sg.ID), sg); err != nil {
				return fmt.Errorf("chatdb: setting suggestion document: %w", err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("chatdb: saving suggestions: %w", err)
	}
	return nil
}
