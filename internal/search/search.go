// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package search retrieves supplementary context for a chat turn. It is a
// best-effort capability: callers log and swallow its failures.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	discoveryengine "cloud.google.com/go/discoveryengine/apiv1"
	"cloud.google.com/go/discoveryengine/apiv1/discoveryenginepb"
	"google.golang.org/api/iterator"
)

const maxResults = 5

// NewClient returns a Client querying the given discovery engine.
func NewClient(search *discoveryengine.SearchClient, engine string) *Client {
	return &Client{
		search: search,
		engine: engine,
	}
}

// Client wraps a discovery engine search client for context augmentation.
type Client struct {
	search *discoveryengine.SearchClient
	engine string
}

// Context searches for the query and returns retrieved results rendered as
// JSON lines suitable for inclusion in a system prompt. An empty string
// means nothing was retrieved.
func (c *Client) Context(ctx context.Context, query string) (string, error) {
	it := c.search.Search(ctx, &discoveryenginepb.SearchRequest{
		ServingConfig: c.engine + "/servingConfigs/default_search",
		Query:         query,
		PageSize:      maxResults,
	})

	var sb strings.Builder
	for range maxResults {
		res, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("search: getting search result: %w", err)
		}
		data := res.GetDocument().GetDerivedStructData()
		if data == nil {
			data = res.GetDocument().GetStructData()
		}
		if data == nil {
			continue
		}
		line, err := json.Marshal(data.AsMap())
		if err != nil {
			return "", fmt.Errorf("search: marshalling search result: %w", err)
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
