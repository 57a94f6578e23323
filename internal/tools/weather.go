// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const openMeteoURL = "https://api.open-meteo.com/v1/forecast"

// NewWeather returns the getWeather tool. baseURL overrides the Open-Meteo
// endpoint when non-empty.
func NewWeather(client *http.Client, baseURL string) *Weather {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = openMeteoURL
	}
	return &Weather{client: client, baseURL: baseURL}
}

// Weather fetches the current weather at a location from Open-Meteo.
type Weather struct {
	client  *http.Client
	baseURL string
}

func (w *Weather) Name() string {
	return "getWeather"
}

func (w *Weather) Description() string {
	return "Get the current weather at a location"
}

func (w *Weather) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"latitude": map[string]any{
				"type":        "number",
				"description": "The latitude of the location.",
			},
			"longitude": map[string]any{
				"type":        "number",
				"description": "The longitude of the location.",
			},
		},
		"required": []string{"latitude", "longitude"},
	}
}

type weatherArgs struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (w *Weather) Run(ctx context.Context, args json.RawMessage) (any, error) {
	var a weatherArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("tools: unmarshalling weather args: %w", err)
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(a.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(a.Longitude, 'f', -1, 64))
	q.Set("current", "temperature_2m")
	q.Set("hourly", "temperature_2m")
	q.Set("daily", "sunrise,sunset")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("tools: creating weather request: %w", err)
	}
	res, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tools: sending weather request: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode != http.StatusOK {
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("tools: reading weather error body: %w", err)
		}
		return nil, fmt.Errorf("tools: weather request failed with status %d: %s", res.StatusCode, body) //nolint:err113
	}

	var forecast map[string]any
	if err := json.NewDecoder(res.Body).Decode(&forecast); err != nil {
		return nil, fmt.Errorf("tools: decoding weather response: %w", err)
	}
	return forecast, nil
}
