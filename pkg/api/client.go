/*
 * Copyright 2026 ReportMate.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api implements the HTTP client for the two collaborator endpoints
// the feed depends on: the events list and the push-transport negotiation.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/reportmate/fleetfeed/pkg/logger"
	"github.com/reportmate/fleetfeed/pkg/models"
)

const (
	eventsPath    = "/api/events"
	negotiatePath = "/api/negotiate"

	defaultHTTPTimeout = 15 * time.Second

	apiKeyHeader = "X-API-Key"
)

var (
	// ErrBaseURLRequired indicates the client was constructed without an
	// endpoint base.
	ErrBaseURLRequired = errors.New("api base url is required")

	errUnexpectedStatus = errors.New("unexpected response status")
	errEventsNotOK      = errors.New("events endpoint reported failure")
	errNegotiateFailed  = errors.New("negotiate endpoint reported failure")
	errEmptyTicket      = errors.New("negotiate response carried no url")
)

// Client talks to the events-list and negotiate endpoints with API-key
// authentication and bounded request lifetimes.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a Client for the given endpoint base. An empty apiKey
// disables the auth header.
func NewClient(baseURL, apiKey string, log logger.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     log,
	}, nil
}

// FetchEvents retrieves up to limit raw event records. The request is bounded
// by ctx; callers supply a deadline so a hung fetch never blocks the next
// scheduled poll.
func (c *Client) FetchEvents(ctx context.Context, limit int) ([]models.RawEvent, error) {
	endpoint := c.baseURL + eventsPath + "?limit=" + strconv.Itoa(limit)

	var resp models.EventsResponse

	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", errEventsNotOK, resp.Error)
		}

		return nil, errEventsNotOK
	}

	return resp.Events, nil
}

// Negotiate requests a push-transport ticket. A response without a url, or
// carrying an error field, counts as failure; callers fall back to polling.
func (c *Client) Negotiate(ctx context.Context, query url.Values) (*models.NegotiateResponse, error) {
	endpoint := c.baseURL + negotiatePath
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var resp models.NegotiateResponse

	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", errNegotiateFailed, resp.Error)
	}

	if resp.URL == "" {
		return nil, errEmptyTicket
	}

	return &resp, nil
}

// APIKey returns the key the client authenticates with, for reuse on the
// push transport handshake.
func (c *Client) APIKey() string {
	return c.apiKey
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("endpoint", endpoint).
			Msg("Non-OK response from API")

		return fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
