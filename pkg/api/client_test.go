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

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportmate/fleetfeed/pkg/logger"
	"github.com/reportmate/fleetfeed/pkg/models"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("", "", logger.NewTestLogger())
	require.ErrorIs(t, err, ErrBaseURLRequired)
}

func TestFetchEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		_ = json.NewEncoder(w).Encode(models.EventsResponse{
			Success: true,
			Events:  []models.RawEvent{{"id": "e1", "kind": "info"}},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "secret", logger.NewTestLogger())
	require.NoError(t, err)

	events, err := client.FetchEvents(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0]["id"])
}

func TestFetchEventsReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(models.EventsResponse{Success: false, Error: "database offline"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", logger.NewTestLogger())
	require.NoError(t, err)

	_, err = client.FetchEvents(context.Background(), 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database offline")
}

func TestFetchEventsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", logger.NewTestLogger())
	require.NoError(t, err)

	_, err = client.FetchEvents(context.Background(), 50)
	require.Error(t, err)
}

func TestNegotiate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/negotiate", r.URL.Path)

		_ = json.NewEncoder(w).Encode(models.NegotiateResponse{
			URL:         "ws://example/api/stream",
			AccessToken: "token",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", logger.NewTestLogger())
	require.NoError(t, err)

	resp, err := client.Negotiate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ws://example/api/stream", resp.URL)
	assert.Equal(t, "token", resp.AccessToken)
}

func TestNegotiateMalformedTicket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(models.NegotiateResponse{})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", logger.NewTestLogger())
	require.NoError(t, err)

	_, err = client.Negotiate(context.Background(), nil)
	require.ErrorIs(t, err, errEmptyTicket)
}

func TestNegotiateReportedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(models.NegotiateResponse{Error: "hub unavailable"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", logger.NewTestLogger())
	require.NoError(t, err)

	_, err = client.Negotiate(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hub unavailable")
}

func TestRequestsHonorContextCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client, err := NewClient(server.URL, "", logger.NewTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.FetchEvents(ctx, 50)
	require.Error(t, err)
}
