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

package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportmate/fleetfeed/pkg/logger"
	"github.com/reportmate/fleetfeed/pkg/models"
)

// Full push path over a real websocket: negotiate against an HTTP server,
// dial with the production dialer, receive one event frame.
func TestManagerPushOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	hold := make(chan struct{})

	mux := http.NewServeMux()

	mux.HandleFunc("/api/events", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(models.EventsResponse{Success: true})
	})

	mux.HandleFunc("/api/stream", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ticket-1", r.Header.Get("Authorization"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		err = conn.WriteJSON(models.StreamEnvelope{
			Type:      "event",
			Data:      models.RawEvent{"id": "ws-1", "device": "d1", "kind": "success"},
			Timestamp: time.Now(),
		})
		assert.NoError(t, err)

		<-hold
	})

	server := httptest.NewServer(mux)
	defer server.Close()
	defer close(hold)

	mux.HandleFunc("/api/negotiate", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(models.NegotiateResponse{
			URL:         "ws://" + strings.TrimPrefix(server.URL, "http://") + "/api/stream",
			AccessToken: "ticket-1",
		})
	})

	cfg := Config{
		EnableLiveTransport: true,
		APIBaseURL:          server.URL,
		ReconnectAttempts:   1,
	}

	m, err := New(&cfg, nil, nil, logger.NewTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startDone := make(chan struct{})

	go func() {
		defer close(startDone)
		_ = m.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(m.Events()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "ws-1", m.Events()[0].ID)
	assert.Equal(t, models.StatusConnected, m.Health().Status)

	require.NoError(t, m.Stop(context.Background()))

	select {
	case <-startDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
