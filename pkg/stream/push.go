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
	"time"

	"github.com/gorilla/websocket"

	"github.com/reportmate/fleetfeed/pkg/models"
)

const apiKeyHeader = "X-API-Key"

// Conn is the subset of a websocket connection the manager uses, extracted
// so push scenarios are testable without a network.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens the push transport at the negotiated URL.
type Dialer func(ctx context.Context, rawURL string, header http.Header) (Conn, error)

func defaultDialer(ctx context.Context, rawURL string, header http.Header) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return nil, err
	}

	return conn, nil
}

// runPush drives the push side of the state machine: negotiate, dial, read
// until failure, then bounded reconnects with exponential backoff. It returns
// true when teardown ended the session, false when the session should fall
// back to polling.
func (m *Manager) runPush(ctx context.Context) (stopped bool) {
	m.setStatus(models.StatusConnecting)

	delay := time.Duration(m.config.ReconnectBaseDelay)
	attempts := 0

	for {
		if m.stopping(ctx) {
			return true
		}

		ticket, err := m.negotiate(ctx)
		if err != nil {
			// Negotiation failure is not retried: the session degrades to
			// polling rather than hammering a broken handshake endpoint.
			m.logger.Warn().Err(err).Msg("Negotiate failed, falling back to polling")
			return m.stopping(ctx)
		}

		conn, err := m.openTransport(ctx, ticket)
		if err != nil {
			if m.stopping(ctx) {
				return true
			}

			m.logger.Warn().Err(err).Int("attempt", attempts+1).Msg("Push transport dial failed")

			attempts++
			if attempts >= m.config.ReconnectAttempts {
				m.logger.Warn().Int("attempts", attempts).Msg("Reconnect attempts exhausted, falling back to polling")
				return m.stopping(ctx)
			}

			m.setStatus(models.StatusReconnecting)

			if !m.wait(ctx, delay) {
				return true
			}

			delay = min(delay*2, time.Duration(m.config.ReconnectMaxDelay))

			continue
		}

		m.logger.Info().Str("url", ticket.URL).Msg("Push transport connected")
		m.recordSuccess(models.StatusConnected, 0)

		attempts = 0
		delay = time.Duration(m.config.ReconnectBaseDelay)

		// Catch up on anything that happened before the socket opened.
		m.catchUp(ctx)

		err = m.readLoop(ctx, conn)

		if m.stopping(ctx) {
			return true
		}

		m.logger.Warn().Err(err).Int("attempt", attempts+1).Msg("Push transport closed")

		attempts++
		if attempts >= m.config.ReconnectAttempts {
			m.logger.Warn().Int("attempts", attempts).Msg("Reconnect attempts exhausted, falling back to polling")
			return false
		}

		m.setStatus(models.StatusReconnecting)

		if !m.wait(ctx, delay) {
			return true
		}

		delay = min(delay*2, time.Duration(m.config.ReconnectMaxDelay))
	}
}

func (m *Manager) negotiate(ctx context.Context) (*models.NegotiateResponse, error) {
	negotiateCtx, cancel := context.WithTimeout(ctx, time.Duration(m.config.NegotiateTimeout))
	defer cancel()

	return m.fetcher.Negotiate(negotiateCtx, nil)
}

func (m *Manager) openTransport(ctx context.Context, ticket *models.NegotiateResponse) (Conn, error) {
	header := http.Header{}

	if ticket.AccessToken != "" {
		header.Set("Authorization", "Bearer "+ticket.AccessToken)
	}

	if key := m.fetcher.APIKey(); key != "" {
		header.Set(apiKeyHeader, key)
	}

	dialCtx, cancel := context.WithTimeout(ctx, time.Duration(m.config.NegotiateTimeout))
	defer cancel()

	conn, err := m.dial(dialCtx, ticket.URL, header)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	return conn, nil
}

// readLoop consumes envelopes until the connection fails or teardown closes
// it. A watcher goroutine closes the socket on cancellation so the blocking
// read always unblocks.
func (m *Manager) readLoop(ctx context.Context, conn Conn) error {
	readDone := make(chan struct{})
	defer close(readDone)

	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		select {
		case <-ctx.Done():
		case <-m.done:
		case <-readDone:
			return
		}

		_ = conn.Close()
	}()

	defer func() {
		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()

		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if m.stopping(ctx) {
			return nil
		}

		m.handleFrame(data)
	}
}

func (m *Manager) handleFrame(data []byte) {
	var envelope models.StreamEnvelope

	if err := json.Unmarshal(data, &envelope); err != nil {
		m.logger.Debug().Err(err).Msg("Dropping malformed push frame")
		return
	}

	switch envelope.Type {
	case "event":
		event, keep := m.normalizer.Normalize(envelope.Data)
		if !keep {
			return
		}

		// A duplicate delivery still counts as a successful receive.
		m.buffer.IngestOne(event)
		m.recordSuccess(models.StatusConnected, 0)
	case "ping":
		m.recordSuccess(models.StatusConnected, 0)
	case "error":
		m.logger.Warn().Str("error", envelope.Error).Msg("Push transport reported error frame")
	default:
		m.logger.Debug().Str("type", envelope.Type).Msg("Ignoring unknown push frame type")
	}
}

// catchUp merges recent history right after the push transport opens, so
// events delivered while the socket was down are not lost.
func (m *Manager) catchUp(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(m.config.PollTimeout))
	defer cancel()

	raws, err := m.fetcher.FetchEvents(fetchCtx, m.config.FetchLimit)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Catch-up fetch failed")
		return
	}

	if m.stopping(ctx) {
		return
	}

	if added := m.buffer.Ingest(m.normalizer.NormalizeBatch(raws)); added > 0 {
		m.notify()
	}
}
