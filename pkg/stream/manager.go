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

// Package stream owns the live connection to the event source: a websocket
// push transport with negotiate handshake and bounded reconnect backoff,
// falling back to adaptive-interval polling. One Manager instance serves one
// session; views consume its buffer snapshots and connection health.
package stream

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/reportmate/fleetfeed/pkg/api"
	"github.com/reportmate/fleetfeed/pkg/feed"
	"github.com/reportmate/fleetfeed/pkg/logger"
	"github.com/reportmate/fleetfeed/pkg/models"
	"github.com/reportmate/fleetfeed/pkg/sanitize"
)

// Fetcher is the HTTP collaborator surface the manager depends on.
// *api.Client is the production implementation.
type Fetcher interface {
	FetchEvents(ctx context.Context, limit int) ([]models.RawEvent, error)
	Negotiate(ctx context.Context, query url.Values) (*models.NegotiateResponse, error)
	APIKey() string
}

// Manager runs the transport state machine. All buffer and health mutation
// happens on the manager goroutine or inside the buffer's own lock; teardown
// is a single Stop call that closes the transport, cancels pending waits, and
// guarantees no state updates afterwards.
type Manager struct {
	config     Config
	fetcher    Fetcher
	dial       Dialer
	clock      Clock
	buffer     *feed.Buffer
	normalizer *feed.Normalizer
	logger     logger.Logger

	mu     sync.RWMutex
	health models.ConnectionHealth
	conn   Conn

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	updates   chan struct{}
}

// New creates a Manager. A nil fetcher is constructed from the config's base
// URL; a nil clock defaults to the real clock.
func New(config *Config, fetcher Fetcher, clock Clock, log logger.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	if fetcher == nil {
		client, err := api.NewClient(config.APIBaseURL, config.APIKey, log)
		if err != nil {
			return nil, err
		}

		fetcher = client
	}

	if clock == nil {
		clock = realClock{}
	}

	return &Manager{
		config:     *config,
		fetcher:    fetcher,
		dial:       defaultDialer,
		clock:      clock,
		buffer:     feed.NewBuffer(config.BufferSize),
		normalizer: feed.NewNormalizer(sanitize.New(sanitize.DefaultLimits())),
		logger:     log,
		health:     models.ConnectionHealth{Status: models.StatusConnecting},
		done:       make(chan struct{}),
		updates:    make(chan struct{}, 1),
	}, nil
}

// Start runs the transport loop until ctx is canceled or Stop is called.
// It implements the lifecycle.Service interface.
func (m *Manager) Start(ctx context.Context) error {
	m.wg.Add(1)
	defer m.wg.Done()

	if m.config.EnableLiveTransport {
		m.logger.Info().Msg("Starting live event feed with push transport")

		if stopped := m.runPush(ctx); stopped {
			return ctx.Err()
		}
	} else {
		m.logger.Info().Msg("Live transport disabled, starting in polling mode")
	}

	// One-way transition: once a session lands in polling it stays there.
	return m.runPolling(ctx)
}

// Stop tears the manager down: no state updates land after it returns, even
// when a fetch is still in flight. The wait for the manager goroutine is
// bounded by ctx. It implements the lifecycle.Service interface.
func (m *Manager) Stop(ctx context.Context) error {
	m.closeOnce.Do(func() {
		close(m.done)
	})

	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()

	waited := make(chan struct{})

	go func() {
		m.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health returns the current connection health snapshot.
func (m *Manager) Health() models.ConnectionHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.health
}

// Events returns a copy of the buffered events, newest first.
func (m *Manager) Events() []models.Event {
	return m.buffer.Snapshot()
}

// Bundles returns the display view of the buffer with same-device bursts
// grouped per the configured window.
func (m *Manager) Bundles() []models.Bundle {
	return feed.Bundles(m.buffer.Snapshot(), time.Duration(m.config.BundleWindow))
}

// Updates exposes a coalesced change notification channel for render loops.
func (m *Manager) Updates() <-chan struct{} {
	return m.updates
}

func (m *Manager) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-m.done:
		return true
	default:
		return false
	}
}

// wait sleeps for d, returning false if teardown interrupted the wait.
func (m *Manager) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-m.done:
		return false
	case <-m.clock.After(d):
		return true
	}
}

func (m *Manager) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

func (m *Manager) setStatus(status models.ConnectionStatus) {
	m.mu.Lock()
	m.health.Status = status
	m.mu.Unlock()

	m.notify()
}

// recordSuccess notes a successful receive: status, lastUpdate, and the
// consecutive-error counter reset. A zero latency means the receive was a
// push message rather than a poll round trip.
func (m *Manager) recordSuccess(status models.ConnectionStatus, latency time.Duration) {
	m.mu.Lock()
	m.health.Status = status
	m.health.LastUpdate = m.clock.Now()
	m.health.ConsecutiveErrors = 0

	if latency > 0 {
		m.health.Latency = latency
	}
	m.mu.Unlock()

	m.notify()
}

func (m *Manager) recordFailure(status models.ConnectionStatus) int {
	m.mu.Lock()
	m.health.Status = status
	m.health.ConsecutiveErrors++
	errs := m.health.ConsecutiveErrors
	m.mu.Unlock()

	m.notify()

	return errs
}

func (m *Manager) consecutiveErrors() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.health.ConsecutiveErrors
}
