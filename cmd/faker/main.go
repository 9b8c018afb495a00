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

// cmd/faker/main.go
//
// faker simulates a ReportMate backend for development and demos: it serves
// the events-list and negotiate endpoints plus a websocket push stream, and
// generates a rolling feed of synthetic device events seeded from real host
// telemetry.
package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	mathrand "math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/reportmate/fleetfeed/pkg/config"
	"github.com/reportmate/fleetfeed/pkg/httpx"
	"github.com/reportmate/fleetfeed/pkg/lifecycle"
	"github.com/reportmate/fleetfeed/pkg/logger"
	"github.com/reportmate/fleetfeed/pkg/models"
)

//go:embed config.json
var defaultConfigTemplate []byte

var (
	errListenAddrRequired = errors.New("listen_addr is required")
	errDeviceCountInvalid = errors.New("device_count must be > 0")
	errErrorRatioInvalid  = errors.New("error_ratio must be within [0, 1]")
)

const (
	defaultHistorySize  = 200
	writeWait           = 5 * time.Second
	pingInterval        = 30 * time.Second
	defaultFetchLimit   = 50
	shutdownDrainPeriod = 2 * time.Second
)

// FakerConfig configures the simulator.
type FakerConfig struct {
	ListenAddr    string          `json:"listen_addr"`
	APIKey        string          `json:"api_key"`
	DeviceCount   int             `json:"device_count"`
	EventInterval models.Duration `json:"event_interval"`
	ErrorRatio    float64         `json:"error_ratio"`
	BurstSize     int             `json:"burst_size"`
	BurstEvery    models.Duration `json:"burst_every"`
	HistorySize   int             `json:"history_size"`
	Logging       *logger.Config  `json:"logging,omitempty"`
}

// Validate implements config.Validator.
func (c *FakerConfig) Validate() error {
	if c.ListenAddr == "" {
		return errListenAddrRequired
	}

	if c.DeviceCount <= 0 {
		return errDeviceCountInvalid
	}

	if c.ErrorRatio < 0 || c.ErrorRatio > 1 {
		return errErrorRatioInvalid
	}

	if c.EventInterval <= 0 {
		c.EventInterval = models.Duration(2 * time.Second)
	}

	if c.BurstSize <= 0 {
		c.BurstSize = 4
	}

	if c.BurstEvery <= 0 {
		c.BurstEvery = models.Duration(45 * time.Second)
	}

	if c.HistorySize <= 0 {
		c.HistorySize = defaultHistorySize
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to faker config file (defaults to embedded config)")
	listenAddr := flag.String("listen", "", "Override listen address")
	flag.Parse()

	ctx := context.Background()

	var cfg FakerConfig

	if *configPath != "" {
		cfgLoader := config.NewConfig(nil)
		if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
			return err
		}
	} else {
		if err := json.Unmarshal(defaultConfigTemplate, &cfg); err != nil {
			return fmt.Errorf("failed to parse embedded config: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	fakerLogger, err := lifecycle.CreateComponentLogger("faker", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	sim := newSimulator(&cfg, fakerLogger)

	return lifecycle.Run(ctx, sim, fakerLogger)
}

// simulator generates synthetic device events and serves them over the same
// three endpoints the real backend exposes.
type simulator struct {
	config  FakerConfig
	logger  logger.Logger
	devices []string

	mu      sync.RWMutex
	history []models.RawEvent
	subs    map[chan models.StreamEnvelope]struct{}

	server    *http.Server
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSimulator(cfg *FakerConfig, log logger.Logger) *simulator {
	devices := make([]string, 0, cfg.DeviceCount)
	for i := 0; i < cfg.DeviceCount; i++ {
		devices = append(devices, fakeSerial())
	}

	return &simulator{
		config:  *cfg,
		logger:  log,
		devices: devices,
		subs:    make(map[chan models.StreamEnvelope]struct{}),
		done:    make(chan struct{}),
	}
}

// fakeSerial produces a plausible hardware serial.
func fakeSerial() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "RM-" + uuid.NewString()[:8]
	}

	return "RM-" + strings.ToUpper(hex.EncodeToString(buf))
}

// Start implements lifecycle.Service.
func (s *simulator) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/negotiate", s.handleNegotiate)
	mux.HandleFunc("/api/stream", s.handleStream)

	auth := httpx.APIKeyMiddleware(s.config.APIKey, s.logger)

	s.server = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           httpx.CommonMiddleware(auth(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.generate(ctx)
	}()

	s.logger.Info().
		Str("listen_addr", s.config.ListenAddr).
		Int("devices", len(s.devices)).
		Msg("Faker serving synthetic fleet events")

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Stop implements lifecycle.Service.
func (s *simulator) Stop(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	var err error

	if s.server != nil {
		drainCtx, cancel := context.WithTimeout(ctx, shutdownDrainPeriod)
		defer cancel()

		err = s.server.Shutdown(drainCtx)
	}

	s.wg.Wait()

	return err
}

// generate emits one synthetic event per interval plus periodic same-device
// bursts, which exercise feed bundling downstream.
func (s *simulator) generate(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.config.EventInterval))
	defer ticker.Stop()

	burst := time.NewTicker(time.Duration(s.config.BurstEvery))
	defer burst.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.publish(s.randomEvent(s.randomDevice()))
		case <-burst.C:
			device := s.randomDevice()
			for i := 0; i < s.config.BurstSize; i++ {
				s.publish(s.collectionEvent(device, i))
			}
		}
	}
}

func (s *simulator) randomDevice() string {
	return s.devices[mathrand.Intn(len(s.devices))]
}

func (s *simulator) randomEvent(device string) models.RawEvent {
	kind := "info"

	switch {
	case mathrand.Float64() < s.config.ErrorRatio:
		kind = "error"
	case mathrand.Float64() < 0.3:
		kind = "system"
	case mathrand.Float64() < 0.2:
		kind = "success"
	}

	return models.RawEvent{
		"id":        uuid.NewString(),
		"device":    device,
		"kind":      kind,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message":   eventMessage(kind),
		"payload":   s.telemetryPayload(),
	}
}

func eventMessage(kind string) string {
	switch kind {
	case "error":
		return "Module collection failed"
	case "system":
		return "System report received"
	case "success":
		return "Data collection completed"
	default:
		return "Device checked in"
	}
}

// collectionEvent fabricates one member of a multi-module collection burst.
func (s *simulator) collectionEvent(device string, seq int) models.RawEvent {
	modules := []string{"hardware", "installs", "profiles", "security", "network", "applications"}

	count := mathrand.Intn(len(modules)-1) + 1

	return models.RawEvent{
		"id":        uuid.NewString(),
		"device":    device,
		"kind":      "success",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message":   fmt.Sprintf("Collected module %d", seq+1),
		"payload": map[string]interface{}{
			"moduleCount":    count,
			"enabledModules": toAny(modules[:count]),
			"collectionType": "full",
			"deviceName":     device,
			"clientVersion":  "2026.2.1",
		},
	}
}

func toAny(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}

	return out
}

// telemetryPayload samples the faker host so payloads look like real module
// reports rather than lorem ipsum.
func (s *simulator) telemetryPayload() map[string]interface{} {
	payload := map[string]interface{}{
		"reportedAt": time.Now().UTC().Format(time.RFC3339),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		payload["cpuPercent"] = math.Round(percents[0]*10) / 10
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		payload["memoryUsedPercent"] = math.Round(vm.UsedPercent*10) / 10
	}

	if info, err := host.Info(); err == nil {
		payload["os"] = info.Platform
		payload["osVersion"] = info.PlatformVersion
		payload["uptimeSeconds"] = info.Uptime
	}

	return payload
}

// publish appends to history and fans out to websocket subscribers.
func (s *simulator) publish(raw models.RawEvent) {
	envelope := models.StreamEnvelope{
		Type:      "event",
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	s.history = append([]models.RawEvent{raw}, s.history...)

	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}

	for sub := range s.subs {
		select {
		case sub <- envelope:
		default: // slow subscriber, drop the frame
		}
	}
	s.mu.Unlock()
}

func (s *simulator) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultFetchLimit

	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		if n, err := strconv.Atoi(rawLimit); err == nil && n > 0 {
			limit = n
		}
	}

	s.mu.RLock()
	events := s.history
	if len(events) > limit {
		events = events[:limit]
	}

	out := make([]models.RawEvent, len(events))
	copy(out, events)
	s.mu.RUnlock()

	writeJSON(w, models.EventsResponse{Success: true, Events: out})
}

func (s *simulator) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}

	writeJSON(w, models.NegotiateResponse{
		URL:         fmt.Sprintf("%s://%s/api/stream", scheme, r.Host),
		AccessToken: uuid.NewString(),
	})
}

func (s *simulator) handleStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Failed to upgrade to websocket")
		return
	}

	s.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Stream subscriber connected")

	sub := make(chan models.StreamEnvelope, 32)

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()

		_ = conn.Close()

		s.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Stream subscriber disconnected")
	}()

	// Reader goroutine: nothing inbound matters, but reads surface closes.
	readerGone := make(chan struct{})

	go func() {
		defer close(readerGone)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-readerGone:
			return
		case envelope := <-sub:
			if err := s.writeEnvelope(conn, envelope); err != nil {
				return
			}
		case <-ping.C:
			err := s.writeEnvelope(conn, models.StreamEnvelope{
				Type:      "ping",
				Timestamp: time.Now().UTC(),
			})
			if err != nil {
				return
			}
		}
	}
}

func (s *simulator) writeEnvelope(conn *websocket.Conn, envelope models.StreamEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(envelope)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
