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

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportmate/fleetfeed/pkg/logger"
	"github.com/reportmate/fleetfeed/pkg/models"
)

func TestEmbeddedConfigIsValid(t *testing.T) {
	var cfg FakerConfig

	require.NoError(t, json.Unmarshal(defaultConfigTemplate, &cfg))
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.ListenAddr)
	assert.Positive(t, cfg.DeviceCount)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     FakerConfig
		wantErr error
	}{
		{
			name:    "missing listen addr",
			cfg:     FakerConfig{DeviceCount: 1},
			wantErr: errListenAddrRequired,
		},
		{
			name:    "zero devices",
			cfg:     FakerConfig{ListenAddr: ":0"},
			wantErr: errDeviceCountInvalid,
		},
		{
			name:    "error ratio out of range",
			cfg:     FakerConfig{ListenAddr: ":0", DeviceCount: 1, ErrorRatio: 1.5},
			wantErr: errErrorRatioInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.cfg.Validate(), tt.wantErr)
		})
	}
}

func TestConfigValidationDefaults(t *testing.T) {
	cfg := FakerConfig{ListenAddr: ":0", DeviceCount: 3}

	require.NoError(t, cfg.Validate())
	assert.Positive(t, cfg.EventInterval)
	assert.Positive(t, cfg.BurstSize)
	assert.Positive(t, cfg.HistorySize)
}

func newTestSimulator(t *testing.T) *simulator {
	t.Helper()

	cfg := FakerConfig{ListenAddr: ":0", DeviceCount: 3, HistorySize: 10}
	require.NoError(t, cfg.Validate())

	return newSimulator(&cfg, logger.NewTestLogger())
}

func TestRandomEventShape(t *testing.T) {
	sim := newTestSimulator(t)

	raw := sim.randomEvent(sim.randomDevice())

	assert.NotEmpty(t, raw["id"])
	assert.NotEmpty(t, raw["device"])
	assert.Contains(t, []interface{}{"system", "info", "error", "warning", "success"}, raw["kind"])
	assert.NotEmpty(t, raw["timestamp"])
}

func TestCollectionEventShape(t *testing.T) {
	sim := newTestSimulator(t)

	raw := sim.collectionEvent("RM-TEST01", 0)

	payload, ok := raw["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, payload, "moduleCount")
	assert.Contains(t, payload, "enabledModules")
	assert.Equal(t, "RM-TEST01", payload["deviceName"])
}

func TestHandleEventsRespectsLimit(t *testing.T) {
	sim := newTestSimulator(t)

	for i := 0; i < 8; i++ {
		sim.publish(sim.randomEvent(sim.randomDevice()))
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=3", http.NoBody)

	sim.handleEvents(rec, req)

	var resp models.EventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Events, 3)
}

func TestHandleEventsHistoryBound(t *testing.T) {
	sim := newTestSimulator(t)

	for i := 0; i < 50; i++ {
		sim.publish(sim.randomEvent(sim.randomDevice()))
	}

	sim.mu.RLock()
	defer sim.mu.RUnlock()

	assert.LessOrEqual(t, len(sim.history), sim.config.HistorySize)
}

func TestHandleNegotiate(t *testing.T) {
	sim := newTestSimulator(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/negotiate", http.NoBody)
	req.Host = "localhost:8085"

	sim.handleNegotiate(rec, req)

	var resp models.NegotiateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ws://localhost:8085/api/stream", resp.URL)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestFakeSerialFormat(t *testing.T) {
	serial := fakeSerial()

	assert.Contains(t, serial, "RM-")
	assert.Len(t, serial, 11)
}
