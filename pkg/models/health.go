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

package models

import "time"

// ConnectionStatus describes where the feed currently gets its events from.
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusPolling      ConnectionStatus = "polling"
	StatusReconnecting ConnectionStatus = "reconnecting"
	StatusError        ConnectionStatus = "error"
)

// ConnectionHealth is the ephemeral transport state surfaced to the UI.
// It is recomputed on every transport state change or poll cycle and never
// stored durably.
type ConnectionHealth struct {
	Status            ConnectionStatus `json:"status"`
	LastUpdate        time.Time        `json:"last_update"`
	ConsecutiveErrors int              `json:"consecutive_errors"`
	Latency           time.Duration    `json:"latency,omitempty"`
}
