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

import (
	"time"
)

// EventKind categorizes a fleet event for display and filtering.
type EventKind string

const (
	KindSystem  EventKind = "system"
	KindInfo    EventKind = "info"
	KindError   EventKind = "error"
	KindWarning EventKind = "warning"
	KindSuccess EventKind = "success"
)

// ValidKind reports whether k is one of the recognized event categories.
// Records carrying any other kind are dropped at the normalization boundary.
func ValidKind(k EventKind) bool {
	switch k {
	case KindSystem, KindInfo, KindError, KindWarning, KindSuccess:
		return true
	default:
		return false
	}
}

// RawEvent is an event record as received from the wire, before
// normalization. Field names and types are untrusted.
type RawEvent map[string]interface{}

// Event is the canonical, post-normalization fleet event.
//
// ID is unique within a feed buffer; a second event with the same ID is
// dropped, never merged. Payload is always the sanitized, size-bounded
// summary produced at ingestion, never the raw upstream object.
type Event struct {
	ID        string      `json:"id"`
	Device    string      `json:"device"`
	Kind      EventKind   `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Bundle is a display-only aggregation of events from one device that
// occurred within a short time window. It is derived from buffer contents on
// every render pass and is never persisted.
type Bundle struct {
	EventIDs     []string    `json:"event_ids"`
	Device       string      `json:"device"`
	BundledKinds []EventKind `json:"bundled_kinds"`
	Message      string      `json:"message"`
	Count        int         `json:"count"`
	Timestamp    time.Time   `json:"timestamp"`
	Events       []Event     `json:"events,omitempty"`
}

// StreamEnvelope frames a message on the push transport. Type is one of
// "event", "ping", "error"; Data carries the raw event record for "event"
// frames.
type StreamEnvelope struct {
	Type      string    `json:"type"`
	Data      RawEvent  `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventsResponse is the body of the events-list endpoint.
type EventsResponse struct {
	Success bool       `json:"success"`
	Events  []RawEvent `json:"events"`
	Error   string     `json:"error,omitempty"`
}

// NegotiateResponse is the body of the negotiate endpoint: the push
// transport URL plus an optional short-lived access token.
type NegotiateResponse struct {
	URL         string `json:"url"`
	AccessToken string `json:"accessToken,omitempty"`
	Error       string `json:"error,omitempty"`
}
