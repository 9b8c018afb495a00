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

// Package feed owns the in-memory live event list: normalization of raw
// records at the ingestion boundary, the bounded deduplicating buffer, and
// the display-side bundler.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reportmate/fleetfeed/pkg/models"
	"github.com/reportmate/fleetfeed/pkg/sanitize"
)

const unknownDevice = "unknown"

// timestampFields are the legacy field names accepted for event time, in
// preference order.
var timestampFields = []string{"timestamp", "ts", "time", "created_at"}

var idFields = []string{"id", "eventId", "event_id"}

var deviceFields = []string{"device", "serial", "serialNumber", "device_id"}

// Normalizer coerces raw wire records into canonical events. All external
// input is treated as untyped and validated exactly once, here.
type Normalizer struct {
	sanitizer *sanitize.Sanitizer
	now       func() time.Time
}

// NewNormalizer creates a Normalizer using the given sanitizer for payloads.
// A nil sanitizer gets default limits.
func NewNormalizer(s *sanitize.Sanitizer) *Normalizer {
	if s == nil {
		s = sanitize.New(sanitize.DefaultLimits())
	}

	return &Normalizer{
		sanitizer: s,
		now:       time.Now,
	}
}

// Normalize converts one raw record into a canonical event. It never fails
// outward: a malformed record becomes a synthetic error-kind event. The
// second return is false only when the record carries a kind outside the
// recognized set, which callers must discard rather than store.
func (n *Normalizer) Normalize(raw models.RawEvent) (event models.Event, keep bool) {
	defer func() {
		if r := recover(); r != nil {
			event = models.Event{
				ID:        n.syntheticID(),
				Device:    unknownDevice,
				Kind:      models.KindError,
				Timestamp: n.now(),
				Message:   fmt.Sprintf("failed to normalize event record: %v", r),
			}
			keep = true
		}
	}()

	if raw == nil {
		raw = models.RawEvent{}
	}

	kind := models.KindInfo

	if rawKind, ok := stringValue(raw, "kind"); ok {
		kind = models.EventKind(strings.ToLower(rawKind))
		if !models.ValidKind(kind) {
			return models.Event{}, false
		}
	}

	event = models.Event{
		ID:        n.eventID(raw),
		Device:    n.device(raw),
		Kind:      kind,
		Timestamp: n.timestamp(raw),
		Payload:   n.sanitizer.Sanitize(raw["payload"]),
	}

	if msg, ok := stringValue(raw, "message"); ok {
		event.Message = msg
	}

	return event, true
}

// NormalizeBatch maps a fetch response through Normalize, dropping records
// with unrecognized kinds.
func (n *Normalizer) NormalizeBatch(raws []models.RawEvent) []models.Event {
	events := make([]models.Event, 0, len(raws))

	for _, raw := range raws {
		if event, keep := n.Normalize(raw); keep {
			events = append(events, event)
		}
	}

	return events
}

func (n *Normalizer) eventID(raw models.RawEvent) string {
	for _, field := range idFields {
		if id, ok := stringValue(raw, field); ok {
			return id
		}
	}

	return n.syntheticID()
}

func (n *Normalizer) syntheticID() string {
	return fmt.Sprintf("event-%d-%s", n.now().UnixMilli(), uuid.NewString()[:8])
}

func (n *Normalizer) device(raw models.RawEvent) string {
	for _, field := range deviceFields {
		if device, ok := stringValue(raw, field); ok {
			return device
		}
	}

	return unknownDevice
}

func (n *Normalizer) timestamp(raw models.RawEvent) time.Time {
	for _, field := range timestampFields {
		switch v := raw[field].(type) {
		case string:
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts
			}
		case float64:
			// epoch milliseconds
			return time.UnixMilli(int64(v)).UTC()
		case time.Time:
			return v
		}
	}

	return n.now()
}

func stringValue(raw models.RawEvent, field string) (string, bool) {
	v, ok := raw[field].(string)
	if !ok || v == "" {
		return "", false
	}

	return v, true
}
