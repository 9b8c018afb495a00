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

package feed

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/reportmate/fleetfeed/pkg/models"
)

// DefaultWindow is the bundling time window: events from the same device
// whose timestamps fall within this interval of each other collapse into one
// display row. Managed endpoints report many modules in a burst, so a window
// of a couple of minutes absorbs one collection run.
const DefaultWindow = 2 * time.Minute

// Bundles groups near-simultaneous same-device events from a newest-first
// event list into display bundles. It is a pure derived view: the input is
// never mutated, and the same input always yields the same output.
// A non-positive window falls back to DefaultWindow.
func Bundles(events []models.Event, window time.Duration) []models.Bundle {
	if window <= 0 {
		window = DefaultWindow
	}

	bundles := make([]models.Bundle, 0, len(events))

	// Index of the open bundle per device plus the timestamp of its oldest
	// member. The window slides: a candidate joins when it is within the
	// window of the member admitted most recently, not of the bundle head.
	type openBundle struct {
		idx    int
		oldest time.Time
	}

	open := make(map[string]*openBundle)

	for _, event := range events {
		ob, ok := open[event.Device]
		if ok && ob.oldest.Sub(event.Timestamp) <= window {
			bundle := &bundles[ob.idx]
			bundle.EventIDs = append(bundle.EventIDs, event.ID)
			bundle.Events = append(bundle.Events, event)
			bundle.Count++
			ob.oldest = event.Timestamp

			continue
		}

		bundles = append(bundles, models.Bundle{
			EventIDs:  []string{event.ID},
			Device:    event.Device,
			Count:     1,
			Timestamp: event.Timestamp,
			Events:    []models.Event{event},
		})

		open[event.Device] = &openBundle{
			idx:    len(bundles) - 1,
			oldest: event.Timestamp,
		}
	}

	for i := range bundles {
		finalize(&bundles[i])
	}

	return bundles
}

// finalize fills the derived fields once membership is settled.
func finalize(b *models.Bundle) {
	seen := make(map[models.EventKind]struct{}, len(b.Events))
	kinds := make([]models.EventKind, 0, len(b.Events))

	for _, event := range b.Events {
		if _, ok := seen[event.Kind]; ok {
			continue
		}

		seen[event.Kind] = struct{}{}
		kinds = append(kinds, event.Kind)
	}

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	b.BundledKinds = kinds
	b.Message = bundleMessage(b)
}

func bundleMessage(b *models.Bundle) string {
	if b.Count == 1 {
		event := b.Events[0]
		if event.Message != "" {
			return event.Message
		}

		return fmt.Sprintf("%s event", event.Kind)
	}

	names := make([]string, 0, len(b.BundledKinds))
	for _, kind := range b.BundledKinds {
		names = append(names, string(kind))
	}

	return fmt.Sprintf("%d events: %s", b.Count, strings.Join(names, ", "))
}
