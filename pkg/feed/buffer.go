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
	"sort"
	"sync"

	"github.com/reportmate/fleetfeed/pkg/models"
)

// DefaultBufferSize bounds the event buffer when no size is configured.
const DefaultBufferSize = 50

// Buffer is the authoritative, bounded, newest-first list of recently seen
// events. Event IDs are unique within the buffer: a second event with an
// already-held ID is dropped, never merged or overwritten. Eviction is oldest
// first once the bound is exceeded.
type Buffer struct {
	mu     sync.RWMutex
	max    int
	events []models.Event
	ids    map[string]struct{}
}

// NewBuffer creates a Buffer holding at most max events. A non-positive max
// falls back to DefaultBufferSize.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultBufferSize
	}

	return &Buffer{
		max: max,
		ids: make(map[string]struct{}),
	}
}

// Ingest merges a fetched batch into the buffer and reports how many events
// were genuinely new. The first-ever batch is adopted wholesale; later
// batches contribute only unseen IDs. Bulk merges re-sort the buffer newest
// first before truncating to the bound.
func (b *Buffer) Ingest(batch []models.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := 0

	for _, event := range batch {
		if _, seen := b.ids[event.ID]; seen {
			continue
		}

		b.ids[event.ID] = struct{}{}
		b.events = append(b.events, event)
		added++
	}

	if added > 0 {
		sort.SliceStable(b.events, func(i, j int) bool {
			return b.events[i].Timestamp.After(b.events[j].Timestamp)
		})

		b.truncateLocked()
	}

	return added
}

// IngestOne merges a single pushed event, reporting whether it was new.
// New events are prepended; the buffer is already newest first, so no re-sort
// happens on the push path.
func (b *Buffer) IngestOne(event models.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, seen := b.ids[event.ID]; seen {
		return false
	}

	b.ids[event.ID] = struct{}{}
	b.events = append([]models.Event{event}, b.events...)
	b.truncateLocked()

	return true
}

// Snapshot returns a copy of the buffer contents, newest first.
func (b *Buffer) Snapshot() []models.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Event, len(b.events))
	copy(out, b.events)

	return out
}

// Len returns the current number of buffered events.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.events)
}

func (b *Buffer) truncateLocked() {
	if len(b.events) <= b.max {
		return
	}

	for _, evicted := range b.events[b.max:] {
		delete(b.ids, evicted.ID)
	}

	b.events = b.events[:b.max]
}
