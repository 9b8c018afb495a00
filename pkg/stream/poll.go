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
	"time"

	"github.com/reportmate/fleetfeed/pkg/models"
)

// errorsBeforeBackoff is the consecutive-error count at which the poll
// interval switches from the slow tier to exponential backoff.
const errorsBeforeBackoff = 3

// runPolling issues events-list fetches at an adaptive interval until
// teardown. There is no way back to the push transport from here within a
// session.
func (m *Manager) runPolling(ctx context.Context) error {
	m.setStatus(models.StatusPolling)
	m.logger.Info().Msg("Polling for events")

	for {
		gotNew := m.pollOnce(ctx)

		if m.stopping(ctx) {
			return ctx.Err()
		}

		interval := m.nextInterval(gotNew)

		if !m.wait(ctx, interval) {
			return ctx.Err()
		}
	}
}

// pollOnce runs a single bounded fetch-and-merge cycle, reporting whether it
// produced genuinely new events.
func (m *Manager) pollOnce(ctx context.Context) bool {
	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(m.config.PollTimeout))
	defer cancel()

	start := m.clock.Now()

	raws, err := m.fetcher.FetchEvents(fetchCtx, m.config.FetchLimit)

	if m.stopping(ctx) {
		return false
	}

	if err != nil {
		// Surface the degraded state until a fetch succeeds again.
		errs := m.recordFailure(models.StatusError)
		m.logger.Warn().Err(err).Int("consecutive_errors", errs).Msg("Poll fetch failed")

		return false
	}

	latency := m.clock.Now().Sub(start)
	added := m.buffer.Ingest(m.normalizer.NormalizeBatch(raws))

	m.recordSuccess(models.StatusPolling, latency)

	if added > 0 {
		m.logger.Debug().Int("added", added).Dur("latency", latency).Msg("Poll merged new events")
	}

	return added > 0
}

// nextInterval adapts the poll cadence: fast while data is flowing, normal
// when idle, slower under the first failures, then doubling up to the cap.
func (m *Manager) nextInterval(gotNew bool) time.Duration {
	errs := m.consecutiveErrors()

	switch {
	case errs == 0 && gotNew:
		return time.Duration(m.config.PollFastInterval)
	case errs == 0:
		return time.Duration(m.config.PollNormalInterval)
	case errs < errorsBeforeBackoff:
		return time.Duration(m.config.PollSlowInterval)
	default:
		backoff := time.Duration(m.config.PollSlowInterval)
		for i := errorsBeforeBackoff; i <= errs; i++ {
			backoff *= 2
			if backoff >= time.Duration(m.config.PollMaxInterval) {
				return time.Duration(m.config.PollMaxInterval)
			}
		}

		return backoff
	}
}
