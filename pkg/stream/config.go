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
	"time"

	"github.com/reportmate/fleetfeed/pkg/feed"
	"github.com/reportmate/fleetfeed/pkg/logger"
	"github.com/reportmate/fleetfeed/pkg/models"
)

// Defaults applied by Config.Validate for unset fields.
const (
	defaultNegotiateTimeout = 10 * time.Second
	defaultPollTimeout      = 10 * time.Second

	defaultPollFast   = 3 * time.Second
	defaultPollNormal = 10 * time.Second
	defaultPollSlow   = 10 * time.Second
	defaultPollMax    = 30 * time.Second

	defaultReconnectBase     = 1 * time.Second
	defaultReconnectMax      = 30 * time.Second
	defaultReconnectAttempts = 5
)

// Config parameterizes a feed Manager. One Config covers every consumer of
// the live feed; per-view tuning happens through these knobs rather than
// forked implementations.
type Config struct {
	// EnableLiveTransport gates the push path. When false the manager goes
	// straight to polling and never negotiates.
	EnableLiveTransport bool `json:"enable_live_transport"`

	// APIBaseURL is the base of the collaborator API ("http://host:port").
	APIBaseURL string `json:"api_base_url"`
	APIKey     string `json:"api_key"`

	// BufferSize bounds the event buffer; FetchLimit is the limit parameter
	// sent on events-list fetches. Both default to feed.DefaultBufferSize.
	BufferSize int `json:"buffer_size"`
	FetchLimit int `json:"fetch_limit"`

	// BundleWindow is the same-device grouping window for the display view.
	BundleWindow models.Duration `json:"bundle_window"`

	NegotiateTimeout models.Duration `json:"negotiate_timeout"`
	PollTimeout      models.Duration `json:"poll_timeout"`

	// Adaptive poll intervals: fast while events are flowing, normal when
	// idle, slow after one or two failures, then exponential backoff capped
	// at PollMaxInterval.
	PollFastInterval   models.Duration `json:"poll_fast_interval"`
	PollNormalInterval models.Duration `json:"poll_normal_interval"`
	PollSlowInterval   models.Duration `json:"poll_slow_interval"`
	PollMaxInterval    models.Duration `json:"poll_max_interval"`

	// Reconnect backoff for the push transport: base delay doubling per
	// attempt up to ReconnectMaxDelay, at most ReconnectAttempts attempts
	// before the session falls back to polling for good.
	ReconnectBaseDelay models.Duration `json:"reconnect_base_delay"`
	ReconnectMaxDelay  models.Duration `json:"reconnect_max_delay"`
	ReconnectAttempts  int             `json:"reconnect_attempts"`

	Logging *logger.Config `json:"logging,omitempty"`
}

// Validate fills defaults. A missing APIBaseURL is not an error here: the
// manager can run with an injected fetcher, and construction checks the rest.
func (c *Config) Validate() error {
	if c.BufferSize <= 0 {
		c.BufferSize = feed.DefaultBufferSize
	}

	if c.FetchLimit <= 0 {
		c.FetchLimit = c.BufferSize
	}

	if c.BundleWindow <= 0 {
		c.BundleWindow = models.Duration(feed.DefaultWindow)
	}

	if c.NegotiateTimeout <= 0 {
		c.NegotiateTimeout = models.Duration(defaultNegotiateTimeout)
	}

	if c.PollTimeout <= 0 {
		c.PollTimeout = models.Duration(defaultPollTimeout)
	}

	if c.PollFastInterval <= 0 {
		c.PollFastInterval = models.Duration(defaultPollFast)
	}

	if c.PollNormalInterval <= 0 {
		c.PollNormalInterval = models.Duration(defaultPollNormal)
	}

	if c.PollSlowInterval <= 0 {
		c.PollSlowInterval = models.Duration(defaultPollSlow)
	}

	if c.PollMaxInterval <= 0 {
		c.PollMaxInterval = models.Duration(defaultPollMax)
	}

	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = models.Duration(defaultReconnectBase)
	}

	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = models.Duration(defaultReconnectMax)
	}

	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = defaultReconnectAttempts
	}

	return nil
}
