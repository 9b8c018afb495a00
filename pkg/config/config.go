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

// Package config loads JSON configuration from a file or from the
// environment, with a validation hook applied after loading.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/reportmate/fleetfeed/pkg/logger"
)

var (
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errLoadConfigFailed    = errors.New("failed to load configuration")
)

const (
	configSourceFile = "file"
	configSourceEnv  = "env"
)

// Loader reads configuration from one source into dst.
type Loader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by config structs that check and default their
// own fields.
type Validator interface {
	Validate() error
}

// Config holds the configuration loading dependencies.
type Config struct {
	loader Loader
	logger logger.Logger
}

// NewConfig initializes a Config with a file loader by default. The
// CONFIG_SOURCE environment variable switches the source ("file" or "env").
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	c := &Config{
		loader: &FileLoader{},
		logger: log,
	}

	switch strings.ToLower(os.Getenv("CONFIG_SOURCE")) {
	case "", configSourceFile:
	case configSourceEnv:
		c.loader = NewEnvLoader(log, "REPORTMATE_")
	default:
		// Recorded at load time; NewConfig stays infallible.
		c.loader = &invalidSourceLoader{source: os.Getenv("CONFIG_SOURCE")}
	}

	return c
}

// LoadAndValidate loads configuration into dst and runs its Validate hook
// when present.
func (c *Config) LoadAndValidate(ctx context.Context, path string, dst interface{}) error {
	if err := c.loader.Load(ctx, path, dst); err != nil {
		return fmt.Errorf("%w: %w", errLoadConfigFailed, err)
	}

	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

type invalidSourceLoader struct {
	source string
}

func (l *invalidSourceLoader) Load(_ context.Context, _ string, _ interface{}) error {
	return fmt.Errorf("%w: %q", errInvalidConfigSource, l.source)
}
