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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportmate/fleetfeed/pkg/logger"
	"github.com/reportmate/fleetfeed/pkg/models"
)

var errIntervalRequired = errors.New("interval is required")

type testConfig struct {
	Name     string          `json:"name"`
	Interval models.Duration `json:"interval"`
	Count    int             `json:"count"`
	Verbose  bool            `json:"verbose"`

	validated bool
}

func (c *testConfig) Validate() error {
	c.validated = true

	if c.Interval <= 0 {
		return errIntervalRequired
	}

	return nil
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadAndValidateFromFile(t *testing.T) {
	path := writeTempConfig(t, `{"name":"feed","interval":"30s","count":5}`)

	var cfg testConfig

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "feed", cfg.Name)
	assert.Equal(t, models.Duration(30*time.Second), cfg.Interval)
	assert.Equal(t, 5, cfg.Count)
	assert.True(t, cfg.validated)
}

func TestLoadAndValidatePropagatesValidationError(t *testing.T) {
	path := writeTempConfig(t, `{"name":"feed"}`)

	var cfg testConfig

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, errIntervalRequired)
}

func TestLoadMissingFile(t *testing.T) {
	var cfg testConfig

	err := NewConfig(logger.NewTestLogger()).
		LoadAndValidate(context.Background(), "/nonexistent/config.json", &cfg)
	require.Error(t, err)
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeTempConfig(t, `{"name":`)

	var cfg testConfig

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
}

func TestEnvLoaderFieldOverrides(t *testing.T) {
	t.Setenv("TEST_NAME", "from-env")
	t.Setenv("TEST_INTERVAL", "45s")
	t.Setenv("TEST_COUNT", "7")
	t.Setenv("TEST_VERBOSE", "true")

	var cfg testConfig

	loader := NewEnvLoader(logger.NewTestLogger(), "TEST_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, models.Duration(45*time.Second), cfg.Interval)
	assert.Equal(t, 7, cfg.Count)
	assert.True(t, cfg.Verbose)
}

func TestEnvLoaderConfigJSONWins(t *testing.T) {
	t.Setenv("TEST_CONFIG_JSON", `{"name":"whole","interval":"1m"}`)
	t.Setenv("TEST_NAME", "ignored")

	var cfg testConfig

	loader := NewEnvLoader(logger.NewTestLogger(), "TEST_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "whole", cfg.Name)
	assert.Equal(t, models.Duration(time.Minute), cfg.Interval)
}

func TestEnvLoaderRejectsNonPointer(t *testing.T) {
	loader := NewEnvLoader(logger.NewTestLogger(), "TEST_")

	err := loader.Load(context.Background(), "", testConfig{})
	require.ErrorIs(t, err, ErrDstMustBeNonNilPointer)
}

func TestConfigSourceEnvSwitch(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("REPORTMATE_NAME", "switched")
	t.Setenv("REPORTMATE_INTERVAL", "10s")

	var cfg testConfig

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg)
	require.NoError(t, err)
	assert.Equal(t, "switched", cfg.Name)
}

func TestConfigSourceInvalid(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "carrier-pigeon")

	var cfg testConfig

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}
