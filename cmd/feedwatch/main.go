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

// feedwatch tails the live fleet event feed from a terminal, either as a
// plain line stream or as a small TUI with connection health and bundled
// event rows.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/reportmate/fleetfeed/pkg/config"
	"github.com/reportmate/fleetfeed/pkg/lifecycle"
	"github.com/reportmate/fleetfeed/pkg/logger"
	"github.com/reportmate/fleetfeed/pkg/models"
	"github.com/reportmate/fleetfeed/pkg/stream"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Path to feed config file (optional)")
		baseURL    = flag.String("url", "http://localhost:8085", "API base URL")
		apiKey     = flag.String("api-key", "", "API key for authentication")
		envFile    = flag.String("env-file", "", "Environment file to read API_KEY from")
		live       = flag.Bool("live", true, "Attempt the push transport before falling back to polling")
		plain      = flag.Bool("plain", false, "Line output instead of the TUI")
		limit      = flag.Int("limit", 0, "Event buffer size (default 50)")
	)
	flag.Parse()

	ctx := context.Background()

	var cfg stream.Config

	if *configPath != "" {
		cfgLoader := config.NewConfig(nil)
		if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
			return err
		}
	} else {
		cfg.EnableLiveTransport = *live
		cfg.APIBaseURL = *baseURL
		cfg.BufferSize = *limit

		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	cfg.APIKey = resolveAPIKey(*apiKey, *envFile)

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{Level: "warn", Output: "stderr"}
	}

	feedLogger, err := lifecycle.CreateComponentLogger("feedwatch", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	manager, err := stream.New(&cfg, nil, nil, feedLogger)
	if err != nil {
		return err
	}

	if *plain {
		return runPlain(ctx, manager, feedLogger)
	}

	return runTUI(ctx, manager)
}

// resolveAPIKey checks the flag, then the API_KEY environment variable, then
// an optional env file.
func resolveAPIKey(flagValue, envFile string) string {
	if flagValue != "" {
		return flagValue
	}

	if key := os.Getenv("API_KEY"); key != "" {
		return key
	}

	if envFile != "" {
		return readAPIKeyFromEnvFile(envFile)
	}

	return ""
}

// readAPIKeyFromEnvFile reads the API_KEY from an environment file.
func readAPIKeyFromEnvFile(envFile string) string {
	file, err := os.Open(envFile)
	if err != nil {
		log.Printf("Failed to open env file %s: %v", envFile, err)
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "API_KEY=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error reading env file %s: %v", envFile, err)
	}

	return ""
}

// runPlain starts the manager and prints health transitions and new bundles
// as lines, suitable for piping.
func runPlain(ctx context.Context, manager *stream.Manager, feedLogger logger.Logger) error {
	printed := make(map[string]struct{})
	lastStatus := models.ConnectionStatus("")

	go func() {
		for range manager.Updates() {
			health := manager.Health()
			if health.Status != lastStatus {
				lastStatus = health.Status
				fmt.Printf("--- connection: %s (errors: %d)\n", health.Status, health.ConsecutiveErrors)
			}

			for _, bundle := range manager.Bundles() {
				key := bundle.EventIDs[0] + "/" + fmt.Sprint(bundle.Count)
				if _, ok := printed[key]; ok {
					continue
				}

				printed[key] = struct{}{}
				fmt.Printf("%s  %-18s %s\n",
					bundle.Timestamp.Local().Format(time.TimeOnly), bundle.Device, bundle.Message)
			}
		}
	}()

	return lifecycle.Run(ctx, manager, feedLogger)
}
