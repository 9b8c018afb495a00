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

package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reportmate/fleetfeed/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCommonMiddlewareSetsCORSHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", http.NoBody)

	CommonMiddleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
}

func TestCommonMiddlewareHandlesPreflight(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/events", http.NoBody)

	CommonMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
}

func TestAPIKeyMiddleware(t *testing.T) {
	middleware := APIKeyMiddleware("secret", logger.NewTestLogger())
	handler := middleware(okHandler())

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{
			name:   "missing key",
			setup:  func(*http.Request) {},
			status: http.StatusUnauthorized,
		},
		{
			name: "wrong key",
			setup: func(r *http.Request) {
				r.Header.Set("X-API-Key", "wrong")
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "header key",
			setup: func(r *http.Request) {
				r.Header.Set("X-API-Key", "secret")
			},
			status: http.StatusOK,
		},
		{
			name: "query key",
			setup: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("api_key", "secret")
				r.URL.RawQuery = q.Encode()
			},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/events", http.NoBody)
			tt.setup(req)

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAPIKeyMiddlewareDisabledWithEmptyKey(t *testing.T) {
	middleware := APIKeyMiddleware("", logger.NewTestLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", http.NoBody)

	middleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
