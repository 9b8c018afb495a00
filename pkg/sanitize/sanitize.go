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

// Package sanitize bounds arbitrary event payloads for safe list display.
//
// Upstream payloads are untrusted: they can be deeply nested, huge, or not
// serializable at all. Sanitize produces a small structural summary suitable
// for an event row; full payload detail is fetched separately on demand.
package sanitize

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

const (
	// MaxDepthMarker replaces any structure nested deeper than Limits.MaxDepth.
	MaxDepthMarker = "[Max depth reached]"

	truncationEllipsis = "..."
	summaryModuleNames = 3
	shortModuleNameLen = 16
)

// Limits bounds the sanitized output. The zero value of any field falls back
// to the corresponding default.
type Limits struct {
	MaxDepth      int // recursion depth before collapsing to MaxDepthMarker
	MaxStringLen  int // leaf string length before truncation
	MaxArrayItems int // array elements kept
	MaxKeys       int // object keys kept
	MaxKeyLen     int // keys longer than this are skipped outright
	MaxBytes      int // serialized ceiling for the whole summary
}

// DefaultLimits returns the limits used for event-row display.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:      2,
		MaxStringLen:  80,
		MaxArrayItems: 3,
		MaxKeys:       5,
		MaxKeyLen:     24,
		MaxBytes:      512,
	}
}

// Sanitizer summarizes payloads under a fixed set of limits. The zero value
// is not usable; construct with New.
type Sanitizer struct {
	limits Limits
}

// New creates a Sanitizer. Zero-valued limit fields default per DefaultLimits.
func New(limits Limits) *Sanitizer {
	def := DefaultLimits()

	if limits.MaxDepth <= 0 {
		limits.MaxDepth = def.MaxDepth
	}

	if limits.MaxStringLen <= 0 {
		limits.MaxStringLen = def.MaxStringLen
	}

	if limits.MaxArrayItems <= 0 {
		limits.MaxArrayItems = def.MaxArrayItems
	}

	if limits.MaxKeys <= 0 {
		limits.MaxKeys = def.MaxKeys
	}

	if limits.MaxKeyLen <= 0 {
		limits.MaxKeyLen = def.MaxKeyLen
	}

	if limits.MaxBytes <= 0 {
		limits.MaxBytes = def.MaxBytes
	}

	return &Sanitizer{limits: limits}
}

// Sanitize returns a bounded summary of v. It never panics: inputs that
// cannot be serialized collapse to a small fallback object.
func (s *Sanitizer) Sanitize(v interface{}) (out interface{}) {
	defer func() {
		if r := recover(); r != nil {
			out = map[string]interface{}{
				"message": "Complex payload",
				"type":    fmt.Sprintf("%T", v),
				"error":   fmt.Sprint(r),
			}
		}
	}()

	if v == nil {
		return nil
	}

	plain, ok := toPlain(v)
	if !ok {
		return map[string]interface{}{
			"message": "Complex payload",
			"type":    fmt.Sprintf("%T", v),
			"error":   "not serializable",
		}
	}

	if m, isMap := plain.(map[string]interface{}); isMap {
		if summary, matched := s.summarizeCollection(m); matched {
			return s.boundCollectionSummary(summary)
		}
	}

	reduced := s.reduce(plain, 0)

	return s.enforceByteCeiling(reduced)
}

// toPlain coerces v into JSON-shaped values (maps, slices, primitives) so the
// reducer only deals with one representation. Named map/struct types round-trip
// through encoding/json.
func toPlain(v interface{}) (interface{}, bool) {
	switch v.(type) {
	case map[string]interface{}, []interface{}, string, bool, float64, int, int32, int64, uint, uint64, float32, json.Number:
		return v, true
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}

	var plain interface{}
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, false
	}

	return plain, true
}

func (s *Sanitizer) reduce(v interface{}, depth int) interface{} {
	if depth > s.limits.MaxDepth {
		return MaxDepthMarker
	}

	switch value := v.(type) {
	case string:
		return s.truncateString(value)
	case map[string]interface{}:
		return s.reduceMap(value, depth)
	case []interface{}:
		kept := value
		if len(kept) > s.limits.MaxArrayItems {
			kept = kept[:s.limits.MaxArrayItems]
		}

		result := make([]interface{}, 0, len(kept))
		for _, item := range kept {
			result = append(result, s.reduce(item, depth+1))
		}

		return result
	default:
		return value
	}
}

func (s *Sanitizer) reduceMap(m map[string]interface{}, depth int) map[string]interface{} {
	keys := make([]string, 0, len(m))

	for k := range m {
		if len(k) > s.limits.MaxKeyLen {
			continue
		}

		keys = append(keys, k)
	}

	// Deterministic key choice keeps repeated sanitization stable.
	sort.Strings(keys)

	if len(keys) > s.limits.MaxKeys {
		keys = keys[:s.limits.MaxKeys]
	}

	result := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		result[k] = s.reduce(m[k], depth+1)
	}

	return result
}

func (s *Sanitizer) truncateString(v string) string {
	return clipString(v, s.limits.MaxStringLen)
}

// clipString cuts v to at most maxLen bytes, stepping back to a rune boundary
// so the result is always valid UTF-8.
func clipString(v string, maxLen int) string {
	if len(v) <= maxLen {
		return v
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}

	return v[:cut] + truncationEllipsis
}

// enforceByteCeiling collapses summaries that are still too large after
// structural reduction into a fixed-shape marker object.
func (s *Sanitizer) enforceByteCeiling(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{
			"message": "Complex payload",
			"type":    fmt.Sprintf("%T", v),
			"error":   err.Error(),
		}
	}

	if len(data) <= s.limits.MaxBytes {
		return v
	}

	collapsed := map[string]interface{}{
		"message":   "Large payload (summarized)",
		"dataSize":  len(data),
		"truncated": true,
	}

	if m, ok := v.(map[string]interface{}); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		if len(keys) > s.limits.MaxKeys {
			keys = keys[:s.limits.MaxKeys]
		}

		collapsed["keys"] = keys
	}

	return collapsed
}

// summarizeCollection recognizes the data-collection report shape (a module
// count plus a list of enabled module names) and produces a compact, readable
// summary instead of generic truncation. Collection reports are the dominant
// event type in the fleet, so they get first-class treatment.
func (s *Sanitizer) summarizeCollection(m map[string]interface{}) (map[string]interface{}, bool) {
	count, hasCount := numericField(m, "moduleCount", "modules_count")
	modules, hasModules := stringListField(m, "enabledModules", "enabled_modules")

	if !hasCount || !hasModules {
		return nil, false
	}

	summary := map[string]interface{}{
		"moduleCount": count,
	}

	kept := modules
	if len(kept) > summaryModuleNames {
		kept = kept[:summaryModuleNames]
	}

	names := make([]string, 0, len(kept))
	for _, name := range kept {
		names = append(names, s.truncateString(name))
	}

	summary["modules"] = names

	if len(modules) > summaryModuleNames {
		summary["moreModules"] = len(modules) - summaryModuleNames
	}

	if ct, ok := stringField(m, "collectionType", "collection_type"); ok {
		summary["collectionType"] = s.truncateString(ct)
	}

	if dn, ok := stringField(m, "deviceName", "device_name"); ok {
		summary["deviceName"] = s.truncateString(dn)
	}

	if cv, ok := stringField(m, "clientVersion", "client_version"); ok {
		summary["clientVersion"] = s.truncateString(cv)
	}

	return summary, true
}

// boundCollectionSummary applies the byte ceiling to a collection summary
// without losing the collection shape: descriptor fields drop first, then the
// kept module names shorten, so moduleCount and modules always survive.
func (s *Sanitizer) boundCollectionSummary(summary map[string]interface{}) map[string]interface{} {
	for _, field := range []string{"clientVersion", "collectionType", "deviceName"} {
		if s.withinCeiling(summary) {
			return summary
		}

		delete(summary, field)
	}

	if s.withinCeiling(summary) {
		return summary
	}

	if names, ok := summary["modules"].([]string); ok {
		short := make([]string, len(names))
		for i, name := range names {
			short[i] = clipString(name, shortModuleNameLen)
		}

		summary["modules"] = short
	}

	return summary
}

func (s *Sanitizer) withinCeiling(v interface{}) bool {
	data, err := json.Marshal(v)
	return err == nil && len(data) <= s.limits.MaxBytes
}

func numericField(m map[string]interface{}, names ...string) (int, bool) {
	for _, name := range names {
		switch v := m[name].(type) {
		case float64:
			return int(v), true
		case int:
			return v, true
		case int64:
			return int(v), true
		}
	}

	return 0, false
}

func stringField(m map[string]interface{}, names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := m[name].(string); ok && v != "" {
			return v, true
		}
	}

	return "", false
}

func stringListField(m map[string]interface{}, names ...string) ([]string, bool) {
	for _, name := range names {
		list, ok := m[name].([]interface{})
		if !ok {
			continue
		}

		result := make([]string, 0, len(list))

		for _, item := range list {
			if str, isStr := item.(string); isStr {
				result = append(result, str)
			}
		}

		return result, true
	}

	return nil, false
}
