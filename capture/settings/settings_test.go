// Copyright (C) 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package settings

import (
	"testing"

	"github.com/google/gfxtrace/core/assert"
	"github.com/google/gfxtrace/core/log"
	"github.com/google/gfxtrace/format"
)

func TestParseTrimRanges(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		in       string
		expected []TrimRange
		fails    bool
	}{
		{in: "1", expected: []TrimRange{{First: 1, Total: 1}}},
		{in: "3-5", expected: []TrimRange{{First: 3, Total: 3}}},
		{in: "1,3-5,9", expected: []TrimRange{{First: 1, Total: 1}, {First: 3, Total: 3}, {First: 9, Total: 1}}},
		{in: "9, 3-5", expected: []TrimRange{{First: 3, Total: 3}, {First: 9, Total: 1}}},
		{in: "", expected: nil},
		{in: "5-3", fails: true},
		{in: "0", fails: true},
		{in: "1-3,2", fails: true},
		{in: "banana", fails: true},
	} {
		got, err := ParseTrimRanges(test.in)
		if test.fails {
			assert.For(ctx, "ParseTrimRanges(%q)", test.in).ThatError(err).Failed()
			continue
		}
		assert.For(ctx, "ParseTrimRanges(%q)", test.in).ThatError(err).Succeeded()
		assert.For(ctx, "ParseTrimRanges(%q) ranges", test.in).ThatSlice(got).DeepEquals(test.expected)
	}
}

func TestParseMemoryTrackingMode(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		in       string
		expected MemoryTrackingMode
		fails    bool
	}{
		{in: "page_guard", expected: PageGuard},
		{in: "Assisted", expected: Assisted},
		{in: "UNASSISTED", expected: Unassisted},
		{in: "mystery", fails: true},
	} {
		got, err := ParseMemoryTrackingMode(test.in)
		if test.fails {
			assert.For(ctx, "mode %q", test.in).ThatError(err).Failed()
			continue
		}
		assert.For(ctx, "mode %q", test.in).ThatError(err).Succeeded()
		assert.For(ctx, "mode %q value", test.in).That(got).Equals(test.expected)
	}
}

func TestParseCompressionType(t *testing.T) {
	ctx := log.Testing(t)
	got, err := ParseCompressionType("lz4")
	assert.For(ctx, "lz4 err").ThatError(err).Succeeded()
	assert.For(ctx, "lz4").That(got).Equals(format.LZ4Compression)

	got, err = ParseCompressionType("zstd")
	assert.For(ctx, "zstd err").ThatError(err).Succeeded()
	assert.For(ctx, "zstd").That(got).Equals(format.ZstdCompression)

	_, err = ParseCompressionType("brotli")
	assert.For(ctx, "unknown codec").ThatError(err).Failed()
}

func TestDefaults(t *testing.T) {
	ctx := log.Testing(t)
	s := Default()
	assert.For(ctx, "tracking").That(s.MemoryTracking).Equals(PageGuard)
	assert.For(ctx, "compression").That(s.Compression).Equals(format.LZ4Compression)
	assert.For(ctx, "trim").ThatSlice(s.TrimRanges).IsEmpty()
	assert.For(ctx, "timestamp").ThatBoolean(s.TimestampFile).IsTrue()
}
