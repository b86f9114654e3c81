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

package interval

import (
	"testing"

	"github.com/google/gfxtrace/core/assert"
	"github.com/google/gfxtrace/core/log"
)

func TestMerge(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		name     string
		list     U64SpanList
		with     U64Span
		expected U64SpanList
	}{
		{"empty",
			U64SpanList{},
			U64Span{10, 20},
			U64SpanList{{10, 20}},
		},
		{"duplicate",
			U64SpanList{{10, 20}},
			U64Span{10, 20},
			U64SpanList{{10, 20}},
		},
		{"between",
			U64SpanList{{0, 10}, {40, 50}},
			U64Span{20, 30},
			U64SpanList{{0, 10}, {20, 30}, {40, 50}},
		},
		{"before",
			U64SpanList{{10, 20}},
			U64Span{0, 5},
			U64SpanList{{0, 5}, {10, 20}},
		},
		{"after",
			U64SpanList{{10, 20}},
			U64Span{30, 35},
			U64SpanList{{10, 20}, {30, 35}},
		},
		{"overlap start",
			U64SpanList{{10, 20}},
			U64Span{5, 15},
			U64SpanList{{5, 20}},
		},
		{"overlap end",
			U64SpanList{{10, 20}},
			U64Span{15, 25},
			U64SpanList{{10, 25}},
		},
		{"adjacent",
			U64SpanList{{10, 20}},
			U64Span{20, 30},
			U64SpanList{{10, 30}},
		},
		{"swallow many",
			U64SpanList{{0, 5}, {10, 15}, {20, 25}, {40, 45}},
			U64Span{4, 30},
			U64SpanList{{0, 30}, {40, 45}},
		},
	} {
		list := test.list.Clone()
		list.Merge(test.with)
		assert.For(ctx, "Merge %s", test.name).ThatSlice(list).DeepEquals(test.expected)
	}
}

func TestSpanRange(t *testing.T) {
	ctx := log.Testing(t)
	s := U64Span{Start: 8, End: 24}
	assert.For(ctx, "Range").That(s.Range()).Equals(U64Range{First: 8, Count: 16})
	assert.For(ctx, "Span").That(U64Range{First: 8, Count: 16}.Span()).Equals(s)
	assert.For(ctx, "Contains low").ThatBoolean(s.Contains(8)).IsTrue()
	assert.For(ctx, "Contains high").ThatBoolean(s.Contains(24)).IsFalse()
}
