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

// Package interval provides sorted interval lists over uint64 ranges.
package interval

// U64Span is a half open interval that includes the lower bound, but not the
// upper.
type U64Span struct {
	Start uint64 // the value at which the interval begins
	End   uint64 // the next value not included in the interval.
}

// U64Range is an interval specified by a beginning and size.
type U64Range struct {
	First uint64 // the first value in the interval
	Count uint64 // the count of values in the interval
}

// U64SpanList is a sorted list of non-overlapping spans.
type U64SpanList []U64Span

// Range converts a U64Span to a U64Range.
func (s U64Span) Range() U64Range { return U64Range{First: s.Start, Count: s.End - s.Start} }

// Span converts a U64Range to a U64Span.
func (r U64Range) Span() U64Span { return U64Span{Start: r.First, End: r.First + r.Count} }

// Contains returns true if v lies within the span.
func (s U64Span) Contains(v uint64) bool { return v >= s.Start && v < s.End }

// Merge inserts span into the list, keeping it sorted and joining any spans
// that overlap or are adjacent to the inserted one.
func (l *U64SpanList) Merge(span U64Span) {
	list := *l
	// Find the insertion window: [lo, hi) is the run of existing spans that
	// overlap or touch the new span.
	lo := 0
	for lo < len(list) && list[lo].End < span.Start {
		lo++
	}
	hi := lo
	for hi < len(list) && list[hi].Start <= span.End {
		if list[hi].Start < span.Start {
			span.Start = list[hi].Start
		}
		if list[hi].End > span.End {
			span.End = list[hi].End
		}
		hi++
	}
	merged := make(U64SpanList, 0, len(list)-(hi-lo)+1)
	merged = append(merged, list[:lo]...)
	merged = append(merged, span)
	merged = append(merged, list[hi:]...)
	*l = merged
}

// Clone returns a copy of the list.
func (l U64SpanList) Clone() U64SpanList {
	res := make(U64SpanList, len(l))
	copy(res, l)
	return res
}
