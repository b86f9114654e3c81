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

package encode

import (
	"testing"

	"github.com/google/gfxtrace/capture/settings"
	"github.com/google/gfxtrace/core/assert"
	"github.com/google/gfxtrace/core/log"
)

func TestTrimFilename(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		base     string
		r        settings.TrimRange
		expected string
	}{
		{"capture.gfxt", settings.TrimRange{First: 3, Total: 1}, "capture_frame_3.gfxt"},
		{"capture.gfxt", settings.TrimRange{First: 3, Total: 2}, "capture_frames_3_through_4.gfxt"},
		{"out/app.gfxt", settings.TrimRange{First: 1, Total: 100}, "out/app_frames_1_through_100.gfxt"},
		{"noext", settings.TrimRange{First: 2, Total: 1}, "noext_frame_2"},
	} {
		assert.For(ctx, "trimFilename(%q, %v)", test.base, test.r).
			ThatString(trimFilename(test.base, test.r)).Equals(test.expected)
	}
}

func TestTimestampFilename(t *testing.T) {
	ctx := log.Testing(t)
	got := timestampFilename("capture.gfxt")
	assert.For(ctx, "prefix").ThatString(got).HasPrefix("capture_")
	assert.For(ctx, "extension kept").ThatString(got).HasSuffix(".gfxt")
	// capture_YYYYMMDDThhmmss.gfxt
	assert.For(ctx, "length").ThatInteger(len(got)).Equals(len("capture_20060102T150405.gfxt"))
	assert.For(ctx, "separator").ThatString(got).Contains("T")
}
