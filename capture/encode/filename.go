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
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/gfxtrace/capture/settings"
)

// insertFilenamePostfix inserts postfix between the filename's stem and
// extension.
func insertFilenamePostfix(filename, postfix string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + postfix + ext
}

// trimFilename names a trim range's capture file: one postfix per range,
// before the extension and before any timestamp.
func trimFilename(filename string, r settings.TrimRange) string {
	var postfix string
	if r.Total == 1 {
		postfix = fmt.Sprintf("_frame_%d", r.First)
	} else {
		postfix = fmt.Sprintf("_frames_%d_through_%d", r.First, r.First+r.Total-1)
	}
	return insertFilenamePostfix(filename, postfix)
}

// timestampFilename stamps the filename with the current local time.
func timestampFilename(filename string) string {
	return insertFilenamePostfix(filename, time.Now().Format("_20060102T150405"))
}
