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

// Package settings holds the capture options consumed by the capture manager.
//
// The engine is loaded inside a host process that owns argv, so options are
// read from GFXTRACE_* environment variables rather than flags. Invalid
// values log a warning and fall back to their defaults; a bad option never
// stops the host.
package settings

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/gfxtrace/core/log"
	"github.com/google/gfxtrace/format"
	"github.com/pkg/errors"
)

// MemoryTrackingMode selects how writes to mapped memory are observed.
type MemoryTrackingMode int

const (
	// PageGuard interposes mapped memory and emits dirty pages lazily at
	// flush, unmap and queue-submit.
	PageGuard MemoryTrackingMode = iota
	// Assisted relies on the application delimiting dirty regions with
	// explicit flushes.
	Assisted
	// Unassisted rewrites every mapped region in full at each queue-submit.
	Unassisted
)

func (m MemoryTrackingMode) String() string {
	switch m {
	case PageGuard:
		return "page_guard"
	case Assisted:
		return "assisted"
	case Unassisted:
		return "unassisted"
	default:
		return "?"
	}
}

// TrimRange is a contiguous interval of frames to capture. Total is at
// least 1.
type TrimRange struct {
	First uint32
	Total uint32
}

// Settings are the capture options consumed by the manager.
type Settings struct {
	// CaptureFile is the base output filename.
	CaptureFile string
	// TimestampFile inserts a timestamp postfix into the filename.
	TimestampFile bool
	// MemoryTracking selects the mapped-memory tracking strategy.
	MemoryTracking MemoryTrackingMode
	// ForceFlush syncs the file after every block.
	ForceFlush bool
	// Compression selects the block payload codec.
	Compression format.CompressionType
	// TrimRanges restricts writing to the listed frame ranges. Empty means
	// capture every frame from startup.
	TrimRanges []TrimRange
	// LogLevel is the minimum severity to log.
	LogLevel log.Severity
}

// Environment variable names.
const (
	captureFileEnv    = "GFXTRACE_CAPTURE_FILE"
	timestampFileEnv  = "GFXTRACE_CAPTURE_FILE_TIMESTAMP"
	memoryTrackingEnv = "GFXTRACE_MEMORY_TRACKING_MODE"
	forceFlushEnv     = "GFXTRACE_CAPTURE_FILE_FORCE_FLUSH"
	compressionEnv    = "GFXTRACE_CAPTURE_COMPRESSION_TYPE"
	trimRangesEnv     = "GFXTRACE_CAPTURE_FRAMES"
	logLevelEnv       = "GFXTRACE_LOG_LEVEL"
)

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		CaptureFile:    "gfxtrace_capture.gfxt",
		TimestampFile:  true,
		MemoryTracking: PageGuard,
		Compression:    format.LZ4Compression,
		LogLevel:       log.Info,
	}
}

// Load reads settings from the environment on top of the defaults.
func Load(ctx context.Context) Settings {
	s := Default()
	if v := os.Getenv(captureFileEnv); v != "" {
		s.CaptureFile = v
	}
	if v := os.Getenv(timestampFileEnv); v != "" {
		s.TimestampFile = parseBool(ctx, timestampFileEnv, v, s.TimestampFile)
	}
	if v := os.Getenv(forceFlushEnv); v != "" {
		s.ForceFlush = parseBool(ctx, forceFlushEnv, v, s.ForceFlush)
	}
	if v := os.Getenv(memoryTrackingEnv); v != "" {
		if m, err := ParseMemoryTrackingMode(v); err != nil {
			log.W(ctx, "%s: %v", memoryTrackingEnv, err)
		} else {
			s.MemoryTracking = m
		}
	}
	if v := os.Getenv(compressionEnv); v != "" {
		if c, err := ParseCompressionType(v); err != nil {
			log.W(ctx, "%s: %v", compressionEnv, err)
		} else {
			s.Compression = c
		}
	}
	if v := os.Getenv(trimRangesEnv); v != "" {
		if r, err := ParseTrimRanges(v); err != nil {
			log.W(ctx, "%s: %v", trimRangesEnv, err)
		} else {
			s.TrimRanges = r
		}
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		if l, err := ParseLogLevel(v); err != nil {
			log.W(ctx, "%s: %v", logLevelEnv, err)
		} else {
			s.LogLevel = l
		}
	}
	return s
}

func parseBool(ctx context.Context, name, value string, def bool) bool {
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.W(ctx, "%s: invalid boolean %q", name, value)
		return def
	}
	return b
}

// ParseMemoryTrackingMode parses a memory tracking mode name.
func ParseMemoryTrackingMode(s string) (MemoryTrackingMode, error) {
	switch strings.ToLower(s) {
	case "page_guard", "pageguard":
		return PageGuard, nil
	case "assisted":
		return Assisted, nil
	case "unassisted":
		return Unassisted, nil
	default:
		return PageGuard, errors.Errorf("unknown memory tracking mode %q", s)
	}
}

// ParseCompressionType parses a compression codec name.
func ParseCompressionType(s string) (format.CompressionType, error) {
	switch strings.ToLower(s) {
	case "none":
		return format.NoCompression, nil
	case "lz4":
		return format.LZ4Compression, nil
	case "zstd":
		return format.ZstdCompression, nil
	default:
		return format.NoCompression, errors.Errorf("unknown compression type %q", s)
	}
}

// ParseLogLevel parses a log severity name.
func ParseLogLevel(s string) (log.Severity, error) {
	switch strings.ToLower(s) {
	case "verbose":
		return log.Verbose, nil
	case "debug":
		return log.Debug, nil
	case "info":
		return log.Info, nil
	case "warning", "warn":
		return log.Warning, nil
	case "error":
		return log.Error, nil
	case "fatal":
		return log.Fatal, nil
	default:
		return log.Info, errors.Errorf("unknown log level %q", s)
	}
}

// ParseTrimRanges parses a frame range list of the form "1,3-5,9". The result
// is sorted by first frame. Overlapping ranges are an error; adjacent ranges
// such as "1-3,4" are accepted.
func ParseTrimRanges(s string) ([]TrimRange, error) {
	var ranges []TrimRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var r TrimRange
		if first, last, ok := strings.Cut(part, "-"); ok {
			a, err := parseFrame(first)
			if err != nil {
				return nil, err
			}
			b, err := parseFrame(last)
			if err != nil {
				return nil, err
			}
			if b < a {
				return nil, errors.Errorf("backwards frame range %q", part)
			}
			r = TrimRange{First: a, Total: b - a + 1}
		} else {
			a, err := parseFrame(part)
			if err != nil {
				return nil, err
			}
			r = TrimRange{First: a, Total: 1}
		}
		ranges = append(ranges, r)
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].First < ranges[j].First })
	for i := 1; i < len(ranges); i++ {
		prev := ranges[i-1]
		if prev.First+prev.Total > ranges[i].First {
			return nil, errors.Errorf("overlapping frame ranges at frame %d", ranges[i].First)
		}
	}
	return ranges, nil
}

func parseFrame(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || v == 0 {
		return 0, errors.Errorf("invalid frame number %q", s)
	}
	return uint32(v), nil
}
