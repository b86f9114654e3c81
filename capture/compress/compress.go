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

// Package compress provides the block payload codecs used by capture files.
package compress

import (
	"github.com/google/gfxtrace/format"
	"github.com/pkg/errors"
)

// Compressor compresses block payloads. Implementations are safe for
// concurrent use.
type Compressor interface {
	// Compress compresses src into *dst, growing *dst as needed, and returns
	// the compressed size. A return of 0 with a nil error means src could not
	// be usefully compressed; callers fall back to the uncompressed bytes.
	// Deciding whether a non-zero result is worth keeping is the caller's
	// policy.
	Compress(src []byte, dst *[]byte) (int, error)

	// Decompress expands src into a new slice of exactly expandedSize bytes.
	Decompress(src []byte, expandedSize uint64) ([]byte, error)
}

// New returns the Compressor for the requested codec, or (nil, nil) when t is
// NoCompression.
func New(t format.CompressionType) (Compressor, error) {
	switch t {
	case format.NoCompression:
		return nil, nil
	case format.LZ4Compression:
		return newLZ4(), nil
	case format.ZstdCompression:
		return newZstd()
	default:
		return nil, errors.Errorf("unsupported compression type %d", t)
	}
}
