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

package compress

import (
	"bytes"
	"testing"

	"github.com/google/gfxtrace/core/assert"
	"github.com/google/gfxtrace/core/log"
	"github.com/google/gfxtrace/format"
)

func TestNew(t *testing.T) {
	ctx := log.Testing(t)

	c, err := New(format.NoCompression)
	assert.For(ctx, "none err").ThatError(err).Succeeded()
	assert.For(ctx, "none").That(c).IsNil()

	c, err = New(format.LZ4Compression)
	assert.For(ctx, "lz4 err").ThatError(err).Succeeded()
	assert.For(ctx, "lz4").That(c).IsNotNil()

	c, err = New(format.ZstdCompression)
	assert.For(ctx, "zstd err").ThatError(err).Succeeded()
	assert.For(ctx, "zstd").That(c).IsNotNil()

	_, err = New(format.CompressionType(99))
	assert.For(ctx, "unknown").ThatError(err).Failed()
}

func TestRoundTrip(t *testing.T) {
	ctx := log.Testing(t)

	// Highly repetitive payload so both codecs are guaranteed to shrink it.
	src := bytes.Repeat([]byte("the quick brown fox "), 64)

	for _, typ := range []format.CompressionType{format.LZ4Compression, format.ZstdCompression} {
		c, err := New(typ)
		assert.For(ctx, "%v new", typ).ThatError(err).Succeeded()

		var dst []byte
		n, err := c.Compress(src, &dst)
		assert.For(ctx, "%v compress err", typ).ThatError(err).Succeeded()
		assert.For(ctx, "%v shrinks", typ).ThatInteger(n).IsAtMost(len(src) - 1)
		assert.For(ctx, "%v dst length", typ).ThatInteger(len(dst)).Equals(n)

		out, err := c.Decompress(dst[:n], uint64(len(src)))
		assert.For(ctx, "%v decompress err", typ).ThatError(err).Succeeded()
		assert.For(ctx, "%v round trip", typ).ThatSlice(out).DeepEquals(src)
	}
}

func TestCompressEmpty(t *testing.T) {
	ctx := log.Testing(t)
	for _, typ := range []format.CompressionType{format.LZ4Compression, format.ZstdCompression} {
		c, _ := New(typ)
		var dst []byte
		n, err := c.Compress(nil, &dst)
		assert.For(ctx, "%v empty err", typ).ThatError(err).Succeeded()
		assert.For(ctx, "%v empty size", typ).ThatInteger(n).Equals(0)
	}
}
