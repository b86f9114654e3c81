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
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// zstdCompressor implements Compressor with Zstandard. The encoder and
// decoder are stateless in EncodeAll/DecodeAll form and shared across
// threads.
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstd() (Compressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, errors.Wrap(err, "zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "zstd decoder")
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (c *zstdCompressor) Compress(src []byte, dst *[]byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}
	*dst = c.enc.EncodeAll(src, (*dst)[:0])
	return len(*dst), nil
}

func (c *zstdCompressor) Decompress(src []byte, expandedSize uint64) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, make([]byte, 0, expandedSize))
	if err != nil {
		return nil, errors.Wrap(err, "zstd decompress")
	}
	if uint64(len(out)) != expandedSize {
		return nil, errors.Errorf("zstd decompress: expanded to %d bytes, expected %d", len(out), expandedSize)
	}
	return out, nil
}
