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
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// lz4Compressor implements Compressor with the LZ4 block format.
type lz4Compressor struct{}

func newLZ4() Compressor { return lz4Compressor{} }

func (lz4Compressor) Compress(src []byte, dst *[]byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}
	if bound := lz4.CompressBlockBound(len(src)); cap(*dst) < bound {
		*dst = make([]byte, bound)
	} else {
		*dst = (*dst)[:bound]
	}
	var c lz4.Compressor
	n, err := c.CompressBlock(src, *dst)
	if err != nil {
		return 0, errors.Wrap(err, "lz4 compress")
	}
	// n == 0 means the block was incompressible.
	*dst = (*dst)[:n]
	return n, nil
}

func (lz4Compressor) Decompress(src []byte, expandedSize uint64) ([]byte, error) {
	out := make([]byte, expandedSize)
	n, err := lz4.UncompressBlock(src, out)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 decompress")
	}
	if uint64(n) != expandedSize {
		return nil, errors.Errorf("lz4 decompress: expanded to %d bytes, expected %d", n, expandedSize)
	}
	return out, nil
}
