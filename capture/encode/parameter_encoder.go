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
	"bytes"

	"github.com/google/gfxtrace/core/data/binary"
	"github.com/google/gfxtrace/core/data/endian"
	"github.com/google/gfxtrace/format"
)

// ParameterEncoder writes a call's argument values into its thread's primary
// buffer in the capture wire layout. A fresh encoder is bound to a fresh
// buffer; Reset rewinds the buffer without rebinding. Encoders are never
// shared across threads.
//
// Pointer-valued arguments are encoded as a presence flag, optionally
// followed by the pointed-to value; generated shims drive that layout.
type ParameterEncoder struct {
	buf bytes.Buffer
	w   binary.Writer
}

// NewParameterEncoder returns an encoder attached to a fresh buffer.
func NewParameterEncoder() *ParameterEncoder {
	e := &ParameterEncoder{}
	e.w = endian.Writer(&e.buf, endian.Little)
	return e
}

// Reset rewinds the buffer so the encoder can take the next call.
func (e *ParameterEncoder) Reset() { e.buf.Reset() }

// Bytes returns the encoded argument bytes. The slice is only valid until
// the next Reset.
func (e *ParameterEncoder) Bytes() []byte { return e.buf.Bytes() }

// Len returns the number of encoded bytes.
func (e *ParameterEncoder) Len() int { return e.buf.Len() }

// Bool encodes a boolean as a single byte.
func (e *ParameterEncoder) Bool(v bool) { e.w.Bool(v) }

// Int32 encodes a signed 32 bit value.
func (e *ParameterEncoder) Int32(v int32) { e.w.Int32(v) }

// Uint32 encodes an unsigned 32 bit value.
func (e *ParameterEncoder) Uint32(v uint32) { e.w.Uint32(v) }

// Int64 encodes a signed 64 bit value.
func (e *ParameterEncoder) Int64(v int64) { e.w.Int64(v) }

// Uint64 encodes an unsigned 64 bit value.
func (e *ParameterEncoder) Uint64(v uint64) { e.w.Uint64(v) }

// Float32 encodes a 32 bit floating point value.
func (e *ParameterEncoder) Float32(v float32) { e.w.Float32(v) }

// Float64 encodes a 64 bit floating point value.
func (e *ParameterEncoder) Float64(v float64) { e.w.Float64(v) }

// SizeT encodes a host size value as 64 bits.
func (e *ParameterEncoder) SizeT(v uint64) { e.w.Uint64(v) }

// Enum encodes an API enumerant as 32 bits.
func (e *ParameterEncoder) Enum(v uint32) { e.w.Uint32(v) }

// Flags encodes an API flag bitmask as 32 bits.
func (e *ParameterEncoder) Flags(v uint32) { e.w.Uint32(v) }

// Result encodes a driver return code.
func (e *ParameterEncoder) Result(v Result) { e.w.Int32(int32(v)) }

// HandleID encodes an opaque handle identifier.
func (e *ParameterEncoder) HandleID(v format.HandleID) { e.w.Uint64(uint64(v)) }

// Address encodes a raw pointer value recorded for identity only.
func (e *ParameterEncoder) Address(v uint64) { e.w.Uint64(v) }

// Present encodes a pointer presence flag.
func (e *ParameterEncoder) Present(v bool) { e.w.Bool(v) }

// String encodes a length-prefixed UTF-8 string.
func (e *ParameterEncoder) String(v string) {
	e.w.Uint32(uint32(len(v)))
	e.w.Data([]byte(v))
}

// Data encodes a raw run of bytes whose length the call layout implies.
func (e *ParameterEncoder) Data(v []byte) { e.w.Data(v) }
