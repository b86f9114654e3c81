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

package format

import (
	"github.com/google/gfxtrace/core/data/binary"
)

// The capture file begins with:
//
//     struct FileHeader {
//         uint32_t fourcc;        // 'G', 'F', 'X', 'T'
//         uint16_t major_version;
//         uint16_t minor_version;
//         uint32_t num_options;
//     };
//     FileOptionPair options[num_options];
//
// and is followed by a sequence of blocks, each prefixed with:
//
//     struct BlockHeader {
//         uint32_t type;
//         uint64_t size;          // bytes following this header
//     };

// FileHeader is the fixed prefix of every capture file.
type FileHeader struct {
	FourCC     uint32
	Major      uint16
	Minor      uint16
	NumOptions uint32
}

// FileOptionPair is one entry of the file header's option table.
type FileOptionPair struct {
	Option FileOption
	Value  uint32
}

// BlockHeader is the shared prefix of every block after the file header.
// Size counts the bytes following the header.
type BlockHeader struct {
	Type BlockType
	Size uint64
}

// FunctionCallHeader prefixes the argument bytes of an uncompressed call.
type FunctionCallHeader struct {
	Block     BlockHeader
	ApiCallID ApiCallID
	ThreadID  ThreadID
}

// CompressedFunctionCallHeader prefixes the compressed argument bytes of a
// call. UncompressedSize is the argument byte count before compression.
type CompressedFunctionCallHeader struct {
	Block            BlockHeader
	ApiCallID        ApiCallID
	ThreadID         ThreadID
	UncompressedSize uint64
}

// MetaDataHeader prefixes the body of a metadata command.
type MetaDataHeader struct {
	Block BlockHeader
	Type  MetaDataType
}

// FillMemoryCommandHeader prefixes the payload bytes of a fill-memory
// command. MemorySize is always the uncompressed payload size, even when the
// outer block type is CompressedMetaDataBlock.
type FillMemoryCommandHeader struct {
	Meta         MetaDataHeader
	ThreadID     ThreadID
	MemoryID     HandleID
	MemoryOffset uint64
	MemorySize   uint64
}

// ResizeWindowCommandBody is the body of a resize-window command.
type ResizeWindowCommandBody struct {
	ThreadID  ThreadID
	SurfaceID HandleID
	Width     uint32
	Height    uint32
}

// ResourceInitCommandBody is the body of the begin/end resource-init bracket
// written around a state snapshot. MaxCopySize is only meaningful on the
// begin command.
type ResourceInitCommandBody struct {
	ThreadID    ThreadID
	DeviceID    HandleID
	MaxCopySize uint64
}

// FunctionCallBlockSize returns the block header size field for a call with
// payloadLen argument bytes.
func FunctionCallBlockSize(payloadLen int) uint64 {
	return ApiCallIDSize + ThreadIDSize + uint64(payloadLen)
}

// CompressedFunctionCallBlockSize returns the block header size field for a
// compressed call with payloadLen compressed bytes.
func CompressedFunctionCallBlockSize(payloadLen int) uint64 {
	return ApiCallIDSize + UncompressedSizeSize + ThreadIDSize + uint64(payloadLen)
}

// FillMemoryCommandBlockSize returns the block header size field for a
// fill-memory command with payloadLen payload bytes.
func FillMemoryCommandBlockSize(payloadLen int) uint64 {
	return MetaDataTypeSize + ThreadIDSize + HandleIDSize + 8 + 8 + uint64(payloadLen)
}

// Write encodes the file header to w.
func (h FileHeader) Write(w binary.Writer) {
	w.Uint32(h.FourCC)
	w.Uint16(h.Major)
	w.Uint16(h.Minor)
	w.Uint32(h.NumOptions)
}

// ReadFileHeader decodes a file header from r.
func ReadFileHeader(r binary.Reader) FileHeader {
	return FileHeader{
		FourCC:     r.Uint32(),
		Major:      r.Uint16(),
		Minor:      r.Uint16(),
		NumOptions: r.Uint32(),
	}
}

// Write encodes the option pair to w.
func (p FileOptionPair) Write(w binary.Writer) {
	w.Uint32(uint32(p.Option))
	w.Uint32(p.Value)
}

// ReadFileOptionPair decodes an option pair from r.
func ReadFileOptionPair(r binary.Reader) FileOptionPair {
	return FileOptionPair{
		Option: FileOption(r.Uint32()),
		Value:  r.Uint32(),
	}
}

// Write encodes the block header to w.
func (h BlockHeader) Write(w binary.Writer) {
	w.Uint32(uint32(h.Type))
	w.Uint64(h.Size)
}

// ReadBlockHeader decodes a block header from r.
func ReadBlockHeader(r binary.Reader) BlockHeader {
	return BlockHeader{
		Type: BlockType(r.Uint32()),
		Size: r.Uint64(),
	}
}

// Write encodes the function call header to w.
func (h FunctionCallHeader) Write(w binary.Writer) {
	h.Block.Write(w)
	w.Uint32(uint32(h.ApiCallID))
	w.Uint64(uint64(h.ThreadID))
}

// Write encodes the compressed function call header to w.
func (h CompressedFunctionCallHeader) Write(w binary.Writer) {
	h.Block.Write(w)
	w.Uint32(uint32(h.ApiCallID))
	w.Uint64(uint64(h.ThreadID))
	w.Uint64(h.UncompressedSize)
}

// Write encodes the metadata header to w.
func (h MetaDataHeader) Write(w binary.Writer) {
	h.Block.Write(w)
	w.Uint32(uint32(h.Type))
}

// ReadMetaDataType decodes the metadata type tag that follows a metadata
// block header.
func ReadMetaDataType(r binary.Reader) MetaDataType {
	return MetaDataType(r.Uint32())
}

// Write encodes the fill-memory command header to w.
func (h FillMemoryCommandHeader) Write(w binary.Writer) {
	h.Meta.Write(w)
	w.Uint64(uint64(h.ThreadID))
	w.Uint64(uint64(h.MemoryID))
	w.Uint64(h.MemoryOffset)
	w.Uint64(h.MemorySize)
}

// Write encodes the resize-window command body to w.
func (b ResizeWindowCommandBody) Write(w binary.Writer) {
	w.Uint64(uint64(b.ThreadID))
	w.Uint64(uint64(b.SurfaceID))
	w.Uint32(b.Width)
	w.Uint32(b.Height)
}

// WriteBegin encodes the begin-resource-init command body to w.
func (b ResourceInitCommandBody) WriteBegin(w binary.Writer) {
	w.Uint64(uint64(b.ThreadID))
	w.Uint64(uint64(b.DeviceID))
	w.Uint64(b.MaxCopySize)
}

// WriteEnd encodes the end-resource-init command body to w.
func (b ResourceInitCommandBody) WriteEnd(w binary.Writer) {
	w.Uint64(uint64(b.ThreadID))
	w.Uint64(uint64(b.DeviceID))
}
