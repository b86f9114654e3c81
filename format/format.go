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

// Package format defines the capture file layout: the file header, the framed
// block stream that follows it, and the identifiers carried by each block.
//
// All fields are encoded little-endian regardless of architecture.
package format

// FourCC identifies a capture file. It is the first four bytes of every file,
// 'G' 'F' 'X' 'T' in stream order.
const FourCC uint32 = 'G' | 'F'<<8 | 'X'<<16 | 'T'<<24

// The file header version. Emitted as zero; a versioning scheme can be adopted
// without a layout change.
const (
	VersionMajor uint16 = 0
	VersionMinor uint16 = 0
)

// ThreadID is the stable identifier of a thread within a capture. Identifiers
// are dense and assigned from 1 in first-touch order.
type ThreadID uint64

// HandleID is the opaque identifier assigned to a driver object by the handle
// wrapping layer, stable for the object's lifetime.
type HandleID uint64

// ApiCallID is a stable integer tag identifying one entry point of the wrapped
// graphics API.
type ApiCallID uint32

// Well-known API call identifiers. Generated interception shims allocate their
// identifiers from FirstVendorCall upward.
const (
	ApiCallUnknown ApiCallID = iota
	ApiCallCreateInstance
	ApiCallDestroyInstance
	ApiCallCreateDevice
	ApiCallDestroyDevice
	ApiCallAllocateMemory
	ApiCallFreeMemory
	ApiCallMapMemory
	ApiCallUnmapMemory
	ApiCallFlushMappedMemoryRanges
	ApiCallQueueSubmit
	ApiCallQueuePresent
	ApiCallCreateSwapchain
	ApiCallCreateDescriptorUpdateTemplate
	ApiCallUpdateDescriptorSetWithTemplate

	// FirstVendorCall is the base identifier for generated entry points.
	FirstVendorCall ApiCallID = 0x1000
)

// BlockType identifies the payload of a framed block.
type BlockType uint32

const (
	// UnknownBlock is never written; it marks a corrupt stream when read.
	UnknownBlock BlockType = iota
	// FunctionCallBlock carries one API call's identifier and argument bytes.
	FunctionCallBlock
	// CompressedFunctionCallBlock is a FunctionCallBlock whose argument bytes
	// are compressed.
	CompressedFunctionCallBlock
	// MetaDataBlock carries a metadata command.
	MetaDataBlock
	// CompressedMetaDataBlock is a MetaDataBlock whose trailing payload bytes
	// are compressed.
	CompressedMetaDataBlock
	// FrameMarkerBlock is reserved for frame boundary markers.
	FrameMarkerBlock
	// StateMarkerBlock is reserved for state snapshot boundary markers.
	StateMarkerBlock
)

// MetaDataType identifies the body of a MetaDataBlock.
type MetaDataType uint32

const (
	UnknownMetaDataType MetaDataType = iota
	DisplayMessageCommand
	FillMemoryCommand
	ResizeWindowCommand
	SetSwapchainImageStateCommand
	BeginResourceInitCommand
	EndResourceInitCommand
	InitBufferCommand
	InitImageCommand
)

// FileOption identifies an entry in the file header's option table.
type FileOption uint32

const (
	UnknownFileOption FileOption = iota
	// CompressionTypeOption records the codec used for compressed blocks.
	CompressionTypeOption
)

// CompressionType enumerates the codecs a capture file may use.
type CompressionType uint32

const (
	// NoCompression writes every block uncompressed.
	NoCompression CompressionType = iota
	// LZ4Compression compresses with LZ4 block format.
	LZ4Compression
	// ZstdCompression compresses with Zstandard.
	ZstdCompression
)

func (t CompressionType) String() string {
	switch t {
	case NoCompression:
		return "none"
	case LZ4Compression:
		return "lz4"
	case ZstdCompression:
		return "zstd"
	default:
		return "?"
	}
}

// Wire sizes of the fixed-layout fields, used when computing a block header's
// size field. BlockHeader.Size counts the bytes that follow the header, not
// the total on-disk size of the block.
const (
	BlockHeaderSize      = 4 + 8 // type + size
	ApiCallIDSize        = 4
	ThreadIDSize         = 8
	UncompressedSizeSize = 8
	MetaDataTypeSize     = 4
	HandleIDSize         = 8
)
