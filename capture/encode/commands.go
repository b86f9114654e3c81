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
	"context"

	"github.com/google/gfxtrace/core/data/endian"
	"github.com/google/gfxtrace/core/log"
	"github.com/google/gfxtrace/format"
)

// WriteDisplayMessageCmd records a message for the replayer to display.
func (m *Manager) WriteDisplayMessageCmd(ctx context.Context, message string) {
	if m.currentMode()&modeWrite == 0 {
		return
	}
	td := GetThreadData()
	td.header.Reset()
	w := endian.Writer(&td.header, endian.Little)
	format.MetaDataHeader{
		Block: format.BlockHeader{
			Type: format.MetaDataBlock,
			Size: format.MetaDataTypeSize + format.ThreadIDSize + uint64(len(message)),
		},
		Type: format.DisplayMessageCommand,
	}.Write(w)
	w.Uint64(uint64(td.threadID))
	m.writeBlock(ctx, td.header.Bytes(), []byte(message))
}

// WriteResizeWindowCmd records the dimensions a surface must have before
// replay proceeds.
func (m *Manager) WriteResizeWindowCmd(ctx context.Context, surfaceID format.HandleID, width, height uint32) {
	if m.currentMode()&modeWrite == 0 {
		return
	}
	td := GetThreadData()
	td.header.Reset()
	w := endian.Writer(&td.header, endian.Little)
	format.MetaDataHeader{
		Block: format.BlockHeader{
			Type: format.MetaDataBlock,
			Size: format.MetaDataTypeSize + format.ThreadIDSize + format.HandleIDSize + 4 + 4,
		},
		Type: format.ResizeWindowCommand,
	}.Write(w)
	format.ResizeWindowCommandBody{
		ThreadID:  td.threadID,
		SurfaceID: surfaceID,
		Width:     width,
		Height:    height,
	}.Write(w)
	m.writeBlock(ctx, td.header.Bytes(), nil)
}

// PreProcessCreateSwapchain observes swapchain creation and records the
// surface dimensions the replayer must restore before the first present.
func (m *Manager) PreProcessCreateSwapchain(ctx context.Context, surfaceID format.HandleID, width, height uint32) {
	m.WriteResizeWindowCmd(ctx, surfaceID, width, height)
}

// WriteFillMemoryCmd records that size bytes at offset within the named
// allocation held data at this point of the stream. data holds exactly the
// payload bytes.
func (m *Manager) WriteFillMemoryCmd(ctx context.Context, memoryID format.HandleID, offset, size uint64, data []byte) {
	if m.currentMode()&modeWrite == 0 {
		return
	}
	td := GetThreadData()
	m.writeFillMemory(ctx, memoryID, offset, size, data, td, td.threadID)
}

func (m *Manager) writeFillMemory(ctx context.Context, memoryID format.HandleID, offset, size uint64, data []byte, td *ThreadData, threadID format.ThreadID) {
	blockType := format.MetaDataBlock
	payload := data

	if m.compressor != nil {
		n, err := m.compressor.Compress(data, &td.compressed)
		if err != nil {
			log.E(ctx, "Failed to compress fill-memory payload for memory %v: %v", memoryID, err)
		} else if n > 0 && n < len(data) {
			// The header always carries the uncompressed size, so compressed
			// payloads only change the block type.
			blockType = format.CompressedMetaDataBlock
			payload = td.compressed[:n]
		}
	}

	td.header.Reset()
	w := endian.Writer(&td.header, endian.Little)
	format.FillMemoryCommandHeader{
		Meta: format.MetaDataHeader{
			Block: format.BlockHeader{
				Type: blockType,
				Size: format.FillMemoryCommandBlockSize(len(payload)),
			},
			Type: format.FillMemoryCommand,
		},
		ThreadID:     threadID,
		MemoryID:     memoryID,
		MemoryOffset: offset,
		MemorySize:   size,
	}.Write(w)
	m.writeBlock(ctx, td.header.Bytes(), payload)
}

// writeResourceInitCmd writes the begin or end bracket of a state snapshot's
// resource uploads.
func (m *Manager) writeResourceInitCmd(ctx context.Context, begin bool, deviceID format.HandleID, maxCopySize uint64, threadID format.ThreadID) {
	if m.currentMode()&modeWrite == 0 {
		return
	}
	td := GetThreadData()
	td.header.Reset()
	w := endian.Writer(&td.header, endian.Little)
	body := format.ResourceInitCommandBody{
		ThreadID:    threadID,
		DeviceID:    deviceID,
		MaxCopySize: maxCopySize,
	}
	if begin {
		format.MetaDataHeader{
			Block: format.BlockHeader{
				Type: format.MetaDataBlock,
				Size: format.MetaDataTypeSize + format.ThreadIDSize + format.HandleIDSize + 8,
			},
			Type: format.BeginResourceInitCommand,
		}.Write(w)
		body.WriteBegin(w)
	} else {
		format.MetaDataHeader{
			Block: format.BlockHeader{
				Type: format.MetaDataBlock,
				Size: format.MetaDataTypeSize + format.ThreadIDSize + format.HandleIDSize,
			},
			Type: format.EndResourceInitCommand,
		}.Write(w)
		body.WriteEnd(w)
	}
	m.writeBlock(ctx, td.header.Bytes(), nil)
}
