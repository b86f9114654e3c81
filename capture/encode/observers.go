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

	"github.com/google/gfxtrace/format"
)

// The generated interception shims talk to the engine through these narrow
// observer interfaces rather than the whole Manager.

// MemoryMapObserver observes map, unmap and free of host-visible memory.
type MemoryMapObserver interface {
	PostProcessAllocateMemory(ctx context.Context, result Result, wrapper *MemoryWrapper, allocationSize uint64)
	PostProcessMapMemory(ctx context.Context, result Result, wrapper *MemoryWrapper, offset, size uint64, flags uint32, data []byte) []byte
	PreProcessUnmapMemory(ctx context.Context, wrapper *MemoryWrapper)
	PreProcessFreeMemory(ctx context.Context, wrapper *MemoryWrapper)
}

// MemoryFlushObserver observes explicit flushes of mapped ranges.
type MemoryFlushObserver interface {
	PreProcessFlushMappedMemoryRanges(ctx context.Context, ranges []MappedMemoryRange)
}

// QueueSubmitObserver observes work submission to a queue.
type QueueSubmitObserver interface {
	PreProcessQueueSubmit(ctx context.Context)
}

// WindowResizeObserver observes swapchain creation carrying new surface
// dimensions.
type WindowResizeObserver interface {
	PreProcessCreateSwapchain(ctx context.Context, surfaceID format.HandleID, width, height uint32)
}

var (
	_ MemoryMapObserver    = (*Manager)(nil)
	_ MemoryFlushObserver  = (*Manager)(nil)
	_ QueueSubmitObserver  = (*Manager)(nil)
	_ WindowResizeObserver = (*Manager)(nil)
)
