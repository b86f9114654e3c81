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
	"sort"

	"github.com/google/gfxtrace/capture/settings"
	"github.com/google/gfxtrace/core/log"
	"github.com/google/gfxtrace/format"
)

// The memory tracking hooks. Whatever the strategy, every byte the host
// wrote to mapped memory before a queue submit has a fill-memory block in
// the stream before that submit's call block. Duplicate coverage is
// permitted; missed bytes are not.

// PostProcessAllocateMemory records the allocation size needed later by
// mapped-memory tracking.
func (m *Manager) PostProcessAllocateMemory(ctx context.Context, result Result, wrapper *MemoryWrapper, allocationSize uint64) {
	if result != Success || wrapper == nil {
		return
	}
	wrapper.AllocationSize = allocationSize
}

// PostProcessMapMemory observes a successful map and returns the pointer to
// hand back to the application, which is the page tracker's shadow buffer
// when page-guard tracking is active.
func (m *Manager) PostProcessMapMemory(ctx context.Context, result Result, wrapper *MemoryWrapper, offset, size uint64, flags uint32, data []byte) []byte {
	if result != Success || wrapper == nil || data == nil {
		return data
	}
	if wrapper.Mapped() {
		// Already tracked: hand back the pointer issued by the first map.
		log.W(ctx, "Memory object %v has been mapped more than once", wrapper.ID)
		return wrapper.MappedData
	}

	if size == WholeSize {
		size = wrapper.AllocationSize - offset
	}
	wrapper.MappedOffset = offset
	wrapper.MappedSize = size
	wrapper.MappedData = data
	if m.stateTracker != nil {
		m.stateTracker.TrackMappedMemory(wrapper, data, offset, size, flags)
	}

	switch m.memoryTracking {
	case settings.PageGuard:
		if size > 0 && m.pageGuard != nil {
			// The tracker may interpose shadow memory; from here on the
			// application writes through the returned pointer.
			wrapper.MappedData = m.pageGuard.AddMemory(wrapper.ID, data, false)
		}
	case settings.Unassisted:
		// Mapped objects are remembered so their content can be written at
		// each queue submit.
		m.mappedMu.Lock()
		m.mapped[wrapper.ID] = wrapper
		m.mappedMu.Unlock()
	}
	return wrapper.MappedData
}

// PreProcessFlushMappedMemoryRanges observes an explicit flush of mapped
// ranges.
func (m *Manager) PreProcessFlushMappedMemoryRanges(ctx context.Context, ranges []MappedMemoryRange) {
	switch m.memoryTracking {
	case settings.PageGuard:
		if m.pageGuard == nil {
			return
		}
		// All dirty pages of a mapped object are processed at once, so
		// multiple ranges on the same object collapse to one flush.
		var current *MemoryWrapper
		for _, r := range ranges {
			if r.Memory == current {
				continue
			}
			current = r.Memory
			if current != nil && current.Mapped() {
				m.pageGuard.ProcessMemoryEntry(current.ID, m.fillMemoryWriter(ctx))
			} else {
				log.W(ctx, "FlushMappedMemoryRanges called for memory that is not mapped")
			}
		}
	case settings.Assisted:
		for _, r := range ranges {
			w := r.Memory
			if w == nil || !w.Mapped() {
				log.W(ctx, "FlushMappedMemoryRanges called for memory that is not mapped")
				continue
			}
			if r.Offset < w.MappedOffset {
				log.W(ctx, "FlushMappedMemoryRanges range for memory %v precedes its mapping", w.ID)
				continue
			}
			// The mapped pointer already includes the mapped offset, so the
			// allocation-relative range offset is rebased onto the mapping.
			relative := r.Offset - w.MappedOffset
			size := r.Size
			if size == WholeSize {
				size = w.AllocationSize - r.Offset
			}
			m.WriteFillMemoryCmd(ctx, w.ID, relative, size, w.MappedData[relative:relative+size])
		}
	}
}

// PreProcessUnmapMemory observes an unmap, writing any content the replayer
// has not yet seen.
func (m *Manager) PreProcessUnmapMemory(ctx context.Context, wrapper *MemoryWrapper) {
	if wrapper == nil || !wrapper.Mapped() {
		log.W(ctx, "Attempting to unmap memory that has not been mapped")
		return
	}

	switch m.memoryTracking {
	case settings.PageGuard:
		if m.pageGuard != nil {
			m.pageGuard.ProcessMemoryEntry(wrapper.ID, m.fillMemoryWriter(ctx))
			m.pageGuard.RemoveMemory(wrapper.ID)
		}
	case settings.Unassisted:
		// Write the entire mapped region one final time. Offset 0 because
		// the mapped pointer already includes the offset.
		m.WriteFillMemoryCmd(ctx, wrapper.ID, 0, wrapper.MappedSize, wrapper.MappedData[:wrapper.MappedSize])
		m.mappedMu.Lock()
		delete(m.mapped, wrapper.ID)
		m.mappedMu.Unlock()
	}

	if m.stateTracker != nil {
		m.stateTracker.TrackMappedMemory(wrapper, nil, 0, 0, 0)
	}
	wrapper.MappedData = nil
	wrapper.MappedOffset = 0
	wrapper.MappedSize = 0
}

// PreProcessFreeMemory releases tracking state for an allocation freed while
// still mapped.
func (m *Manager) PreProcessFreeMemory(ctx context.Context, wrapper *MemoryWrapper) {
	if wrapper == nil {
		return
	}
	if m.memoryTracking == settings.PageGuard && wrapper.Mapped() && m.pageGuard != nil {
		m.pageGuard.RemoveMemory(wrapper.ID)
	}
}

// PreProcessQueueSubmit flushes mapped memory ahead of a queue submission so
// the fill-memory blocks precede the submit's call block.
func (m *Manager) PreProcessQueueSubmit(ctx context.Context) {
	switch m.memoryTracking {
	case settings.PageGuard:
		if m.pageGuard != nil {
			m.pageGuard.ProcessMemoryEntries(m.fillMemoryWriter(ctx))
		}
	case settings.Unassisted:
		m.mappedMu.Lock()
		wrappers := make([]*MemoryWrapper, 0, len(m.mapped))
		for _, w := range m.mapped {
			wrappers = append(wrappers, w)
		}
		m.mappedMu.Unlock()
		sort.Slice(wrappers, func(i, j int) bool { return wrappers[i].ID < wrappers[j].ID })
		for _, w := range wrappers {
			// Every mapped region is rewritten in full.
			m.WriteFillMemoryCmd(ctx, w.ID, 0, w.MappedSize, w.MappedData[:w.MappedSize])
		}
	}
}

func (m *Manager) fillMemoryWriter(ctx context.Context) func(id format.HandleID, offset, size uint64, data []byte) {
	return func(id format.HandleID, offset, size uint64, data []byte) {
		m.WriteFillMemoryCmd(ctx, id, offset, size, data)
	}
}
