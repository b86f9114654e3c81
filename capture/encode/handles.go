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
	"sync/atomic"

	"github.com/google/gfxtrace/format"
)

// Result is an opaque driver return code. The engine never interprets these
// beyond the success check; they are recorded and propagated verbatim.
type Result int32

// Success is the driver's zero success code.
const Success Result = 0

// WholeSize is the sentinel mapping size meaning "to the end of the
// allocation".
const WholeSize = ^uint64(0)

var nextHandleID atomic.Uint64

// NewHandleID returns the next unique handle identifier. The handle wrapping
// layer calls this when it wraps a driver object.
func NewHandleID() format.HandleID {
	return format.HandleID(nextHandleID.Add(1))
}

// MemoryWrapper is the per-allocation state the engine consumes from the
// handle wrapping layer. The wrapping layer owns the wrapper; the engine
// reads and updates the mapping fields through the hooks below.
type MemoryWrapper struct {
	// ID is the opaque identifier recorded in the capture stream.
	ID format.HandleID
	// AllocationSize is the full size of the allocation.
	AllocationSize uint64
	// MappedData is the mapping visible to the application, nil while
	// unmapped. When page-guard tracking shadows the mapping this is the
	// shadow buffer, not the driver's memory.
	MappedData []byte
	// MappedOffset is the allocation-relative offset of the mapping.
	MappedOffset uint64
	// MappedSize is the size of the mapping, already expanded from
	// WholeSize.
	MappedSize uint64
}

// Mapped returns true while the memory is mapped from the engine's
// perspective.
func (w *MemoryWrapper) Mapped() bool { return w.MappedData != nil }

// MappedMemoryRange names a byte range of a mapped allocation passed to a
// flush.
type MappedMemoryRange struct {
	Memory *MemoryWrapper
	// Offset is relative to the start of the allocation, not the mapping.
	Offset uint64
	// Size may be WholeSize.
	Size uint64
}
