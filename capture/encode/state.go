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

// StateTracker is the inventory of live driver objects maintained while the
// engine is tracking but not writing. When a trim range opens, WriteState
// walks the inventory and emits the creation and initialization blocks that
// reconstruct it. The tracker itself is an external collaborator; the engine
// only drives this contract.
type StateTracker interface {
	// TrackMappedMemory records a mapping change. data is nil on unmap.
	TrackMappedMemory(wrapper *MemoryWrapper, data []byte, offset, size uint64, flags uint32)

	// TrackUpdateDescriptorSetWithTemplate records a templated descriptor
	// write, bucketed by the recorded template info.
	TrackUpdateDescriptorSetWithTemplate(set format.HandleID, info *UpdateTemplateInfo, data []byte)

	// WriteState emits the tracked state through w. A non-nil error
	// disables capture.
	WriteState(ctx context.Context, w *StateWriter) error
}

// stateTrackerFactory builds the tracker when tracking is first needed. The
// state tracking layer replaces this at load time; the default tracks
// nothing, so activation emits an empty snapshot.
var stateTrackerFactory = func() StateTracker { return nil }

// RegisterStateTrackerFactory installs the constructor for the state
// tracker. Must be called before the first CreateInstance.
func RegisterStateTrackerFactory(f func() StateTracker) {
	stateTrackerFactory = f
}

// StateWriter is handed to StateTracker.WriteState to emit a snapshot. All
// blocks it writes carry the thread id of the thread that opened the trim
// range, and go through the same framing and compression paths as live
// calls.
type StateWriter struct {
	m        *Manager
	threadID format.ThreadID
	scratch  ThreadData
}

func newStateWriter(m *Manager, threadID format.ThreadID) *StateWriter {
	s := &StateWriter{m: m, threadID: threadID}
	s.scratch.threadID = threadID
	return s
}

// WriteFunctionCall emits a synthesized call block with the given argument
// payload.
func (s *StateWriter) WriteFunctionCall(ctx context.Context, callID format.ApiCallID, payload []byte) {
	s.m.writeFunctionCall(ctx, callID, s.threadID, payload, &s.scratch)
}

// WriteFillMemory emits a fill-memory block describing an allocation's
// initial content.
func (s *StateWriter) WriteFillMemory(ctx context.Context, memoryID format.HandleID, offset, size uint64, data []byte) {
	s.m.writeFillMemory(ctx, memoryID, offset, size, data, &s.scratch, s.threadID)
}

// WriteBeginResourceInit brackets the start of a device's resource uploads.
// maxCopySize is the largest single upload that follows.
func (s *StateWriter) WriteBeginResourceInit(ctx context.Context, deviceID format.HandleID, maxCopySize uint64) {
	s.m.writeResourceInitCmd(ctx, true, deviceID, maxCopySize, s.threadID)
}

// WriteEndResourceInit brackets the end of a device's resource uploads.
func (s *StateWriter) WriteEndResourceInit(ctx context.Context, deviceID format.HandleID) {
	s.m.writeResourceInitCmd(ctx, false, deviceID, 0, s.threadID)
}

// WriteDisplayMessage emits a display-message block.
func (s *StateWriter) WriteDisplayMessage(ctx context.Context, message string) {
	s.m.WriteDisplayMessageCmd(ctx, message)
}
