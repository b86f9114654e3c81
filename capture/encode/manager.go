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

// Package encode implements the capture manager: the per-thread encoding
// pipeline, the frame-range trim state machine, and the memory tracking
// hooks that together produce a replayable capture stream.
package encode

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/gfxtrace/capture/compress"
	"github.com/google/gfxtrace/capture/pageguard"
	"github.com/google/gfxtrace/capture/settings"
	"github.com/google/gfxtrace/core/data/binary"
	"github.com/google/gfxtrace/core/data/endian"
	"github.com/google/gfxtrace/core/log"
	"github.com/google/gfxtrace/format"
	"github.com/pkg/errors"
)

// One based frame count.
const firstFrame = 1

// captureMode is a bitset of the two capture activities. Zero is the
// disabled state: neither bit ever comes back once both are cleared by
// shutdown.
type captureMode uint32

const (
	modeDisabled      captureMode = 0
	modeWrite         captureMode = 0x01
	modeTrack         captureMode = 0x02
	modeWriteAndTrack             = modeWrite | modeTrack
)

// Manager is the process-wide capture engine. One instance exists at a time,
// created by the first driver-instance creation and destroyed by the last.
//
// The trim fields (trimRanges, trimCurrent, currentFrame) are only touched
// by Initialize and EndFrame; callers serialize end-of-frame. Everything on
// the write path goes through fileMu.
type Manager struct {
	baseFilename      string
	timestampFilename bool
	forceFlush        bool
	memoryTracking    settings.MemoryTrackingMode
	compressionType   format.CompressionType

	mode atomic.Uint32 // captureMode bits

	trimEnabled  bool
	trimRanges   []settings.TrimRange
	trimCurrent  int
	currentFrame uint32

	compressor   compress.Compressor
	stateTracker StateTracker
	pageGuard    *pageguard.Manager

	fileMu       sync.Mutex
	file         *os.File
	writer       binary.Writer
	bytesWritten uint64

	mappedMu sync.Mutex
	mapped   map[format.HandleID]*MemoryWrapper

	templateMu sync.Mutex
	templates  map[format.HandleID]*UpdateTemplateInfo
}

var (
	instanceMu    sync.Mutex
	instanceCount uint32
	instance      atomic.Pointer[Manager]
)

// CreateInstance initializes the process-wide manager, or bumps its
// reference count if it already exists. Called when the application creates
// a driver instance.
func CreateInstance(ctx context.Context) error {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instanceCount == 0 {
		m := newManager(settings.Load(ctx))
		if err := m.initialize(ctx); err != nil {
			log.F(ctx, false, "Failed to initialize capture manager: %v", err)
			return err
		}
		instance.Store(m)
		instanceCount = 1
	} else {
		instanceCount++
	}
	log.D(ctx, "CreateInstance(): current instance count is %d", instanceCount)
	return nil
}

// CheckCreateInstanceStatus unwinds CreateInstance when the wrapped driver
// call failed.
func CheckCreateInstanceStatus(ctx context.Context, result Result) {
	if result != Success {
		DestroyInstance(ctx)
	}
}

// DestroyInstance drops one reference to the manager, tearing it down when
// the last reference goes. Called when the application destroys a driver
// instance.
func DestroyInstance(ctx context.Context) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instanceCount == 0 {
		return
	}
	instanceCount--
	if instanceCount == 0 {
		if m := instance.Swap(nil); m != nil {
			m.destroy(ctx)
		}
	}
	log.D(ctx, "DestroyInstance(): current instance count is %d", instanceCount)
}

// Get returns the process-wide manager, or nil when no driver instance is
// live. The load is lock-free; creation and destruction hold the instance
// lock.
func Get() *Manager {
	return instance.Load()
}

func newManager(s settings.Settings) *Manager {
	return &Manager{
		baseFilename:      s.CaptureFile,
		timestampFilename: s.TimestampFile,
		forceFlush:        s.ForceFlush,
		memoryTracking:    s.MemoryTracking,
		compressionType:   s.Compression,
		trimRanges:        append([]settings.TrimRange(nil), s.TrimRanges...),
		currentFrame:      firstFrame,
		mapped:            map[format.HandleID]*MemoryWrapper{},
		templates:         map[format.HandleID]*UpdateTemplateInfo{},
	}
}

func (m *Manager) initialize(ctx context.Context) error {
	// The compressor is built before the first file so that a construction
	// failure can demote the header's compression option to none.
	c, cerr := compress.New(m.compressionType)
	if cerr != nil {
		log.E(ctx, "Failed to create %v compressor, capture will not be compressed: %v", m.compressionType, cerr)
		m.compressionType = format.NoCompression
		c = nil
	}
	m.compressor = c

	var err error
	if len(m.trimRanges) == 0 {
		m.mode.Store(uint32(modeWrite))
		err = m.createCaptureFile(ctx, m.baseFilename)
	} else {
		m.trimEnabled = true
		if m.trimRanges[0].First == m.currentFrame {
			// Capturing from the first frame: state tracking is only needed
			// when a later range will need a snapshot.
			if len(m.trimRanges) > 1 {
				m.mode.Store(uint32(modeWriteAndTrack))
			} else {
				m.mode.Store(uint32(modeWrite))
			}
			err = m.createCaptureFile(ctx, trimFilename(m.baseFilename, m.trimRanges[0]))
		} else {
			m.mode.Store(uint32(modeTrack))
		}
	}
	if err != nil {
		m.mode.Store(uint32(modeDisabled))
		return err
	}

	if m.memoryTracking == settings.PageGuard {
		m.pageGuard = pageguard.Create(pageguard.Options{ShadowMemory: true})
	}
	if m.currentMode()&modeTrack != 0 {
		m.stateTracker = stateTrackerFactory()
	}
	return nil
}

func (m *Manager) destroy(ctx context.Context) {
	m.closeFile(ctx)
	if m.memoryTracking == settings.PageGuard {
		pageguard.Destroy()
		m.pageGuard = nil
	}
	m.mode.Store(uint32(modeDisabled))
	m.compressor = nil
	m.stateTracker = nil
}

func (m *Manager) currentMode() captureMode {
	return captureMode(m.mode.Load())
}

// MemoryTrackingMode returns the mapped-memory tracking strategy fixed at
// initialization.
func (m *Manager) MemoryTrackingMode() settings.MemoryTrackingMode {
	return m.memoryTracking
}

// BytesWritten returns the total bytes appended to the current and previous
// capture files.
func (m *Manager) BytesWritten() uint64 {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()
	return m.bytesWritten
}

// InitApiCallTrace stamps the calling thread with the call id and returns
// its encoder. It never fails and never blocks on shared state.
func (m *Manager) InitApiCallTrace(callID format.ApiCallID) *ParameterEncoder {
	td := GetThreadData()
	td.callID = callID
	return td.encoder
}

// EndApiCallTrace serializes the encoded call to the capture file, then
// resets the encoder. A no-op (beyond the reset) unless writing is active.
func (m *Manager) EndApiCallTrace(ctx context.Context, encoder *ParameterEncoder) {
	if encoder == nil {
		log.E(ctx, "EndApiCallTrace called with a nil encoder")
		return
	}
	defer encoder.Reset()
	if m.currentMode()&modeWrite == 0 {
		return
	}

	td := GetThreadData()
	if td.encoder != encoder {
		// The encoder belongs to another thread's buffer: a caller bug.
		// The call is still recorded against the encoding thread.
		log.W(ctx, "EndApiCallTrace called with an encoder from another thread")
	}
	m.writeFunctionCall(ctx, td.callID, td.threadID, encoder.Bytes(), td)
}

// writeFunctionCall frames and appends one call block on behalf of
// threadID. td supplies scratch buffers and may belong to a different
// thread than threadID when replaying snapshot state.
func (m *Manager) writeFunctionCall(ctx context.Context, callID format.ApiCallID, threadID format.ThreadID, payload []byte, td *ThreadData) {
	uncompressedSize := len(payload)
	compressed := false

	if m.compressor != nil {
		n, err := m.compressor.Compress(payload, &td.compressed)
		if err != nil {
			log.E(ctx, "Failed to compress call %v: %v", callID, err)
		} else if n > 0 && n < uncompressedSize {
			payload = td.compressed[:n]
			compressed = true
		}
	}

	td.header.Reset()
	hw := endian.Writer(&td.header, endian.Little)
	if compressed {
		format.CompressedFunctionCallHeader{
			Block: format.BlockHeader{
				Type: format.CompressedFunctionCallBlock,
				Size: format.CompressedFunctionCallBlockSize(len(payload)),
			},
			ApiCallID:        callID,
			ThreadID:         threadID,
			UncompressedSize: uint64(uncompressedSize),
		}.Write(hw)
	} else {
		format.FunctionCallHeader{
			Block: format.BlockHeader{
				Type: format.FunctionCallBlock,
				Size: format.FunctionCallBlockSize(len(payload)),
			},
			ApiCallID: callID,
			ThreadID:  threadID,
		}.Write(hw)
	}
	m.writeBlock(ctx, td.header.Bytes(), payload)
}

// writeBlock appends header then payload to the sink under the file lock.
// A write failure disables capture: the stream must not continue past a
// hole.
func (m *Manager) writeBlock(ctx context.Context, header, payload []byte) {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()
	if m.writer == nil {
		return
	}
	m.writer.Data(header)
	m.writer.Data(payload)
	if m.forceFlush {
		m.file.Sync()
	}
	if err := m.writer.Error(); err != nil {
		log.E(ctx, "Capture write failed, capture has been disabled: %v", err)
		m.closeFileLocked(ctx)
		m.trimEnabled = false
		m.mode.Store(uint32(modeDisabled))
		return
	}
	m.bytesWritten += uint64(len(header) + len(payload))
}

// EndFrame advances the frame counter and drives the trim state machine.
// Callers serialize end-of-frame.
func (m *Manager) EndFrame(ctx context.Context) {
	m.currentFrame++
	if !m.trimEnabled {
		return
	}

	mode := m.currentMode()
	switch {
	case mode&modeWrite != 0:
		// Currently capturing a frame range. Check for end of range.
		m.trimRanges[m.trimCurrent].Total--
		if m.trimRanges[m.trimCurrent].Total == 0 {
			m.mode.Store(uint32(mode &^ modeWrite))
			m.closeFile(ctx)

			m.trimCurrent++
			if m.trimCurrent >= len(m.trimRanges) {
				// No more frames to capture; release capture resources.
				m.trimEnabled = false
				m.mode.Store(uint32(modeDisabled))
				m.stateTracker = nil
				m.compressor = nil
			} else if m.trimRanges[m.trimCurrent].First == m.currentFrame {
				// Two consecutive ranges: a new file starts on the very next
				// frame.
				m.activateTrimming(ctx)
			}
		}
	case mode&modeTrack != 0:
		// Capture is not active. Check for start of a capture frame range.
		if m.trimRanges[m.trimCurrent].First == m.currentFrame {
			m.activateTrimming(ctx)
		}
	}
}

// activateTrimming opens the next trim range's file, switches writing on
// and emits the reconstructed state snapshot.
func (m *Manager) activateTrimming(ctx context.Context) {
	err := m.createCaptureFile(ctx, trimFilename(m.baseFilename, m.trimRanges[m.trimCurrent]))
	if err == nil {
		m.mode.Store(uint32(m.currentMode() | modeWrite))
		if m.stateTracker != nil {
			td := GetThreadData()
			err = m.stateTracker.WriteState(ctx, newStateWriter(m, td.threadID))
		}
	}
	if err != nil {
		log.F(ctx, false, "Failed to initialize capture for trim range; capture has been disabled: %v", err)
		m.closeFile(ctx)
		m.trimEnabled = false
		m.mode.Store(uint32(modeDisabled))
	}
}

// createCaptureFile opens a new capture file and writes the file header and
// option table.
func (m *Manager) createCaptureFile(ctx context.Context, filename string) error {
	if m.timestampFilename {
		filename = timestampFilename(filename)
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrapf(err, "create capture file %q", filename)
	}

	m.fileMu.Lock()
	defer m.fileMu.Unlock()
	m.file = f
	m.writer = endian.Writer(f, endian.Little)
	if err := m.writeFileHeaderLocked(); err != nil {
		f.Close()
		m.file, m.writer = nil, nil
		return errors.Wrapf(err, "write capture file header %q", filename)
	}
	log.I(ctx, "Recording graphics API capture to %s", filename)
	return nil
}

func (m *Manager) writeFileHeaderLocked() error {
	options := []format.FileOptionPair{
		{Option: format.CompressionTypeOption, Value: uint32(m.compressionType)},
	}

	format.FileHeader{
		FourCC:     format.FourCC,
		Major:      format.VersionMajor,
		Minor:      format.VersionMinor,
		NumOptions: uint32(len(options)),
	}.Write(m.writer)
	for _, opt := range options {
		opt.Write(m.writer)
	}
	if m.forceFlush {
		m.file.Sync()
	}
	if err := m.writer.Error(); err != nil {
		return err
	}
	m.bytesWritten += 12 + uint64(len(options))*8
	return nil
}

func (m *Manager) closeFile(ctx context.Context) {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()
	m.closeFileLocked(ctx)
}

func (m *Manager) closeFileLocked(ctx context.Context) {
	if m.file == nil {
		return
	}
	m.file.Close()
	m.file, m.writer = nil, nil
	log.I(ctx, "Finished recording graphics API capture")
}
