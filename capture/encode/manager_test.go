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
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/gfxtrace/capture/settings"
	"github.com/google/gfxtrace/core/assert"
	"github.com/google/gfxtrace/core/data/endian"
	"github.com/google/gfxtrace/core/log"
	"github.com/google/gfxtrace/format"
)

// testSettings returns no-trim, uncompressed settings writing into dir.
func testSettings(dir string) settings.Settings {
	s := settings.Default()
	s.CaptureFile = filepath.Join(dir, "capture.gfxt")
	s.TimestampFile = false
	s.Compression = format.NoCompression
	s.MemoryTracking = settings.Unassisted
	return s
}

func startManager(ctx context.Context, t *testing.T, s settings.Settings) *Manager {
	resetThreadState()
	m := newManager(s)
	if err := m.initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return m
}

// block is one parsed capture block.
type block struct {
	typ              format.BlockType
	size             uint64
	apiCallID        format.ApiCallID
	threadID         format.ThreadID
	uncompressedSize uint64
	metaType         format.MetaDataType
	memoryID         format.HandleID
	memoryOffset     uint64
	memorySize       uint64
	payload          []byte
}

// readCapture parses a capture file written by the manager.
func readCapture(t *testing.T, path string) (format.FileHeader, []format.FileOptionPair, []block) {
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read capture %q: %v", path, err)
	}
	br := bytes.NewReader(raw)
	r := endian.Reader(br, endian.Little)

	header := format.ReadFileHeader(r)
	options := make([]format.FileOptionPair, header.NumOptions)
	for i := range options {
		options[i] = format.ReadFileOptionPair(r)
	}

	var blocks []block
	for br.Len() > 0 {
		bh := format.ReadBlockHeader(r)
		b := block{typ: bh.Type, size: bh.Size}
		body := bh.Size
		switch bh.Type {
		case format.FunctionCallBlock:
			b.apiCallID = format.ApiCallID(r.Uint32())
			b.threadID = format.ThreadID(r.Uint64())
			body -= format.ApiCallIDSize + format.ThreadIDSize
		case format.CompressedFunctionCallBlock:
			b.apiCallID = format.ApiCallID(r.Uint32())
			b.threadID = format.ThreadID(r.Uint64())
			b.uncompressedSize = r.Uint64()
			body -= format.ApiCallIDSize + format.ThreadIDSize + format.UncompressedSizeSize
		case format.MetaDataBlock, format.CompressedMetaDataBlock:
			b.metaType = format.ReadMetaDataType(r)
			body -= format.MetaDataTypeSize
			if b.metaType == format.FillMemoryCommand {
				b.threadID = format.ThreadID(r.Uint64())
				b.memoryID = format.HandleID(r.Uint64())
				b.memoryOffset = r.Uint64()
				b.memorySize = r.Uint64()
				body -= format.ThreadIDSize + format.HandleIDSize + 8 + 8
			}
		default:
			t.Fatalf("unexpected block type %d", bh.Type)
		}
		b.payload = make([]byte, body)
		r.Data(b.payload)
		blocks = append(blocks, b)
	}
	if err := r.Error(); err != nil {
		t.Fatalf("parse capture %q: %v", path, err)
	}
	return header, options, blocks
}

func TestNoTrimSingleCall(t *testing.T) {
	ctx := log.Testing(t)
	s := testSettings(t.TempDir())
	m := startManager(ctx, t, s)

	e := m.InitApiCallTrace(format.FirstVendorCall + 7)
	e.Data(make([]byte, 16))
	m.EndApiCallTrace(ctx, e)
	m.destroy(ctx)

	header, options, blocks := readCapture(t, s.CaptureFile)
	assert.For(ctx, "fourcc").That(header.FourCC).Equals(format.FourCC)
	assert.For(ctx, "versions").That(header.Major).Equals(uint16(0))
	assert.For(ctx, "num options").That(header.NumOptions).Equals(uint32(1))
	assert.For(ctx, "option id").That(options[0].Option).Equals(format.CompressionTypeOption)
	assert.For(ctx, "option value").That(options[0].Value).Equals(uint32(format.NoCompression))

	assert.For(ctx, "one block").ThatSlice(blocks).IsLength(1)
	b := blocks[0]
	assert.For(ctx, "block type").That(b.typ).Equals(format.FunctionCallBlock)
	assert.For(ctx, "block size").That(b.size).Equals(uint64(4 + 8 + 16))
	assert.For(ctx, "call id").That(b.apiCallID).Equals(format.FirstVendorCall + 7)
	assert.For(ctx, "thread id").That(b.threadID).Equals(format.ThreadID(1))
	assert.For(ctx, "payload length").ThatInteger(len(b.payload)).Equals(16)
}

func TestTwoThreadsOrdering(t *testing.T) {
	ctx := log.Testing(t)
	s := testSettings(t.TempDir())
	m := startManager(ctx, t, s)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := m.InitApiCallTrace(format.ApiCallQueueSubmit)
			m.EndApiCallTrace(ctx, e)
		}()
	}
	wg.Wait()
	m.destroy(ctx)

	_, _, blocks := readCapture(t, s.CaptureFile)
	assert.For(ctx, "two blocks").ThatSlice(blocks).IsLength(2)
	ids := map[format.ThreadID]bool{blocks[0].threadID: true, blocks[1].threadID: true}
	// Ids are assigned in first-touch order; either cross-order is permitted.
	assert.For(ctx, "distinct thread ids").ThatBoolean(ids[1] && ids[2]).IsTrue()
}

// snapshotTracker emits a recognizable state snapshot on activation.
type snapshotTracker struct {
	writeState func(ctx context.Context, w *StateWriter) error
}

func (snapshotTracker) TrackMappedMemory(*MemoryWrapper, []byte, uint64, uint64, uint32) {}
func (snapshotTracker) TrackUpdateDescriptorSetWithTemplate(format.HandleID, *UpdateTemplateInfo, []byte) {
}
func (s snapshotTracker) WriteState(ctx context.Context, w *StateWriter) error {
	if s.writeState != nil {
		return s.writeState(ctx, w)
	}
	return nil
}

func withSnapshotTracker(t *testing.T, writeState func(ctx context.Context, w *StateWriter) error) {
	prev := stateTrackerFactory
	stateTrackerFactory = func() StateTracker { return snapshotTracker{writeState} }
	t.Cleanup(func() { stateTrackerFactory = prev })
}

func TestTrimRangePageGuard(t *testing.T) {
	ctx := log.Testing(t)
	s := testSettings(t.TempDir())
	s.MemoryTracking = settings.PageGuard
	s.TrimRanges = []settings.TrimRange{{First: 3, Total: 2}}

	const deviceID = format.HandleID(42)
	withSnapshotTracker(t, func(ctx context.Context, w *StateWriter) error {
		w.WriteBeginResourceInit(ctx, deviceID, 64)
		w.WriteEndResourceInit(ctx, deviceID)
		return nil
	})
	m := startManager(ctx, t, s)

	captureCall := func() {
		e := m.InitApiCallTrace(format.ApiCallQueueSubmit)
		m.EndApiCallTrace(ctx, e)
	}

	trimFile := filepath.Join(filepath.Dir(s.CaptureFile), "capture_frames_3_through_4.gfxt")

	// Frames 1 and 2: observing only, no file.
	captureCall()
	m.EndFrame(ctx)
	captureCall()
	if _, err := os.Stat(trimFile); !os.IsNotExist(err) {
		t.Fatalf("capture file exists before trim range opened")
	}
	m.EndFrame(ctx)

	// Frames 3 and 4: writing.
	captureCall()
	m.EndFrame(ctx)
	captureCall()
	m.EndFrame(ctx)

	// Past the range: no further output.
	captureCall()
	m.EndFrame(ctx)
	assert.For(ctx, "disabled").That(m.currentMode()).Equals(modeDisabled)

	_, _, blocks := readCapture(t, trimFile)
	assert.For(ctx, "snapshot plus two calls").ThatSlice(blocks).IsLength(4)
	assert.For(ctx, "snapshot begin").That(blocks[0].metaType).Equals(format.BeginResourceInitCommand)
	assert.For(ctx, "snapshot end").That(blocks[1].metaType).Equals(format.EndResourceInitCommand)
	assert.For(ctx, "frame 3 call").That(blocks[2].typ).Equals(format.FunctionCallBlock)
	assert.For(ctx, "frame 4 call").That(blocks[3].typ).Equals(format.FunctionCallBlock)

	m.destroy(ctx)
}

func TestConsecutiveTrimRanges(t *testing.T) {
	ctx := log.Testing(t)
	s := testSettings(t.TempDir())
	s.TrimRanges = []settings.TrimRange{{First: 1, Total: 1}, {First: 3, Total: 1}}

	withSnapshotTracker(t, func(ctx context.Context, w *StateWriter) error {
		w.WriteDisplayMessage(ctx, "snapshot")
		return nil
	})
	m := startManager(ctx, t, s)

	// Starting at frame 1 with a later range pending: write and track.
	assert.For(ctx, "initial mode").That(m.currentMode()).Equals(modeWriteAndTrack)

	captureCall := func() {
		e := m.InitApiCallTrace(format.ApiCallQueuePresent)
		m.EndApiCallTrace(ctx, e)
	}

	captureCall() // frame 1
	m.EndFrame(ctx)
	captureCall() // frame 2: not recorded
	m.EndFrame(ctx)
	captureCall() // frame 3
	m.EndFrame(ctx)
	assert.For(ctx, "disabled").That(m.currentMode()).Equals(modeDisabled)

	dir := filepath.Dir(s.CaptureFile)

	_, _, first := readCapture(t, filepath.Join(dir, "capture_frame_1.gfxt"))
	assert.For(ctx, "first file blocks").ThatSlice(first).IsLength(1)
	assert.For(ctx, "first file call").That(first[0].typ).Equals(format.FunctionCallBlock)

	_, _, second := readCapture(t, filepath.Join(dir, "capture_frame_3.gfxt"))
	assert.For(ctx, "second file blocks").ThatSlice(second).IsLength(2)
	assert.For(ctx, "snapshot prefix").That(second[0].metaType).Equals(format.DisplayMessageCommand)
	assert.For(ctx, "snapshot text").ThatString(string(second[0].payload[8:])).Equals("snapshot")
	assert.For(ctx, "frame 3 call").That(second[1].typ).Equals(format.FunctionCallBlock)

	m.destroy(ctx)
}

// expandingCompressor always "compresses" to a larger payload.
type expandingCompressor struct{}

func (expandingCompressor) Compress(src []byte, dst *[]byte) (int, error) {
	out := append(append([]byte(nil), src...), 0, 0, 0)
	*dst = out
	return len(out), nil
}

func (expandingCompressor) Decompress(src []byte, expandedSize uint64) ([]byte, error) {
	return src[:expandedSize], nil
}

func TestCompressionNotBeneficial(t *testing.T) {
	ctx := log.Testing(t)
	s := testSettings(t.TempDir())
	m := startManager(ctx, t, s)
	m.compressor = expandingCompressor{}

	e := m.InitApiCallTrace(format.ApiCallQueueSubmit)
	e.Data([]byte{1, 2, 3, 4})
	m.EndApiCallTrace(ctx, e)
	m.destroy(ctx)

	_, _, blocks := readCapture(t, s.CaptureFile)
	assert.For(ctx, "one block").ThatSlice(blocks).IsLength(1)
	assert.For(ctx, "uncompressed").That(blocks[0].typ).Equals(format.FunctionCallBlock)
	assert.For(ctx, "size").That(blocks[0].size).Equals(uint64(4 + 8 + 4))
}

func TestCompressionApplied(t *testing.T) {
	ctx := log.Testing(t)
	s := testSettings(t.TempDir())
	s.Compression = format.LZ4Compression
	m := startManager(ctx, t, s)

	payload := bytes.Repeat([]byte{0xAB}, 256)
	e := m.InitApiCallTrace(format.ApiCallQueueSubmit)
	e.Data(payload)
	m.EndApiCallTrace(ctx, e)
	m.destroy(ctx)

	_, options, blocks := readCapture(t, s.CaptureFile)
	assert.For(ctx, "option value").That(options[0].Value).Equals(uint32(format.LZ4Compression))
	assert.For(ctx, "one block").ThatSlice(blocks).IsLength(1)
	b := blocks[0]
	assert.For(ctx, "compressed").That(b.typ).Equals(format.CompressedFunctionCallBlock)
	assert.For(ctx, "uncompressed size").That(b.uncompressedSize).Equals(uint64(256))
	// Compression is only kept when strictly smaller.
	assert.For(ctx, "strictly smaller").ThatInteger(len(b.payload)).IsAtMost(255)
	assert.For(ctx, "size field").That(b.size).Equals(uint64(4 + 8 + 8 + len(b.payload)))
}

func TestWriteFailureDisablesCapture(t *testing.T) {
	ctx := log.Testing(t)
	s := testSettings(t.TempDir())
	m := startManager(ctx, t, s)

	// Kill the sink behind the manager's back: the next block write fails
	// and capture must drop to disabled rather than leave a hole.
	m.file.Close()

	e := m.InitApiCallTrace(format.ApiCallQueueSubmit)
	e.Data([]byte{1})
	m.EndApiCallTrace(ctx, e)

	assert.For(ctx, "disabled").That(m.currentMode()).Equals(modeDisabled)

	// Later writes are no-ops.
	e = m.InitApiCallTrace(format.ApiCallQueueSubmit)
	m.EndApiCallTrace(ctx, e)
	assert.For(ctx, "still disabled").That(m.currentMode()).Equals(modeDisabled)
	m.destroy(ctx)
}

func TestActivationFailureDisablesCapture(t *testing.T) {
	collected := &collectingHandler{}
	ctx := log.PutHandler(context.Background(), collected)

	s := testSettings(t.TempDir())
	s.TrimRanges = []settings.TrimRange{{First: 2, Total: 1}}
	m := startManager(ctx, t, s)

	// Make the trim range's file impossible to create.
	m.baseFilename = filepath.Join(s.CaptureFile, "not-a-directory", "capture.gfxt")

	m.EndFrame(ctx) // enter frame 2: activation fails
	if got := m.currentMode(); got != modeDisabled {
		t.Errorf("mode after failed activation: got %v, want disabled", got)
	}
	if !collected.sawFatal() {
		t.Errorf("expected a fatal log message from failed activation")
	}
	// The host keeps running: further hooks are harmless.
	m.EndFrame(ctx)
	e := m.InitApiCallTrace(format.ApiCallQueueSubmit)
	m.EndApiCallTrace(ctx, e)
	m.destroy(ctx)
}

type collectingHandler struct {
	mu       sync.Mutex
	messages []*log.Message
}

func (h *collectingHandler) Handle(m *log.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, m)
}

func (h *collectingHandler) Close() {}

func (h *collectingHandler) sawFatal() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.messages {
		if m.Severity == log.Fatal {
			return true
		}
	}
	return false
}

func TestInstanceRefCounting(t *testing.T) {
	ctx := log.Testing(t)
	dir := t.TempDir()
	t.Setenv("GFXTRACE_CAPTURE_FILE", filepath.Join(dir, "capture.gfxt"))
	t.Setenv("GFXTRACE_CAPTURE_FILE_TIMESTAMP", "false")
	t.Setenv("GFXTRACE_CAPTURE_COMPRESSION_TYPE", "none")
	resetThreadState()

	assert.For(ctx, "create").ThatError(CreateInstance(ctx)).Succeeded()
	assert.For(ctx, "instance").That(Get()).IsNotNil()
	assert.For(ctx, "second create").ThatError(CreateInstance(ctx)).Succeeded()

	DestroyInstance(ctx)
	assert.For(ctx, "still referenced").That(Get()).IsNotNil()
	DestroyInstance(ctx)
	assert.For(ctx, "torn down").That(Get()).IsNil()

	// Failed driver instance creation unwinds the reference.
	assert.For(ctx, "recreate").ThatError(CreateInstance(ctx)).Succeeded()
	CheckCreateInstanceStatus(ctx, Result(-1))
	assert.For(ctx, "unwound").That(Get()).IsNil()
}

func TestThreadDataIdentity(t *testing.T) {
	ctx := log.Testing(t)
	resetThreadState()

	td := GetThreadData()
	assert.For(ctx, "first id").That(td.ThreadID()).Equals(format.ThreadID(1))
	assert.For(ctx, "same data").That(GetThreadData()).Equals(td)

	done := make(chan format.ThreadID)
	go func() {
		done <- GetThreadData().ThreadID()
	}()
	assert.For(ctx, "second thread id").That(<-done).Equals(format.ThreadID(2))

	// Releasing drops the buffers but the id stays reserved.
	ReleaseThreadData()
	td2 := GetThreadData()
	assert.For(ctx, "fresh data").That(td2).NotEquals(td)
	assert.For(ctx, "stable id").That(td2.ThreadID()).Equals(format.ThreadID(1))
}
