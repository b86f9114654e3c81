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

// Package pageguard tracks writes to mapped GPU memory at page granularity.
//
// Each tracked region may be shadowed: the application receives a shadow
// buffer in place of the driver's mapped pointer, and flushed bytes are
// copied back to the driver memory before they are reported. Dirty pages are
// found two ways: platform glue that can observe writes marks ranges with
// SetDirty, and every flush additionally compares the region against a
// baseline snapshot taken at the previous flush. Comparison can report a page
// that was rewritten with identical bytes as clean, but never misses a page
// whose content changed, so a flush always covers every byte the driver has
// not yet seen.
package pageguard

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/gfxtrace/core/math/interval"
	"github.com/google/gfxtrace/format"
)

// WriteFunc receives one contiguous dirty run of a tracked region. data holds
// exactly the run's bytes; offset is relative to the start of the region.
type WriteFunc func(id format.HandleID, offset, size uint64, data []byte)

// Manager tracks the set of mapped memory regions.
type Manager struct {
	mu       sync.Mutex
	pageSize uint64
	shadow   bool
	entries  map[format.HandleID]*entry
}

type entry struct {
	app       []byte // the driver's mapped memory
	effective []byte // what the application writes into
	baseline  []byte // snapshot of effective at the previous flush
	shadowed  bool
	dirty     interval.U64SpanList
	free      func()
}

// Options configure a Manager.
type Options struct {
	// PageSize is the tracking granularity, a power of two. Zero selects the
	// OS page size.
	PageSize uint64
	// ShadowMemory interposes a shadow buffer between the application and
	// the driver memory.
	ShadowMemory bool
}

// NewManager creates a Manager with the supplied options.
func NewManager(opts Options) *Manager {
	size := opts.PageSize
	if size == 0 {
		size = osPageSize()
	}
	return &Manager{
		pageSize: size,
		shadow:   opts.ShadowMemory,
		entries:  map[format.HandleID]*entry{},
	}
}

var (
	instanceMu sync.Mutex
	instance   *Manager
)

// Create initializes the process-wide Manager. Calling Create when an
// instance already exists replaces it.
func Create(opts Options) *Manager {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = NewManager(opts)
	return instance
}

// Get returns the process-wide Manager, or nil before Create.
func Get() *Manager {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// Destroy releases the process-wide Manager.
func Destroy() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
}

// AddMemory starts tracking a mapped region and returns the pointer the
// application should write through: a shadow buffer when shadowing is
// enabled, otherwise data itself. Adding an id that is already tracked
// replaces the previous registration.
func (m *Manager) AddMemory(id format.HandleID, data []byte, useShadow bool) []byte {
	e := &entry{app: data, effective: data}
	if useShadow || m.shadow {
		shadow, free := allocPages(len(data))
		copy(shadow, data)
		e.effective = shadow
		e.shadowed = true
		e.free = free
	}
	e.baseline = make([]byte, len(data))
	copy(e.baseline, e.effective)

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[id]; ok && old.free != nil {
		old.free()
	}
	m.entries[id] = e
	return e.effective
}

// RemoveMemory stops tracking a region. Pending dirty pages are discarded;
// callers flush with ProcessMemoryEntry first if they need them.
func (m *Manager) RemoveMemory(id format.HandleID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false
	}
	if e.free != nil {
		e.free()
	}
	delete(m.entries, id)
	return true
}

// SetDirty marks a byte range of a tracked region dirty, expanded to page
// boundaries. Platform glue that observes writes calls this so the next flush
// need not rely on comparison alone.
func (m *Manager) SetDirty(id format.HandleID, offset, size uint64) {
	if size == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return
	}
	start := offset &^ (m.pageSize - 1)
	end := roundUp(offset+size, m.pageSize)
	if max := uint64(len(e.effective)); end > max {
		end = max
	}
	e.dirty.Merge(interval.U64Span{Start: start, End: end})
}

// Tracked returns true if the id is currently tracked.
func (m *Manager) Tracked(id format.HandleID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	return ok
}

// ProcessMemoryEntry flushes one tracked region: every contiguous dirty run
// is synced to the driver memory, folded into the baseline, and delivered to
// fn in ascending offset order. Returns false if the id is not tracked.
func (m *Manager) ProcessMemoryEntry(id format.HandleID, fn WriteFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false
	}
	m.flushEntry(id, e, fn)
	return true
}

// ProcessMemoryEntries flushes every tracked region, as ProcessMemoryEntry.
func (m *Manager) ProcessMemoryEntries(fn WriteFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Deterministic order keeps the capture stream stable for equal inputs.
	ids := make([]format.HandleID, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sortHandleIDs(ids)
	for _, id := range ids {
		m.flushEntry(id, m.entries[id], fn)
	}
}

func (m *Manager) flushEntry(id format.HandleID, e *entry, fn WriteFunc) {
	runs := e.dirty
	e.dirty = nil
	size := uint64(len(e.effective))
	for page := uint64(0); page < size; page += m.pageSize {
		end := page + m.pageSize
		if end > size {
			end = size
		}
		if covered(runs, page) {
			continue
		}
		if !bytes.Equal(e.effective[page:end], e.baseline[page:end]) {
			runs.Merge(interval.U64Span{Start: page, End: end})
		}
	}
	for _, run := range runs {
		if run.Start >= size {
			continue
		}
		if run.End > size {
			run.End = size
		}
		data := e.effective[run.Start:run.End]
		copy(e.baseline[run.Start:run.End], data)
		if e.shadowed {
			copy(e.app[run.Start:run.End], data)
		}
		fn(id, run.Start, run.End-run.Start, data)
	}
}

func covered(runs interval.U64SpanList, v uint64) bool {
	for _, r := range runs {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

func roundUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

func sortHandleIDs(ids []format.HandleID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
