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

	"github.com/google/gfxtrace/core/log"
	"github.com/google/gfxtrace/format"
)

// DescriptorType enumerates the descriptor kinds an update template entry
// may carry.
type DescriptorType uint32

const (
	DescriptorTypeSampler DescriptorType = iota
	DescriptorTypeCombinedImageSampler
	DescriptorTypeSampledImage
	DescriptorTypeStorageImage
	DescriptorTypeInputAttachment
	DescriptorTypeUniformTexelBuffer
	DescriptorTypeStorageTexelBuffer
	DescriptorTypeUniformBuffer
	DescriptorTypeStorageBuffer
	DescriptorTypeUniformBufferDynamic
	DescriptorTypeStorageBufferDynamic
)

// Host sizes of the per-descriptor payload structures an update template
// entry points at.
const (
	ImageInfoEntrySize       = 24 // sampler + image view handles, layout
	BufferInfoEntrySize      = 24 // buffer handle, offset, range
	TexelBufferViewEntrySize = 8  // buffer view handle
)

// UpdateTemplateEntry describes one entry of a descriptor update template.
type UpdateTemplateEntry struct {
	Binding      uint32
	ArrayElement uint32
	Count        uint32
	// Offset and Stride locate the entry's descriptors within the host data
	// blob passed to an update.
	Offset uint64
	Stride uint64
	Type   DescriptorType
}

// UpdateTemplateInfo is a template's entries bucketed by descriptor kind, so
// a later update through the template can be serialized as tightly packed
// arrays, one per kind.
type UpdateTemplateInfo struct {
	// MaxSize is the smallest contiguous host byte range containing every
	// recognized entry's data. Entries of unrecognized kinds are not
	// counted, so MaxSize may undercount for templates that carry them.
	MaxSize uint64

	ImageInfoCount       uint32
	BufferInfoCount      uint32
	TexelBufferViewCount uint32

	ImageInfo       []UpdateTemplateEntry
	BufferInfo      []UpdateTemplateEntry
	TexelBufferView []UpdateTemplateEntry

	// Unrecognized counts the entries dropped from the buckets.
	Unrecognized uint32
}

// SetDescriptorUpdateTemplateInfo records a template's entries. Recording an
// id that already exists replaces the previous info wholesale; recorded info
// is never mutated in place.
func (m *Manager) SetDescriptorUpdateTemplateInfo(ctx context.Context, template format.HandleID, entries []UpdateTemplateEntry) {
	if len(entries) == 0 {
		return
	}
	info := &UpdateTemplateInfo{}

	for _, entry := range entries {
		var entrySize uint64
		switch entry.Type {
		case DescriptorTypeSampler, DescriptorTypeCombinedImageSampler,
			DescriptorTypeSampledImage, DescriptorTypeStorageImage,
			DescriptorTypeInputAttachment:
			info.ImageInfoCount += entry.Count
			info.ImageInfo = append(info.ImageInfo, entry)
			entrySize = ImageInfoEntrySize

		case DescriptorTypeUniformBuffer, DescriptorTypeStorageBuffer,
			DescriptorTypeUniformBufferDynamic, DescriptorTypeStorageBufferDynamic:
			info.BufferInfoCount += entry.Count
			info.BufferInfo = append(info.BufferInfo, entry)
			entrySize = BufferInfoEntrySize

		case DescriptorTypeUniformTexelBuffer, DescriptorTypeStorageTexelBuffer:
			info.TexelBufferViewCount += entry.Count
			info.TexelBufferView = append(info.TexelBufferView, entry)
			entrySize = TexelBufferViewEntrySize

		default:
			log.E(ctx, "Unrecognized descriptor type %d in descriptor update template", entry.Type)
			info.Unrecognized++
			continue
		}

		if entry.Count > 0 {
			maxSize := uint64(entry.Count-1)*entry.Stride + entry.Offset + entrySize
			if maxSize > info.MaxSize {
				info.MaxSize = maxSize
			}
		}
	}

	m.templateMu.Lock()
	m.templates[template] = info
	m.templateMu.Unlock()
}

// GetDescriptorUpdateTemplateInfo looks up a recorded template.
func (m *Manager) GetDescriptorUpdateTemplateInfo(template format.HandleID) (*UpdateTemplateInfo, bool) {
	m.templateMu.Lock()
	defer m.templateMu.Unlock()
	info, ok := m.templates[template]
	return info, ok
}

// RemoveDescriptorUpdateTemplateInfo drops a recorded template when its
// handle is destroyed.
func (m *Manager) RemoveDescriptorUpdateTemplateInfo(template format.HandleID) {
	m.templateMu.Lock()
	delete(m.templates, template)
	m.templateMu.Unlock()
}

// PreProcessCreateDescriptorUpdateTemplate observes a successful template
// creation.
func (m *Manager) PreProcessCreateDescriptorUpdateTemplate(ctx context.Context, result Result, template format.HandleID, entries []UpdateTemplateEntry) {
	if result != Success || len(entries) == 0 {
		return
	}
	m.SetDescriptorUpdateTemplateInfo(ctx, template, entries)
}

// TrackUpdateDescriptorSetWithTemplate forwards a templated descriptor
// update to the state tracker together with the recorded bucketing, so the
// snapshot can serialize the host data as packed arrays.
func (m *Manager) TrackUpdateDescriptorSetWithTemplate(ctx context.Context, set, template format.HandleID, data []byte) {
	info, ok := m.GetDescriptorUpdateTemplateInfo(template)
	if !ok {
		return
	}
	if m.stateTracker != nil {
		m.stateTracker.TrackUpdateDescriptorSetWithTemplate(set, info, data)
	}
}
