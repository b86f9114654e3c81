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

//go:build linux

package pageguard

import "golang.org/x/sys/unix"

func osPageSize() uint64 {
	return uint64(unix.Getpagesize())
}

// allocPages returns a page-aligned buffer of n bytes. Alignment matters to
// shadow buffers: it keeps the tracking pages congruent with the hardware
// pages the driver mapped.
func allocPages(n int) ([]byte, func()) {
	if n == 0 {
		return nil, func() {}
	}
	data, err := unix.Mmap(-1, 0, n,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		// Out of address space; fall back to the Go heap.
		heap := make([]byte, n)
		return heap, func() {}
	}
	buf := data[:n]
	return buf, func() { unix.Munmap(data) }
}
