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
	"sync"

	"github.com/google/gfxtrace/format"
	"github.com/petermattis/goid"
)

// ThreadData is the per-thread encoding state: the thread's stable id, the
// call currently being encoded, and the scratch buffers the encoding pipeline
// writes through. Interception shims enter the engine on a goroutine locked
// to its OS thread, so goroutine identity is stable for the duration of a
// call and is what the registry keys on.
type ThreadData struct {
	threadID   format.ThreadID
	callID     format.ApiCallID
	encoder    *ParameterEncoder
	compressed []byte
	header     bytes.Buffer
}

// ThreadID returns the thread's stable identifier.
func (t *ThreadData) ThreadID() format.ThreadID { return t.threadID }

// CallID returns the id of the call currently being encoded.
func (t *ThreadData) CallID() format.ApiCallID { return t.callID }

// Encoder returns the thread's parameter encoder.
func (t *ThreadData) Encoder() *ParameterEncoder { return t.encoder }

// The thread-id registry. Identifiers are dense, assigned from 1 in
// first-touch order, and stable for the process lifetime.
var threadIDs = struct {
	sync.Mutex
	next uint64
	ids  map[int64]format.ThreadID
}{ids: map[int64]format.ThreadID{}}

func currentThreadID() format.ThreadID {
	gid := goid.Get()
	threadIDs.Lock()
	defer threadIDs.Unlock()
	if id, ok := threadIDs.ids[gid]; ok {
		return id
	}
	threadIDs.next++
	id := format.ThreadID(threadIDs.next)
	threadIDs.ids[gid] = id
	return id
}

// threadData holds each thread's ThreadData, created lazily on first use.
var threadData sync.Map // goroutine id -> *ThreadData

// GetThreadData returns the calling thread's encoding state, creating it on
// first use.
func GetThreadData() *ThreadData {
	gid := goid.Get()
	if td, ok := threadData.Load(gid); ok {
		return td.(*ThreadData)
	}
	td := &ThreadData{threadID: currentThreadID()}
	td.encoder = NewParameterEncoder()
	actual, _ := threadData.LoadOrStore(gid, td)
	return actual.(*ThreadData)
}

// ReleaseThreadData drops the calling thread's encoding state. The thread's
// id remains reserved; a later call from the same thread re-creates the
// buffers with the same id.
func ReleaseThreadData() {
	threadData.Delete(goid.Get())
}

// resetThreadState clears the registry and all per-thread state. Tests only.
func resetThreadState() {
	threadIDs.Lock()
	threadIDs.next = 0
	threadIDs.ids = map[int64]format.ThreadID{}
	threadIDs.Unlock()
	threadData.Range(func(k, _ interface{}) bool {
		threadData.Delete(k)
		return true
	})
}
