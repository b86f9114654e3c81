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

package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Handler is the interface implemented by types that consume log messages.
type Handler interface {
	Handle(*Message)
	Close()
}

type handler struct {
	handle func(*Message)
	close  func()
}

func (h *handler) Handle(m *Message) { h.handle(m) }
func (h *handler) Close() {
	if h.close != nil {
		h.close()
	}
}

// NewHandler returns a Handler that invokes handle for each message and close
// when the handler is closed.
func NewHandler(handle func(*Message), close func()) Handler {
	return &handler{handle, close}
}

// Writer returns a Handler that writes each message as a single line to out.
func Writer(out io.Writer) Handler {
	mutex := &sync.Mutex{}
	return NewHandler(func(m *Message) {
		mutex.Lock()
		defer mutex.Unlock()
		if m.Tag != "" {
			fmt.Fprintf(out, "%s: [%s] %s\n", m.Severity.Short(), m.Tag, m.Text)
		} else {
			fmt.Fprintf(out, "%s: %s\n", m.Severity.Short(), m.Text)
		}
	}, nil)
}

// Std returns a Handler that writes to stderr.
func Std() Handler { return Writer(os.Stderr) }
