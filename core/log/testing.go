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
	"context"
	"testing"
)

// TestHandler is a Handler that logs messages to a testing.T, failing the
// test on Fatal messages.
type TestHandler struct {
	T *testing.T
}

// Handle writes the message to the test log.
func (h TestHandler) Handle(m *Message) {
	if m.Severity >= Fatal {
		h.T.Fatalf("%s: %s", m.Severity.Short(), m.Text)
	} else {
		h.T.Logf("%s: %s", m.Severity.Short(), m.Text)
	}
}

// Close is a no-op.
func (h TestHandler) Close() {}

// Testing returns a context with the logger writing to t.
func Testing(t *testing.T) context.Context {
	ctx := PutHandler(context.Background(), TestHandler{t})
	return PutSeverity(ctx, Debug)
}
