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

// Package assert provides a fluent assertion library for tests.
package assert

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"github.com/google/gfxtrace/core/log"
)

// Output matches the logging methods of the test host types.
// It is normally a *testing.T.
type Output interface {
	Fatal(...interface{})
	Error(...interface{})
	Log(...interface{})
}

// Manager wraps an assertion output target in something that can construct
// assertion objects.
type Manager struct {
	out Output
}

type ctxOutput struct{ ctx context.Context }
type stdOutput struct{}

func (o ctxOutput) Fatal(args ...interface{}) { log.F(o.ctx, true, "%v", fmt.Sprint(args...)) }
func (o ctxOutput) Error(args ...interface{}) { log.E(o.ctx, "%v", fmt.Sprint(args...)) }
func (o ctxOutput) Log(args ...interface{})   { log.I(o.ctx, "%v", fmt.Sprint(args...)) }

func (stdOutput) Fatal(args ...interface{}) {
	fmt.Fprintln(os.Stdout, args...)
	panic("Fatal error without test context")
}
func (stdOutput) Error(args ...interface{}) { fmt.Fprintln(os.Stdout, args...) }
func (stdOutput) Log(args ...interface{})   { fmt.Fprintln(os.Stdout, args...) }

// To creates an assertion manager using the target t for logging.
// t can be a context.Context, Output or nil to log to stdout.
func To(t interface{}) Manager {
	switch t := t.(type) {
	case nil:
		return Manager{stdOutput{}}
	case context.Context:
		return Manager{ctxOutput{t}}
	case Output:
		return Manager{t}
	default:
		panic(fmt.Errorf("Unsupported assertion target type %T", t))
	}
}

// For is shorthand for assert.To(t).For(msg, args...).
func For(t interface{}, msg string, args ...interface{}) *Assertion {
	return To(t).For(msg, args...)
}

// For starts a new assertion with the supplied title.
func (m Manager) For(msg string, args ...interface{}) *Assertion {
	return &Assertion{to: m.out, title: fmt.Sprintf(msg, args...)}
}

// Assertion is a pending assertion with a title.
type Assertion struct {
	to    Output
	title string
}

func (a *Assertion) test(ok bool, got, expect interface{}) bool {
	if !ok {
		a.to.Error(fmt.Sprintf("%s:\n\tGot       %v\n\tExpect    %v", a.title, got, expect))
	}
	return ok
}

// That starts an assertion on an arbitrary value.
func (a *Assertion) That(value interface{}) OnValue { return OnValue{a, value} }

// ThatInteger starts an assertion on an integer value.
func (a *Assertion) ThatInteger(value int) OnInteger { return OnInteger{a, value} }

// ThatBoolean starts an assertion on a boolean value.
func (a *Assertion) ThatBoolean(value bool) OnBoolean { return OnBoolean{a, value} }

// ThatSlice starts an assertion on a slice value.
func (a *Assertion) ThatSlice(value interface{}) OnSlice { return OnSlice{a, value} }

// ThatError starts an assertion on an error value.
func (a *Assertion) ThatError(err error) OnError { return OnError{a, err} }

// ThatString starts an assertion on a string value.
func (a *Assertion) ThatString(value string) OnString { return OnString{a, value} }

// OnValue is an assertion on an arbitrary value.
type OnValue struct {
	a     *Assertion
	value interface{}
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// IsNil asserts that the value is nil.
func (o OnValue) IsNil() bool { return o.a.test(isNil(o.value), o.value, nil) }

// IsNotNil asserts that the value is not nil.
func (o OnValue) IsNotNil() bool { return o.a.test(!isNil(o.value), o.value, "not nil") }

// Equals asserts that the value equals expect.
func (o OnValue) Equals(expect interface{}) bool {
	return o.a.test(o.value == expect, o.value, expect)
}

// NotEquals asserts that the value does not equal test.
func (o OnValue) NotEquals(test interface{}) bool {
	return o.a.test(o.value != test, o.value, fmt.Sprintf("not %v", test))
}

// DeepEquals asserts that the value deep-equals expect.
func (o OnValue) DeepEquals(expect interface{}) bool {
	return o.a.test(reflect.DeepEqual(o.value, expect), o.value, expect)
}

// OnInteger is an assertion on an integer value.
type OnInteger struct {
	a     *Assertion
	value int
}

// Equals asserts that the value equals expect.
func (o OnInteger) Equals(expect int) bool { return o.a.test(o.value == expect, o.value, expect) }

// IsAtLeast asserts that the value is at least min.
func (o OnInteger) IsAtLeast(min int) bool {
	return o.a.test(o.value >= min, o.value, fmt.Sprintf(">= %d", min))
}

// IsAtMost asserts that the value is at most max.
func (o OnInteger) IsAtMost(max int) bool {
	return o.a.test(o.value <= max, o.value, fmt.Sprintf("<= %d", max))
}

// OnBoolean is an assertion on a boolean value.
type OnBoolean struct {
	a     *Assertion
	value bool
}

// Equals asserts that the value equals expect.
func (o OnBoolean) Equals(expect bool) bool { return o.a.test(o.value == expect, o.value, expect) }

// IsTrue asserts that the value is true.
func (o OnBoolean) IsTrue() bool { return o.Equals(true) }

// IsFalse asserts that the value is false.
func (o OnBoolean) IsFalse() bool { return o.Equals(false) }

// OnSlice is an assertion on a slice value.
type OnSlice struct {
	a     *Assertion
	slice interface{}
}

// IsEmpty asserts that the slice is empty.
func (o OnSlice) IsEmpty() bool { return o.IsLength(0) }

// IsNotEmpty asserts that the slice has at least one element.
func (o OnSlice) IsNotEmpty() bool {
	v := reflect.ValueOf(o.slice)
	return o.a.test(v.Len() > 0, "empty", "not empty")
}

// IsLength asserts that the slice has exactly length elements.
func (o OnSlice) IsLength(length int) bool {
	v := reflect.ValueOf(o.slice)
	return o.a.test(v.Len() == length, fmt.Sprintf("length %d", v.Len()), fmt.Sprintf("length %d", length))
}

// DeepEquals asserts that the slice deep-equals expected.
func (o OnSlice) DeepEquals(expected interface{}) bool {
	return o.a.test(reflect.DeepEqual(o.slice, expected), o.slice, expected)
}

// OnError is an assertion on an error value.
type OnError struct {
	a   *Assertion
	err error
}

// Succeeded asserts that the error is nil.
func (o OnError) Succeeded() bool { return o.a.test(o.err == nil, o.err, nil) }

// Failed asserts that the error is not nil.
func (o OnError) Failed() bool { return o.a.test(o.err != nil, o.err, "an error") }

// OnString is an assertion on a string value.
type OnString struct {
	a     *Assertion
	value string
}

// Equals asserts that the string equals expect.
func (o OnString) Equals(expect string) bool {
	return o.a.test(o.value == expect, o.value, expect)
}

// Contains asserts that the string contains substr.
func (o OnString) Contains(substr string) bool {
	return o.a.test(stringContains(o.value, substr), o.value, fmt.Sprintf("contains %q", substr))
}

// HasPrefix asserts that the string starts with substr.
func (o OnString) HasPrefix(substr string) bool {
	return o.a.test(len(o.value) >= len(substr) && o.value[:len(substr)] == substr,
		o.value, fmt.Sprintf("has prefix %q", substr))
}

// HasSuffix asserts that the string ends with substr.
func (o OnString) HasSuffix(substr string) bool {
	return o.a.test(len(o.value) >= len(substr) && o.value[len(o.value)-len(substr):] == substr,
		o.value, fmt.Sprintf("has suffix %q", substr))
}

func stringContains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
