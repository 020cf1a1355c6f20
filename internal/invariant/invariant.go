// Package invariant provides lightweight pre/postcondition assertions.
//
// The executor package in the teacher repo (runtime/executor) calls into
// "github.com/aledsdavies/opal/core/invariant" for NotNil/Precondition/
// Postcondition/Invariant checks, but that package's source was not present
// in the retrieved snapshot. This reconstructs the minimal surface the call
// sites need, in the same style: a panic-on-violation assertion used to
// document contracts at function boundaries, not a general validation
// library for user input.
package invariant

import (
	"fmt"
	"reflect"
)

// NotNil panics if v is nil. Used to document that a parameter must never
// be nil at this call site (a bug, not a runtime condition to recover from).
func NotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("invariant: %s must not be nil", name))
	}
	// A typed nil (e.g. a nil *T stored in v) is not == nil; check it too.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			panic(fmt.Sprintf("invariant: %s must not be nil", name))
		}
	}
}

// Precondition panics with a formatted message if cond is false.
func Precondition(cond bool, format string, args ...any) {
	if !cond {
		panic("precondition violated: " + fmt.Sprintf(format, args...))
	}
}

// Postcondition panics with a formatted message if cond is false.
func Postcondition(cond bool, format string, args ...any) {
	if !cond {
		panic("postcondition violated: " + fmt.Sprintf(format, args...))
	}
}

// Invariant panics with a formatted message if cond is false.
func Invariant(cond bool, format string, args ...any) {
	if !cond {
		panic("invariant violated: " + fmt.Sprintf(format, args...))
	}
}
