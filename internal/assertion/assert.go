package assertion

import (
	"reflect"

	"github.com/roach88/cardcheck/internal/status"
)

// Equaler is implemented by values with their own notion of equality.
// EqualObject prefers it over the built-in comparison.
type Equaler interface {
	Equal(other any) bool
}

// Fail ends the current command with the assertion status for line.
func Fail(line status.Line) {
	status.Throw(status.Assertion(line))
}

// True asserts that condition holds.
func True(line status.Line, condition bool) {
	if !condition {
		Fail(line)
	}
}

// False asserts that condition does not hold.
func False(line status.Line, condition bool) {
	if condition {
		Fail(line)
	}
}

// Equal asserts that two primitive values are equal.
func Equal[T comparable](line status.Line, expected, actual T) {
	True(line, expected == actual)
}

// EqualObject asserts that two objects are equal. Two nils are equal; a nil
// and a non-nil never are.
func EqualObject(line status.Line, expected, actual any) {
	True(line, objectsEqual(expected, actual))
}

// Same asserts that expected and actual are the same object.
func Same(line status.Line, expected, actual any) {
	True(line, identical(expected, actual))
}

// NotSame asserts that unexpected and actual are different objects.
func NotSame(line status.Line, unexpected, actual any) {
	False(line, identical(unexpected, actual))
}

// Nil asserts that object is nil.
func Nil(line status.Line, object any) {
	True(line, isNil(object))
}

// NotNil asserts that object is not nil.
func NotNil(line status.Line, object any) {
	True(line, !isNil(object))
}

func objectsEqual(expected, actual any) bool {
	if isNil(expected) {
		return isNil(actual)
	}
	if isNil(actual) {
		return false
	}
	if eq, ok := expected.(Equaler); ok {
		return eq.Equal(actual)
	}
	// Value.Comparable looks inside interface fields; a comparable type can
	// still hold a slice.
	if reflect.ValueOf(expected).Comparable() && reflect.ValueOf(actual).Comparable() {
		return expected == actual
	}
	return reflect.DeepEqual(expected, actual)
}

// identical compares references, not contents. Values without reference
// semantics are identical when they are == equal.
func identical(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
