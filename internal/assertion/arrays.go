package assertion

import "github.com/roach88/cardcheck/internal/status"

// ArrayEqual asserts that two arrays of a primitive kind (bool, byte, int16,
// int32) are equal. Lengths are compared first; elements are then compared in
// ascending index order and the first mismatch fails. Both checks report the
// caller's line.
func ArrayEqual[T comparable](line status.Line, expecteds, actuals []T) {
	Equal(line, len(expecteds), len(actuals))
	for i := range expecteds {
		Equal(line, expecteds[i], actuals[i])
	}
}

// ArrayEqualObjects is ArrayEqual for object arrays, comparing elements with
// EqualObject.
func ArrayEqualObjects(line status.Line, expecteds, actuals []any) {
	Equal(line, len(expecteds), len(actuals))
	for i := range expecteds {
		EqualObject(line, expecteds[i], actuals[i])
	}
}
