package assertion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArrayEqual_EqualArrays(t *testing.T) {
	requirePass(t, func() { ArrayEqual(1, []byte{1, 2, 3}, []byte{1, 2, 3}) })
	requirePass(t, func() { ArrayEqual(1, []int16{-1, 0x7FFF}, []int16{-1, 0x7FFF}) })
	requirePass(t, func() { ArrayEqual(1, []int32{}, []int32{}) })
	requirePass(t, func() { ArrayEqual(1, []bool{true, false}, []bool{true, false}) })
	requirePass(t, func() { ArrayEqual[byte](1, nil, []byte{}) })
}

func TestArrayEqual_LengthMismatchReportsCallerLine(t *testing.T) {
	requireFailAt(t, 77, func() { ArrayEqual(77, []byte{1, 2}, []byte{1, 2, 3}) })
	requireFailAt(t, 78, func() { ArrayEqual(78, []int32{1}, nil) })
}

func TestArrayEqual_ElementMismatch(t *testing.T) {
	requireFailAt(t, 80, func() { ArrayEqual(80, []int16{1, 2, 3}, []int16{1, 9, 3}) })
}

type countingEqualer struct {
	value int
	calls *int
}

func (c countingEqualer) Equal(other any) bool {
	*c.calls++
	o, ok := other.(countingEqualer)
	return ok && o.value == c.value
}

func TestArrayEqualObjects_ShortCircuitsAtFirstMismatch(t *testing.T) {
	calls := 0
	mk := func(v int) any { return countingEqualer{value: v, calls: &calls} }

	expecteds := []any{mk(1), mk(2), mk(3), mk(4)}
	actuals := []any{mk(1), mk(9), mk(3), mk(4)}

	requireFailAt(t, 90, func() { ArrayEqualObjects(90, expecteds, actuals) })
	assert.Equal(t, 2, calls, "elements after the first mismatch must not be compared")
}

func TestArrayEqualObjects_Nils(t *testing.T) {
	requirePass(t, func() { ArrayEqualObjects(1, []any{nil, "a"}, []any{nil, "a"}) })
	requireFailAt(t, 91, func() { ArrayEqualObjects(91, []any{nil}, []any{"a"}) })
	requireFailAt(t, 92, func() { ArrayEqualObjects(92, []any{nil}, []any{}) })
}
