package card

import (
	"fmt"
)

// Kind is an array element kind, numbered as on the card platform.
type Kind byte

// Element kinds.
const (
	KindBoolean Kind = 1
	KindByte    Kind = 2
	KindShort   Kind = 3
	KindInt     Kind = 4
	KindObject  Kind = 5
)

// Valid reports whether k is a known element kind.
func (k Kind) Valid() bool {
	return k >= KindBoolean && k <= KindObject
}

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindByte:
		return "byte"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// MemoryClass says where an array lives and when it is cleared.
type MemoryClass byte

// Memory classes. The first three match the platform's memory type selectors;
// MemoryGlobal has no selector and is only reachable through MakeGlobalArray.
const (
	MemoryPersistent        MemoryClass = 0
	MemoryTransientReset    MemoryClass = 1
	MemoryTransientDeselect MemoryClass = 2
	MemoryGlobal            MemoryClass = 3
)

func (m MemoryClass) String() string {
	switch m {
	case MemoryPersistent:
		return "persistent"
	case MemoryTransientReset:
		return "transient-clear-on-reset"
	case MemoryTransientDeselect:
		return "transient-clear-on-deselect"
	case MemoryGlobal:
		return "global"
	}
	return fmt.Sprintf("memory(%d)", byte(m))
}

// Transient reports whether arrays of class m lose their contents on a
// platform event.
func (m MemoryClass) Transient() bool {
	return m == MemoryTransientReset || m == MemoryTransientDeselect || m == MemoryGlobal
}

// Descriptor describes an allocated array.
type Descriptor struct {
	Kind   Kind        `json:"kind"`
	Length int         `json:"length"`
	Class  MemoryClass `json:"class"`
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s[%d] %s", d.Kind, d.Length, d.Class)
}

// Array is an array allocated by the platform on behalf of a component.
// Every accessor takes the caller's Context so the firewall can check it:
// only the owning context, or any context for global arrays, gets through.
//
// The slices returned by the accessors alias the array. Readers reaching an
// array through another component's capability must not write to them.
type Array struct {
	desc  Descriptor
	owner AID
	data  any
}

func newArray(owner AID, kind Kind, length int, class MemoryClass) *Array {
	a := &Array{
		desc:  Descriptor{Kind: kind, Length: length, Class: class},
		owner: owner,
	}
	switch kind {
	case KindBoolean:
		a.data = make([]bool, length)
	case KindByte:
		a.data = make([]byte, length)
	case KindShort:
		a.data = make([]int16, length)
	case KindInt:
		a.data = make([]int32, length)
	case KindObject:
		a.data = make([]any, length)
	}
	return a
}

// Descriptor returns the array's kind, length and memory class.
func (a *Array) Descriptor(ctx *Context) Descriptor {
	ctx.checkAccess(a)
	return a.desc
}

// Len returns the number of elements.
func (a *Array) Len(ctx *Context) int {
	ctx.checkAccess(a)
	return a.desc.Length
}

// Owner returns the context that allocated the array. Reading the owner is
// not firewalled.
func (a *Array) Owner() AID {
	return a.owner
}

// Bools returns the elements of a boolean array.
func (a *Array) Bools(ctx *Context) []bool {
	return elements[bool](ctx, a, KindBoolean)
}

// Bytes returns the elements of a byte array.
func (a *Array) Bytes(ctx *Context) []byte {
	return elements[byte](ctx, a, KindByte)
}

// Shorts returns the elements of a short array.
func (a *Array) Shorts(ctx *Context) []int16 {
	return elements[int16](ctx, a, KindShort)
}

// Ints returns the elements of an int array.
func (a *Array) Ints(ctx *Context) []int32 {
	return elements[int32](ctx, a, KindInt)
}

// Objects returns the elements of an object array.
func (a *Array) Objects(ctx *Context) []any {
	return elements[any](ctx, a, KindObject)
}

func elements[T any](ctx *Context, a *Array, kind Kind) []T {
	ctx.checkAccess(a)
	if a.desc.Kind != kind {
		ThrowSystem(ReasonIllegalUse, fmt.Sprintf("%s array read as %s", a.desc.Kind, kind))
	}
	return a.data.([]T)
}

// wipe zeroes the contents.
func (a *Array) wipe() {
	switch d := a.data.(type) {
	case []bool:
		clear(d)
	case []byte:
		clear(d)
	case []int16:
		clear(d)
	case []int32:
		clear(d)
	case []any:
		clear(d)
	}
}
