// Package layout describes how element types occupy memory.
//
// A Layout is the (size, alignment) pair of a Go type. The untypedvec
// storage engine records one at construction and does all of its offset
// arithmetic through it, so it never needs the element type itself.
//
// # Array Layout
//
// Elements are laid out back to back at Stride() intervals:
//
//	l := layout.Of[point]()
//	bytes, ok := l.Array(n) // false if n*stride overflows
//
// Go already rounds a type's size up to its alignment, so Stride equals
// Size for every Go type; the padding helpers exist for layouts that come
// from elsewhere (WIT types, hand-built records).
//
// # Pointer Analysis
//
// HasPointers reports whether values of a type contain anything the Go
// garbage collector must trace. Pointer-free types may live in memory the
// collector cannot see, such as WebAssembly linear memory.
//
// # WIT Layouts
//
// Calculator computes Canonical ABI layouts for WIT types, and CheckWIT
// verifies that a Go type can be read in place by a guest expecting a WIT
// type:
//
//	err := layout.CheckWIT(reflect.TypeFor[point](), pointTypeDef)
package layout
