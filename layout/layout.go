package layout

import (
	"fmt"
	"math"
	"reflect"
	"unsafe"
)

// Layout is the size and alignment of an element type.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// Of returns the layout of T.
func Of[T any]() Layout {
	var zero T
	return Layout{Size: unsafe.Sizeof(zero), Align: unsafe.Alignof(zero)}
}

// ForType returns the layout of t.
func ForType(t reflect.Type) Layout {
	return Layout{Size: t.Size(), Align: uintptr(t.Align())}
}

// Valid reports whether Align is a non-zero power of two.
func (l Layout) Valid() bool {
	return l.Align != 0 && l.Align&(l.Align-1) == 0
}

// ZeroSized reports whether elements occupy no memory.
func (l Layout) ZeroSized() bool {
	return l.Size == 0
}

// Stride is the distance in bytes between consecutive array elements.
func (l Layout) Stride() uintptr {
	return l.Size + PaddingFor(l, l.Align)
}

// Array returns the byte size of n consecutive elements.
// ok is false when n is negative or the size overflows.
func (l Layout) Array(n int) (size uintptr, ok bool) {
	if n < 0 {
		return 0, false
	}
	size, ok = SafeMul(l.Stride(), uintptr(n))
	if !ok || size > math.MaxInt {
		return 0, false
	}
	return size, true
}

// Offset returns the byte offset of element i.
func (l Layout) Offset(i int) uintptr {
	return uintptr(i) * l.Stride()
}

func (l Layout) String() string {
	return fmt.Sprintf("size=%d align=%d", l.Size, l.Align)
}

// AlignTo rounds offset up to a multiple of align. align must be a power of two.
func AlignTo(offset, align uintptr) uintptr {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// PaddingFor returns the bytes needed after l.Size to reach a multiple of align.
func PaddingFor(l Layout, align uintptr) uintptr {
	return AlignTo(l.Size, align) - l.Size
}

func SafeMul(a, b uintptr) (uintptr, bool) {
	if b != 0 && a > ^uintptr(0)/b {
		return 0, false
	}
	return a * b, true
}

func SafeAdd(a, b uintptr) (uintptr, bool) {
	if a > ^uintptr(0)-b {
		return 0, false
	}
	return a + b, true
}
