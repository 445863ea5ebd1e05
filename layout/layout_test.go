package layout

import (
	"math"
	"reflect"
	"testing"
)

type pair struct {
	A uint8
	B uint64
}

type empty struct{}

func TestOf(t *testing.T) {
	tests := []struct {
		name  string
		got   Layout
		size  uintptr
		align uintptr
	}{
		{"int8", Of[int8](), 1, 1},
		{"int32", Of[int32](), 4, 4},
		{"float64", Of[float64](), 8, 8},
		{"pair", Of[pair](), 16, 8},
		{"empty", Of[empty](), 0, 1},
		{"array3", Of[[3]uint16](), 6, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got.Size != tc.size {
				t.Errorf("size: got %d, want %d", tc.got.Size, tc.size)
			}
			if tc.got.Align != tc.align {
				t.Errorf("align: got %d, want %d", tc.got.Align, tc.align)
			}
			if !tc.got.Valid() {
				t.Errorf("%v should be valid", tc.got)
			}
		})
	}
}

func TestForTypeMatchesOf(t *testing.T) {
	if got, want := ForType(reflect.TypeFor[pair]()), Of[pair](); got != want {
		t.Errorf("ForType = %v, Of = %v", got, want)
	}
}

func TestAlignTo(t *testing.T) {
	tests := []struct {
		offset, align, want uintptr
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 8, 8},
		{9, 1, 9},
		{7, 0, 7},
	}
	for _, tc := range tests {
		if got := AlignTo(tc.offset, tc.align); got != tc.want {
			t.Errorf("AlignTo(%d, %d) = %d, want %d", tc.offset, tc.align, got, tc.want)
		}
	}
}

func TestPaddingAndStride(t *testing.T) {
	l := Layout{Size: 5, Align: 4}
	if p := PaddingFor(l, 4); p != 3 {
		t.Errorf("PaddingFor = %d, want 3", p)
	}
	if s := l.Stride(); s != 8 {
		t.Errorf("Stride = %d, want 8", s)
	}
	if off := l.Offset(3); off != 24 {
		t.Errorf("Offset(3) = %d, want 24", off)
	}

	// Go sizes are already multiples of their alignment.
	if s := Of[pair]().Stride(); s != 16 {
		t.Errorf("pair stride = %d, want 16", s)
	}
}

func TestArray(t *testing.T) {
	l := Of[uint32]()

	size, ok := l.Array(10)
	if !ok || size != 40 {
		t.Errorf("Array(10) = %d, %v; want 40, true", size, ok)
	}

	if _, ok := l.Array(-1); ok {
		t.Error("Array(-1) should fail")
	}

	if _, ok := l.Array(math.MaxInt); ok {
		t.Error("Array(MaxInt) should overflow")
	}

	size, ok = Of[empty]().Array(math.MaxInt)
	if !ok || size != 0 {
		t.Errorf("zero-sized Array = %d, %v; want 0, true", size, ok)
	}
}

func TestValid(t *testing.T) {
	if (Layout{Size: 4, Align: 3}).Valid() {
		t.Error("align 3 should be invalid")
	}
	if (Layout{Size: 4, Align: 0}).Valid() {
		t.Error("align 0 should be invalid")
	}
}

func TestSafeArithmetic(t *testing.T) {
	top := ^uintptr(0)
	if _, ok := SafeMul(top, 2); ok {
		t.Error("SafeMul should overflow")
	}
	if v, ok := SafeMul(6, 7); !ok || v != 42 {
		t.Errorf("SafeMul(6, 7) = %d, %v", v, ok)
	}
	if _, ok := SafeAdd(top, 1); ok {
		t.Error("SafeAdd should overflow")
	}
	if v, ok := SafeAdd(40, 2); !ok || v != 42 {
		t.Errorf("SafeAdd(40, 2) = %d, %v", v, ok)
	}
}

func TestHasPointers(t *testing.T) {
	type flat struct {
		X, Y float32
		Tag  [4]byte
	}
	type withString struct {
		ID   int
		Name string
	}
	type nested struct {
		Inner [2]withString
	}

	tests := []struct {
		typ  reflect.Type
		want bool
	}{
		{reflect.TypeFor[int](), false},
		{reflect.TypeFor[complex128](), false},
		{reflect.TypeFor[flat](), false},
		{reflect.TypeFor[[0]*int](), false},
		{reflect.TypeFor[empty](), false},
		{reflect.TypeFor[string](), true},
		{reflect.TypeFor[[]byte](), true},
		{reflect.TypeFor[*int](), true},
		{reflect.TypeFor[map[int]int](), true},
		{reflect.TypeFor[any](), true},
		{reflect.TypeFor[func()](), true},
		{reflect.TypeFor[withString](), true},
		{reflect.TypeFor[nested](), true},
	}

	for _, tc := range tests {
		t.Run(tc.typ.String(), func(t *testing.T) {
			if got := HasPointers(tc.typ); got != tc.want {
				t.Errorf("HasPointers(%v) = %v, want %v", tc.typ, got, tc.want)
			}
		})
	}
}
