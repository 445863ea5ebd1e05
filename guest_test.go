package untypedvec

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.bytecodealliance.org/wit"

	vecerrors "github.com/wippyai/untypedvec/errors"
	"github.com/wippyai/untypedvec/layout"
	"github.com/wippyai/untypedvec/memory"
)

func openLinear(t *testing.T, maxPages uint32) *memory.Linear {
	t.Helper()
	ctx := context.Background()
	lin, err := memory.OpenLinear(ctx, maxPages)
	if err != nil {
		t.Fatalf("OpenLinear: %v", err)
	}
	t.Cleanup(func() { _ = lin.Close(ctx) })
	return lin
}

func TestLinearVec_GuestReadsElements(t *testing.T) {
	lin := openLinear(t, 0)

	pointDef := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "x", Type: wit.S32{}},
		{Name: "y", Type: wit.S32{}},
	}}}
	if err := layout.CheckWIT(reflect.TypeFor[point](), pointDef); err != nil {
		t.Fatalf("CheckWIT: %v", err)
	}

	v := New[point](WithAllocator(lin))
	defer v.Close()

	if ptr, n, err := v.GuestList(); err != nil || ptr != 0 || n != 0 {
		t.Errorf("empty GuestList = %d, %d, %v", ptr, n, err)
	}

	for i := int32(0); i < 10; i++ {
		if err := Push(v, point{X: i, Y: i * 100}); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}

	ptr, n, err := v.GuestList()
	if err != nil {
		t.Fatalf("GuestList: %v", err)
	}
	if n != 10 {
		t.Errorf("length = %d, want 10", n)
	}

	mem := lin.Memory()
	for i := uint32(0); i < n; i++ {
		x, _ := mem.ReadUint32Le(ptr + i*8)
		y, _ := mem.ReadUint32Le(ptr + i*8 + 4)
		if int32(x) != int32(i) || int32(y) != int32(i)*100 {
			t.Errorf("guest element %d = (%d, %d)", i, int32(x), int32(y))
		}
	}

	// Host sees guest writes.
	mem.WriteUint32Le(ptr+4, 12345)
	if got, _ := Get[point](v, 0); got.Y != 12345 {
		t.Errorf("Get(0).Y = %d after guest write, want 12345", got.Y)
	}
}

func TestLinearVec_RejectsPointerfulElements(t *testing.T) {
	lin := openLinear(t, 0)

	v := New[string](WithAllocator(lin))
	defer v.Close()

	err := Push(v, "nope")
	if !errors.Is(err, vecerrors.ErrUnsupported) {
		t.Fatalf("Push: got %v, want unsupported", err)
	}
	if v.Len() != 0 || v.Cap() != 0 {
		t.Errorf("len=%d cap=%d after rejected push", v.Len(), v.Cap())
	}
}

func TestLinearVec_PageLimit(t *testing.T) {
	lin := openLinear(t, 1)

	v := New[uint64](WithAllocator(lin))
	defer v.Close()

	var pushed int
	var err error
	for ; pushed < memory.PageSize; pushed++ {
		if err = Push(v, uint64(pushed)); err != nil {
			break
		}
	}
	if !errors.Is(err, vecerrors.ErrAllocation) {
		t.Fatalf("expected allocation error, got %v after %d pushes", err, pushed)
	}
	if v.Len() != pushed {
		t.Errorf("Len = %d, want %d", v.Len(), pushed)
	}
	for i := 0; i < pushed; i++ {
		if got, _ := Get[uint64](v, i); got != uint64(i) {
			t.Fatalf("Get(%d) = %d after failed growth", i, got)
		}
	}
}

func TestLinearVec_CloseReleasesMemory(t *testing.T) {
	lin := openLinear(t, 0)

	v := New[int16](WithAllocator(lin))
	for i := 0; i < 100; i++ {
		_ = Push(v, int16(i))
	}
	if lin.InUse() == 0 {
		t.Fatal("no memory in use after pushes")
	}
	_ = v.Close()
	if lin.InUse() != 0 {
		t.Errorf("InUse = %d after Close, want 0", lin.InUse())
	}
}

func TestGuestList_HeapVecUnsupported(t *testing.T) {
	v := New[int32]()
	defer v.Close()
	_ = Push(v, int32(1))

	if _, _, err := v.GuestList(); !errors.Is(err, vecerrors.ErrUnsupported) {
		t.Errorf("got %v, want unsupported", err)
	}
}

func TestLinearVec_OneOwnerPerMemory(t *testing.T) {
	lin := openLinear(t, 0)

	a := New[int32](WithAllocator(lin))
	if err := Push(a, int32(1)); err != nil {
		t.Fatalf("Push(a): %v", err)
	}
	p, err := Ref[int32](a, 0)
	if err != nil {
		t.Fatalf("Ref(a, 0): %v", err)
	}

	b := New[int32](WithAllocator(lin))
	defer b.Close()
	for i := 0; i < 20000; i++ {
		if err = Push(b, int32(i)); err != nil {
			break
		}
	}
	if !errors.Is(err, vecerrors.ErrUnsupported) {
		t.Fatalf("Push(b) on claimed memory: got %v, want unsupported", err)
	}
	if b.Len() != 0 || b.Cap() != 0 {
		t.Errorf("b len=%d cap=%d after rejected push", b.Len(), b.Cap())
	}
	if err := b.Reserve(4); !errors.Is(err, vecerrors.ErrUnsupported) {
		t.Errorf("Reserve(b): got %v, want unsupported", err)
	}

	*p = 99
	if got, _ := Get[int32](a, 0); got != 99 {
		t.Errorf("Get(a, 0) = %d after write through Ref, want 99", got)
	}

	// Close hands the memory to the next vec.
	if err := a.Close(); err != nil {
		t.Fatalf("Close(a): %v", err)
	}
	if err := Push(b, int32(7)); err != nil {
		t.Fatalf("Push(b) after Close(a): %v", err)
	}
	if got, _ := Get[int32](b, 0); got != 7 {
		t.Errorf("Get(b, 0) = %d, want 7", got)
	}
}

func TestLinearVec_RejectedTypeKeepsMemoryFree(t *testing.T) {
	lin := openLinear(t, 0)

	s := New[string](WithAllocator(lin))
	defer s.Close()
	if err := Push(s, "x"); !errors.Is(err, vecerrors.ErrUnsupported) {
		t.Fatalf("Push(string): got %v, want unsupported", err)
	}

	v := New[uint8](WithAllocator(lin))
	defer v.Close()
	if err := Push(v, uint8(1)); err != nil {
		t.Fatalf("Push after failed claim holder: %v", err)
	}
}

func TestGuestListOf(t *testing.T) {
	lin := openLinear(t, 0)

	v := New[point](WithAllocator(lin))
	defer v.Close()
	for i := int32(0); i < 3; i++ {
		_ = Push(v, point{X: i, Y: -i})
	}

	tests := []struct {
		name string
		elem wit.Type
		kind vecerrors.Kind
	}{
		{"matching record", &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
			{Name: "x", Type: wit.S32{}},
			{Name: "y", Type: wit.S32{}},
		}}}, ""},
		{"matching tuple", &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.S32{}, wit.S32{}}}}, ""},
		{"narrow field", &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
			{Name: "x", Type: wit.U8{}},
			{Name: "y", Type: wit.S32{}},
		}}}, vecerrors.KindLayoutMismatch},
		{"wrong size", wit.S64{}, vecerrors.KindLayoutMismatch},
		{"no guest type", nil, vecerrors.KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ptr, n, err := v.GuestListOf(tt.elem)
			if tt.kind == "" {
				if err != nil {
					t.Fatalf("GuestListOf: %v", err)
				}
				if ptr == 0 || n != 3 {
					t.Errorf("got ptr=%d len=%d, want nonzero ptr and len 3", ptr, n)
				}
				return
			}
			var ve *vecerrors.Error
			if !errors.As(err, &ve) || ve.Kind != tt.kind {
				t.Errorf("got %v, want kind %s", err, tt.kind)
			}
		})
	}
}
