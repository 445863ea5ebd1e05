package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"unsafe"

	vecerrors "github.com/wippyai/untypedvec/errors"
)

func openLinear(t *testing.T, maxPages uint32) *Linear {
	t.Helper()
	ctx := context.Background()
	lin, err := OpenLinear(ctx, maxPages)
	if err != nil {
		t.Fatalf("OpenLinear: %v", err)
	}
	t.Cleanup(func() { _ = lin.Close(ctx) })
	return lin
}

func TestLinear_AllocVisibleToGuest(t *testing.T) {
	lin := openLinear(t, 0)

	r, err := lin.Alloc(reflect.TypeFor[uint32](), 4)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	lr := r.(*LinearRegion)
	if lr.Offset() == 0 {
		t.Error("region at offset 0")
	}
	if lr.Offset()%4 != 0 {
		t.Errorf("offset %d misaligned", lr.Offset())
	}
	if lr.Size() != 16 {
		t.Errorf("Size = %d, want 16", lr.Size())
	}

	s := unsafe.Slice((*uint32)(r.Pointer()), 4)
	for i := range s {
		s[i] = uint32(i*10 + 1)
	}

	for i := uint32(0); i < 4; i++ {
		v, ok := lin.Memory().ReadUint32Le(lr.Offset() + i*4)
		if !ok || v != i*10+1 {
			t.Errorf("guest read slot %d = %d, %v; want %d", i, v, ok, i*10+1)
		}
	}
}

func TestLinear_RejectsPointerfulTypes(t *testing.T) {
	lin := openLinear(t, 0)

	for _, typ := range []reflect.Type{
		reflect.TypeFor[string](),
		reflect.TypeFor[*int](),
		reflect.TypeFor[struct{ B []byte }](),
	} {
		_, err := lin.Alloc(typ, 1)
		if !errors.Is(err, vecerrors.ErrUnsupported) {
			t.Errorf("Alloc(%v): got %v, want unsupported", typ, err)
		}
	}
}

func TestLinear_GrowsPages(t *testing.T) {
	lin := openLinear(t, 0)
	before := lin.Memory().Size()

	r, err := lin.Alloc(reflect.TypeFor[uint64](), PageSize/8*2)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	after := lin.Memory().Size()
	if after <= before {
		t.Errorf("memory size %d did not grow from %d", after, before)
	}
	lr := r.(*LinearRegion)
	if uint64(lr.Offset())+uint64(lr.Size()) > uint64(after) {
		t.Errorf("region [%d, +%d) beyond memory size %d", lr.Offset(), lr.Size(), after)
	}
}

func TestLinear_PageLimit(t *testing.T) {
	lin := openLinear(t, 2)

	_, err := lin.Alloc(reflect.TypeFor[byte](), 3*PageSize)
	if !errors.Is(err, vecerrors.ErrAllocation) {
		t.Fatalf("got %v, want allocation error", err)
	}
	if lin.InUse() != 0 {
		t.Errorf("failed allocation left %d bytes in use", lin.InUse())
	}
}

func TestLinear_FreeListReuse(t *testing.T) {
	lin := openLinear(t, 0)
	elem := reflect.TypeFor[uint32]()

	a, _ := lin.Alloc(elem, 8)
	b, _ := lin.Alloc(elem, 8)
	aOff := a.(*LinearRegion).Offset()

	lin.Free(a)
	c, err := lin.Alloc(elem, 4)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if got := c.(*LinearRegion).Offset(); got != aOff {
		t.Errorf("reused offset %d, want %d", got, aOff)
	}

	lin.Free(b)
	lin.Free(c)
	if lin.InUse() != 0 {
		t.Errorf("InUse = %d after freeing everything, want 0", lin.InUse())
	}
}

func TestLinear_ReallocInPlace(t *testing.T) {
	lin := openLinear(t, 0)

	r, _ := lin.Alloc(reflect.TypeFor[uint16](), 2)
	unsafe.Slice((*uint16)(r.Pointer()), 2)[1] = 7
	off := r.(*LinearRegion).Offset()

	next, err := lin.Realloc(r, 8, 2)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if got := next.(*LinearRegion).Offset(); got != off {
		t.Errorf("top region moved from %d to %d", off, got)
	}
	if v := unsafe.Slice((*uint16)(next.Pointer()), 8)[1]; v != 7 {
		t.Errorf("slot 1 = %d, want 7", v)
	}
}

func TestLinear_ReallocCopies(t *testing.T) {
	lin := openLinear(t, 0)
	elem := reflect.TypeFor[int32]()

	r, _ := lin.Alloc(elem, 2)
	s := unsafe.Slice((*int32)(r.Pointer()), 2)
	s[0], s[1] = -1, 42
	off := r.(*LinearRegion).Offset()

	// Pin the top so r cannot extend in place.
	pin, _ := lin.Alloc(elem, 1)

	next, err := lin.Realloc(r, 4, 2)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if next.(*LinearRegion).Offset() == off {
		t.Fatal("expected a new region")
	}
	got := unsafe.Slice((*int32)(next.Pointer()), 4)
	if got[0] != -1 || got[1] != 42 {
		t.Errorf("relocated = %v", got[:2])
	}

	lin.Free(pin)
	lin.Free(next)
	if lin.InUse() != 0 {
		t.Errorf("InUse = %d, want 0", lin.InUse())
	}
}

func TestNewLinear_StartsAboveGuestData(t *testing.T) {
	base := openLinear(t, 0)
	size := base.Memory().Size()

	shared := NewLinear(base.Memory())
	r, err := shared.Alloc(reflect.TypeFor[uint8](), 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if off := r.(*LinearRegion).Offset(); off < size {
		t.Errorf("offset %d overlaps existing %d bytes", off, size)
	}
	if err := shared.Close(context.Background()); err != nil {
		t.Errorf("Close on shared allocator: %v", err)
	}
}

func TestLinear_ClaimIsExclusive(t *testing.T) {
	lin := openLinear(t, 0)

	var _ Exclusive = lin
	if err := lin.Claim(); err != nil {
		t.Fatalf("first Claim: %v", err)
	}
	if err := lin.Claim(); !errors.Is(err, vecerrors.ErrUnsupported) {
		t.Fatalf("second Claim: got %v, want unsupported", err)
	}
	lin.Release()
	if err := lin.Claim(); err != nil {
		t.Fatalf("Claim after Release: %v", err)
	}
}
