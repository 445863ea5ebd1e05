package memory

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/wippyai/untypedvec/errors"
	"github.com/wippyai/untypedvec/layout"
)

// DefaultMaxBytes caps a single heap region at 1 GiB.
const DefaultMaxBytes = 1 << 30

// Heap allocates regions as typed Go slices.
type Heap struct {
	// MaxBytes is the largest region Alloc will create; 0 means no limit.
	// Go treats running out of memory as fatal, so this is the only way
	// growth on the heap reports an allocation fault.
	MaxBytes uintptr
}

func NewHeap() *Heap {
	return &Heap{MaxBytes: DefaultMaxBytes}
}

type heapRegion struct {
	elem  reflect.Type
	slice reflect.Value
	n     int
}

func (r *heapRegion) Pointer() unsafe.Pointer { return r.slice.UnsafePointer() }
func (r *heapRegion) Len() int                { return r.n }
func (r *heapRegion) Elem() reflect.Type      { return r.elem }

func (h *Heap) Alloc(elem reflect.Type, n int) (Region, error) {
	if n <= 0 {
		return nil, errors.InvalidInput(errors.PhaseAlloc, fmt.Sprintf("region of %d slots", n))
	}

	l := layout.ForType(elem)
	size, ok := l.Array(n)
	if !ok {
		return nil, errors.Overflow(errors.PhaseAlloc,
			fmt.Sprintf("%d elements of %s overflow the address space", n, elem), n)
	}
	if h.MaxBytes != 0 && size > h.MaxBytes {
		return nil, errors.AllocationFailed(errors.PhaseAlloc, size, l.Align,
			fmt.Errorf("heap limit is %d bytes", h.MaxBytes))
	}

	return &heapRegion{
		elem:  elem,
		slice: reflect.MakeSlice(reflect.SliceOf(elem), n, n),
		n:     n,
	}, nil
}

// Realloc copies with reflect.Copy so pointer writes go through the
// collector's write barriers.
func (h *Heap) Realloc(r Region, n, live int) (Region, error) {
	old, ok := r.(*heapRegion)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseAlloc, fmt.Sprintf("region %T not allocated by heap", r))
	}
	if live < 0 || live > old.n || live > n {
		return nil, errors.InvalidInput(errors.PhaseAlloc,
			fmt.Sprintf("relocate %d of %d slots into %d", live, old.n, n))
	}

	next, err := h.Alloc(old.elem, n)
	if err != nil {
		return nil, err
	}
	if live > 0 {
		reflect.Copy(next.(*heapRegion).slice, old.slice.Slice(0, live))
	}
	h.Free(old)
	return next, nil
}

// Free drops the region's reference to its backing array.
func (h *Heap) Free(r Region) {
	if hr, ok := r.(*heapRegion); ok {
		hr.slice = reflect.Value{}
		hr.n = 0
	}
}
