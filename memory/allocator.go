package memory

import (
	"reflect"
	"unsafe"
)

// Allocator acquires, relocates and releases element storage.
type Allocator interface {
	// Alloc returns a region with n slots for elements of type elem.
	Alloc(elem reflect.Type, n int) (Region, error)

	// Realloc returns a region with n slots whose first live slots hold the
	// elements of r. On error r is untouched; on success r must not be used again.
	Realloc(r Region, n, live int) (Region, error)

	// Free releases r without destructing the elements in it.
	Free(r Region)
}

// Region is a contiguous, aligned run of element slots.
type Region interface {
	// Pointer returns the address of slot 0. It may change after the owning
	// allocator grows its backing memory, so callers must not cache it.
	Pointer() unsafe.Pointer
	// Len returns the number of slots.
	Len() int
	// Elem returns the element type the region was allocated for.
	Elem() reflect.Type
}

// Exclusive is implemented by allocators whose backing memory moves when
// any region grows. Growth for one owner would then strand host pointers
// held by another, so each owner claims the allocator before its first
// allocation and releases it once its regions are freed.
type Exclusive interface {
	// Claim fails with an unsupported error while another owner holds the allocator.
	Claim() error
	Release()
}
