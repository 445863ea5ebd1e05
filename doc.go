// Package untypedvec provides Vec, a growable array whose element type is
// fixed at runtime rather than in its Go type.
//
// One Vec type can hold elements of any type, so unrelated call sites can
// keep collections of many element types in one uniform container, for
// example component storage keyed by type. Each Vec still holds exactly
// one element type: the type is bound by New and checked on every typed
// operation.
//
// # Architecture Overview
//
//	untypedvec/     Vec: construction, push, indexed access, growth, teardown
//	├── layout/     Size/alignment arithmetic, pointer analysis, WIT layouts
//	├── memory/     Allocator backends: Go heap and wazero linear memory
//	├── errors/     Structured error types
//	└── cmd/vecdemo Command-line and interactive demo
//
// # Quick Start
//
//	v := untypedvec.New[int32]()
//	defer v.Close()
//
//	if err := untypedvec.Push(v, int32(42)); err != nil {
//	    log.Fatal(err)
//	}
//
//	n, err := untypedvec.Get[int32](v, 0) // 42
//
//	_, err = untypedvec.Get[float64](v, 0) // type mismatch
//	_, err = untypedvec.Get[int32](v, 5)   // out of bounds
//
// # Errors
//
// Push, Get and Ref report faults through *errors.Error:
//
//   - type_mismatch: the type argument differs from the bound type
//   - out_of_bounds: index outside [0, Len())
//   - allocation:    the allocator could not provide a larger buffer
//
// A failed call has no effect. In particular, when growth fails the vec
// keeps its old buffer, length and capacity.
//
// # Growth
//
// Capacity doubles when full, starting at 1. Elements move to the new
// buffer by flat copy, so element types must not hold addresses pointing
// into their own storage. Pointers returned by Ref are invalidated by
// growth. There is no removal or shrinking.
//
// # Teardown
//
// Close runs the element destructor once per stored element, then releases
// the buffer. The destructor is, in order of precedence, a DropFunc option,
// the element's Drop method (see Dropper), or nothing.
//
//	v := untypedvec.New[*os.File](untypedvec.DropFunc(func(f **os.File) {
//	    (*f).Close()
//	}))
//	defer v.Close()
//
// # Guest Memory
//
// With a memory.Linear allocator the buffer lives in WebAssembly linear
// memory and GuestList exposes it as a canonical ABI list:
//
//	lin, _ := memory.OpenLinear(ctx, 0)
//	v := untypedvec.New[point](untypedvec.WithAllocator(lin))
//	ptr, n, _ := v.GuestList()
//
// Only pointer-free element types can live in linear memory. Use
// layout.CheckWIT to confirm a Go type matches the WIT type a guest expects.
//
// # Thread Safety
//
// Vec is NOT thread-safe and should be used by a single goroutine.
package untypedvec
