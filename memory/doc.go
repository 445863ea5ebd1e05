// Package memory provides the raw storage a vec keeps its elements in.
//
// An Allocator hands out Regions: contiguous, aligned runs of element
// slots. The vec does all element placement itself; the allocator only
// acquires, relocates and releases memory.
//
// # Backends
//
// Heap allocates typed Go memory. The garbage collector sees the element
// type, so elements may hold strings, slices and pointers:
//
//	alloc := memory.NewHeap()
//	alloc.MaxBytes = 64 << 20 // fail growth beyond 64 MiB
//
// Linear carves regions out of WebAssembly linear memory via wazero. Only
// pointer-free element types are accepted, since the collector cannot see
// into linear memory. A region's offset can be handed to a guest as the
// pointer half of a canonical ABI list:
//
//	lin, err := memory.OpenLinear(ctx, 256) // private memory, max 16 MiB
//	if err != nil {
//	    return err
//	}
//	defer lin.Close(ctx)
//
// Or share a guest's memory directly:
//
//	lin := memory.NewLinear(mod.Memory())
//
// # Relocation
//
// Realloc moves live elements by flat copy. Element types must not hold
// addresses that point into their own storage.
//
// # Thread Safety
//
// Heap is stateless apart from its limit and may be shared. Linear is NOT
// thread-safe and belongs to a single owner.
package memory
