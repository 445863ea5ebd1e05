package memory

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/untypedvec/errors"
	"github.com/wippyai/untypedvec/layout"
)

// PageSize is the WebAssembly page size.
const PageSize = 65536

// reservedBytes keeps offset 0 out of circulation so no region looks like a null guest pointer.
const reservedBytes = 16

// Minimal core module exporting one growable memory.
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: min 1 page, no max
	0x07, 0x0a, 0x01, 0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, // export "memory"
}

type span struct {
	off  uint32
	size uint32
}

// Linear allocates regions in WebAssembly linear memory.
// It uses a bump pointer with a first-fit free list and grows the memory
// one page at a time as needed.
//
// Growing the memory can move its host buffer, so any host pointer into
// the memory is stale after an allocation that grows it. A vec claims the
// Linear through Exclusive, which keeps two vecs from sharing one; direct
// Alloc callers must re-resolve Region.Pointer after every allocation.
type Linear struct {
	mem     api.Memory
	close   func(context.Context) error
	free    []span
	start   uint32
	top     uint32
	claimed bool
}

// NewLinear allocates from mem above its current size, growing it on
// demand. Memory the guest already uses is never handed out, but the guest
// must not grow mem itself while regions are live.
func NewLinear(mem api.Memory) *Linear {
	start := uint32(layout.AlignTo(uintptr(mem.Size()), reservedBytes))
	if start == 0 {
		start = reservedBytes
	}
	return &Linear{mem: mem, start: start, top: start}
}

// OpenLinear creates a private wazero runtime holding a single memory.
// maxPages limits growth; 0 leaves wazero's default limit in place.
// Close releases the runtime.
func OpenLinear(ctx context.Context, maxPages uint32) (*Linear, error) {
	cfg := wazero.NewRuntimeConfig()
	if maxPages > 0 {
		cfg = cfg.WithMemoryLimitPages(maxPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	mod, err := rt.Instantiate(ctx, memoryModule)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "instantiate memory module")
	}

	a := &Linear{mem: mod.Memory(), start: reservedBytes, top: reservedBytes}
	a.close = rt.Close
	return a, nil
}

// Memory returns the backing wazero memory.
func (a *Linear) Memory() api.Memory {
	return a.mem
}

// Close releases the runtime created by OpenLinear. It is a no-op for
// allocators built with NewLinear.
func (a *Linear) Close(ctx context.Context) error {
	if a.close == nil {
		return nil
	}
	err := a.close(ctx)
	a.close = nil
	return err
}

// Claim reserves the allocator for a single owner.
func (a *Linear) Claim() error {
	if a.claimed {
		return errors.Unsupported(errors.PhaseAlloc,
			"linear memory already backs another vec; growth would move its elements")
	}
	a.claimed = true
	return nil
}

// Release ends a Claim.
func (a *Linear) Release() {
	a.claimed = false
}

// InUse returns the bytes between the first allocation and the bump pointer,
// including free spans not yet reused.
func (a *Linear) InUse() uint32 {
	return a.top - a.start
}

// LinearRegion is a region in linear memory.
type LinearRegion struct {
	mem    api.Memory
	elem   reflect.Type
	offset uint32
	size   uint32
	n      int
}

// Pointer resolves the region against the current memory buffer.
func (r *LinearRegion) Pointer() unsafe.Pointer {
	buf, ok := r.mem.Read(r.offset, r.size)
	if !ok || len(buf) == 0 {
		return nil
	}
	return unsafe.Pointer(&buf[0])
}

func (r *LinearRegion) Len() int           { return r.n }
func (r *LinearRegion) Elem() reflect.Type { return r.elem }

// Offset is the region's address as seen by a guest.
func (r *LinearRegion) Offset() uint32 { return r.offset }

// Size is the region's length in bytes.
func (r *LinearRegion) Size() uint32 { return r.size }

func (a *Linear) Alloc(elem reflect.Type, n int) (Region, error) {
	if layout.HasPointers(elem) {
		return nil, errors.New(errors.PhaseAlloc, errors.KindUnsupported).
			GoType(elem.String()).
			Detail("element type holds pointers; linear memory is invisible to the garbage collector").
			Build()
	}
	if n <= 0 {
		return nil, errors.InvalidInput(errors.PhaseAlloc, fmt.Sprintf("region of %d slots", n))
	}

	l := layout.ForType(elem)
	size, err := linearSize(l, n)
	if err != nil {
		return nil, err
	}

	off, err := a.reserve(size, uint32(l.Align))
	if err != nil {
		return nil, err
	}

	r := &LinearRegion{mem: a.mem, elem: elem, offset: off, size: size, n: n}
	if p := r.Pointer(); uintptr(p)%l.Align != 0 {
		a.release(span{off: off, size: size})
		return nil, errors.AllocationFailed(errors.PhaseAlloc, uintptr(size), l.Align,
			fmt.Errorf("host address %#x misaligned", uintptr(p)))
	}
	return r, nil
}

// Realloc extends in place when r is the most recent allocation, and
// otherwise allocates and copies the live bytes.
func (a *Linear) Realloc(r Region, n, live int) (Region, error) {
	old, ok := r.(*LinearRegion)
	if !ok || old.mem != a.mem {
		return nil, errors.InvalidInput(errors.PhaseAlloc, fmt.Sprintf("region %T not allocated by this linear allocator", r))
	}
	if live < 0 || live > old.n || live > n {
		return nil, errors.InvalidInput(errors.PhaseAlloc,
			fmt.Sprintf("relocate %d of %d slots into %d", live, old.n, n))
	}

	l := layout.ForType(old.elem)
	size, err := linearSize(l, n)
	if err != nil {
		return nil, err
	}

	if old.offset+old.size == a.top {
		end := uint64(old.offset) + uint64(size)
		if err := a.ensure(end, uint32(l.Align)); err != nil {
			return nil, err
		}
		a.top = uint32(end)
		next := &LinearRegion{mem: a.mem, elem: old.elem, offset: old.offset, size: size, n: n}
		old.n, old.size = 0, 0
		return next, nil
	}

	nr, err := a.Alloc(old.elem, n)
	if err != nil {
		return nil, err
	}
	next := nr.(*LinearRegion)

	if bytes := uint32(live) * uint32(l.Stride()); bytes > 0 {
		dst, _ := a.mem.Read(next.offset, bytes)
		src, _ := a.mem.Read(old.offset, bytes)
		copy(dst, src)
	}
	a.Free(old)
	return next, nil
}

func (a *Linear) Free(r Region) {
	lr, ok := r.(*LinearRegion)
	if !ok || lr.mem != a.mem || lr.size == 0 {
		return
	}
	a.release(span{off: lr.offset, size: lr.size})
	lr.n, lr.size = 0, 0
}

func linearSize(l layout.Layout, n int) (uint32, error) {
	size, ok := l.Array(n)
	if !ok || size > math.MaxUint32 {
		return 0, errors.Overflow(errors.PhaseAlloc,
			fmt.Sprintf("%d elements of %d bytes exceed 32-bit linear memory", n, l.Size), n)
	}
	return uint32(size), nil
}

func (a *Linear) reserve(size, align uint32) (uint32, error) {
	for i, s := range a.free {
		start := uint32(layout.AlignTo(uintptr(s.off), uintptr(align)))
		if uint64(start)+uint64(size) > uint64(s.off)+uint64(s.size) {
			continue
		}
		a.free = append(a.free[:i], a.free[i+1:]...)
		if start > s.off {
			a.free = append(a.free, span{off: s.off, size: start - s.off})
		}
		if tail := s.off + s.size - (start + size); tail > 0 {
			a.free = append(a.free, span{off: start + size, size: tail})
		}
		return start, nil
	}

	start := uint32(layout.AlignTo(uintptr(a.top), uintptr(align)))
	end := uint64(start) + uint64(size)
	if err := a.ensure(end, align); err != nil {
		return 0, err
	}
	if start > a.top {
		a.free = append(a.free, span{off: a.top, size: start - a.top})
	}
	a.top = uint32(end)
	return start, nil
}

// ensure grows the memory until it covers end bytes.
func (a *Linear) ensure(end uint64, align uint32) error {
	if end > math.MaxUint32 {
		return errors.AllocationFailed(errors.PhaseAlloc, uintptr(end), uintptr(align),
			fmt.Errorf("beyond 4 GiB address space"))
	}
	cur := uint64(a.mem.Size())
	if end <= cur {
		return nil
	}

	pages := (end - cur + PageSize - 1) / PageSize
	prev, ok := a.mem.Grow(uint32(pages))
	if !ok {
		Logger().Debug("linear memory growth refused",
			zap.Uint64("pages", pages),
			zap.Uint64("current_bytes", cur))
		return errors.AllocationFailed(errors.PhaseAlloc, uintptr(end-cur), uintptr(align),
			fmt.Errorf("grow memory by %d pages refused", pages))
	}
	Logger().Debug("linear memory grown",
		zap.Uint32("from_pages", prev),
		zap.Uint64("by_pages", pages))
	return nil
}

// release returns s to the free list, lowering the bump pointer when s
// (and any free spans below it) sit at the top.
func (a *Linear) release(s span) {
	if s.off+s.size != a.top {
		a.free = append(a.free, s)
		return
	}
	a.top = s.off
	for {
		lowered := false
		for i, f := range a.free {
			if f.off+f.size == a.top {
				a.top = f.off
				a.free = append(a.free[:i], a.free[i+1:]...)
				lowered = true
				break
			}
		}
		if !lowered {
			return
		}
	}
}
