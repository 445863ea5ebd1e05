package untypedvec

import (
	"math"
	"runtime"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/untypedvec/errors"
	"github.com/wippyai/untypedvec/layout"
	"github.com/wippyai/untypedvec/memory"
)

// GuestList returns the (pointer, length) pair a WebAssembly guest reads as
// a canonical ABI list<T>. The vec must use a memory.Linear allocator.
// The pointer changes when the vec grows.
//
// An empty vec with no buffer yet returns (0, 0).
func (v *Vec) GuestList() (ptr, length uint32, err error) {
	defer runtime.KeepAlive(v)
	c, err := v.checked(nil, errors.PhaseGet)
	if err != nil {
		return 0, 0, err
	}
	if c.region == nil && c.len == 0 {
		return 0, 0, nil
	}

	lr, ok := c.region.(*memory.LinearRegion)
	if !ok {
		return 0, 0, errors.New(errors.PhaseGet, errors.KindUnsupported).
			BoundType(c.typ.String()).
			Detail("vec is not backed by linear memory").
			Build()
	}
	if uint64(c.len) > math.MaxUint32 {
		return 0, 0, errors.Overflow(errors.PhaseGet, "length exceeds u32", c.len)
	}
	return lr.Offset(), uint32(c.len), nil
}

// GuestListOf is GuestList for a guest that reads the elements as
// list<elem>. It fails with a layout mismatch unless the bound Go type has
// the canonical ABI layout of elem.
func (v *Vec) GuestListOf(elem wit.Type) (ptr, length uint32, err error) {
	c, err := v.checked(nil, errors.PhaseGet)
	if err != nil {
		return 0, 0, err
	}
	if elem == nil {
		return 0, 0, errors.Unsupported(errors.PhaseGet,
			c.typ.String()+" has no guest representation")
	}
	if err := layout.CheckWIT(c.typ, elem); err != nil {
		return 0, 0, err
	}
	return v.GuestList()
}
