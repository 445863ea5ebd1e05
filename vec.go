package untypedvec

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/untypedvec/errors"
	"github.com/wippyai/untypedvec/layout"
	"github.com/wippyai/untypedvec/memory"
)

// Vec is a growable array of one element type. The type is chosen by New
// and recorded at runtime; every typed operation checks it before touching
// element memory.
//
// A Vec has a single owner and is not safe for concurrent use.
type Vec struct {
	core    *core
	cleanup runtime.Cleanup
}

// core holds everything teardown needs, kept apart from Vec so the
// implicit-teardown cleanup can reference it without keeping Vec alive.
type core struct {
	typ    reflect.Type
	alloc  memory.Allocator
	region memory.Region
	drop   func(unsafe.Pointer)
	log    *zap.Logger
	layout layout.Layout
	len    int
	cap    int
	closed bool

	// claimed is set once an Exclusive allocator is held by this vec.
	claimed bool
}

// zeroBase is the address handed out for every zero-sized element.
var zeroBase uintptr

// New returns an empty vec bound to T.
//
// If the vec is dropped without Close, a runtime cleanup tears it down
// once it becomes unreachable; Close runs teardown deterministically and
// should be deferred by the owner.
func New[T any](opts ...Option) *Vec {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	typ := reflect.TypeFor[T]()
	c := &core{
		typ:    typ,
		alloc:  cfg.alloc,
		log:    cfg.logger,
		layout: layout.Of[T](),
		drop:   dropFor[T](),
	}
	if cfg.drop != nil {
		if cfg.dropType != typ {
			panic(errors.New(errors.PhaseCreate, errors.KindTypeMismatch).
				GoType(cfg.dropType.String()).
				BoundType(typ.String()).
				Detail("DropFunc element type").
				Build())
		}
		c.drop = cfg.drop
	}
	if c.alloc == nil {
		c.alloc = memory.NewHeap()
	}
	if c.log == nil {
		c.log = Logger()
	}
	if c.layout.ZeroSized() {
		c.cap = math.MaxInt
	}

	v := &Vec{core: c}
	v.cleanup = runtime.AddCleanup(v, func(c *core) { c.finalize() }, c)
	return v
}

// WithCapacity returns a vec bound to T with room for at least n elements.
func WithCapacity[T any](n int, opts ...Option) (*Vec, error) {
	v := New[T](opts...)
	if err := v.ReserveExact(n); err != nil {
		_ = v.Close()
		return nil, err
	}
	return v, nil
}

// Push appends value. The value's bytes move into the vec; no destructor
// runs on it.
func Push[T any](v *Vec, value T) error {
	defer runtime.KeepAlive(v)
	c, err := v.checked(reflect.TypeFor[T](), errors.PhasePush)
	if err != nil {
		return err
	}

	if c.len == c.cap {
		if c.layout.ZeroSized() {
			return errors.Overflow(errors.PhasePush, "zero-sized element count exceeds MaxInt", c.len)
		}
		if err := c.grow(nextCap(c.cap)); err != nil {
			return err
		}
	}

	*(*T)(c.slot(c.len)) = value
	c.len++
	return nil
}

// Get returns a copy of the element at index.
func Get[T any](v *Vec, index int) (T, error) {
	p, err := Ref[T](v, index)
	if err != nil {
		var zero T
		return zero, err
	}
	return *p, nil
}

// Ref returns a pointer to the element at index. The pointer is only valid
// until the next call that grows the vec, and it does not keep the vec
// alive: the owner must keep v reachable (or defer Close) for as long as
// the pointer is used, or implicit teardown may destruct the element.
func Ref[T any](v *Vec, index int) (*T, error) {
	c, err := v.checked(reflect.TypeFor[T](), errors.PhaseGet)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= c.len {
		return nil, errors.OutOfBounds(errors.PhaseGet, index, c.len)
	}
	p := (*T)(c.slot(index))
	runtime.KeepAlive(v)
	return p, nil
}

// Len returns the number of stored elements.
func (v *Vec) Len() int {
	if v.core == nil {
		return 0
	}
	return v.core.len
}

// Cap returns the number of elements the vec can hold without growing.
// Vecs of zero-sized types report math.MaxInt.
func (v *Vec) Cap() int {
	if v.core == nil {
		return 0
	}
	return v.core.cap
}

// Type returns the bound element type.
func (v *Vec) Type() reflect.Type {
	if v.core == nil {
		return nil
	}
	return v.core.typ
}

// Layout returns the size and alignment of the bound element type.
func (v *Vec) Layout() layout.Layout {
	if v.core == nil {
		return layout.Layout{}
	}
	return v.core.layout
}

// Closed reports whether Close has run.
func (v *Vec) Closed() bool {
	return v.core == nil || v.core.closed
}

func (v *Vec) String() string {
	if v.core == nil {
		return "Vec(uninitialized)"
	}
	if v.core.closed {
		return fmt.Sprintf("Vec[%s](closed)", v.core.typ)
	}
	return fmt.Sprintf("Vec[%s](len=%d, cap=%d)", v.core.typ, v.core.len, v.core.cap)
}

// Reserve ensures room for at least additional more elements, growing to
// at least double the current capacity when it has to grow.
func (v *Vec) Reserve(additional int) error {
	return v.reserve(additional, false)
}

// ReserveExact ensures room for exactly additional more elements, without
// over-allocating.
func (v *Vec) ReserveExact(additional int) error {
	return v.reserve(additional, true)
}

func (v *Vec) reserve(additional int, exact bool) error {
	defer runtime.KeepAlive(v)
	c, err := v.checked(nil, errors.PhaseGrow)
	if err != nil {
		return err
	}
	if additional < 0 {
		return errors.InvalidInput(errors.PhaseGrow, fmt.Sprintf("reserve %d elements", additional))
	}
	if c.cap-c.len >= additional {
		return nil
	}
	if additional > math.MaxInt-c.len {
		return errors.Overflow(errors.PhaseGrow,
			fmt.Sprintf("len %d + %d overflows int", c.len, additional), additional)
	}

	target := c.len + additional
	if !exact {
		target = max(target, nextCap(c.cap))
	}
	return c.grow(target)
}

// Close destructs every stored element, then releases the buffer.
// Destructors run exactly once each. If one panics, the rest still run,
// the buffer is still released, and the first panic is re-raised.
// Closing twice is a no-op.
func (v *Vec) Close() error {
	c := v.core
	if c == nil || c.closed {
		return nil
	}
	v.cleanup.Stop()
	if r := c.teardown(); r != nil {
		panic(r)
	}
	return nil
}

// checked returns the vec's state after verifying it is open and, when
// typ is non-nil, bound to typ.
func (v *Vec) checked(typ reflect.Type, phase errors.Phase) (*core, error) {
	c := v.core
	if c == nil {
		return nil, errors.New(phase, errors.KindClosed).
			Detail("vec not initialized; use New").
			Build()
	}
	if c.closed {
		return nil, errors.Closed(phase, c.typ.String())
	}
	if typ != nil && typ != c.typ {
		return nil, errors.TypeMismatch(phase, typ.String(), c.typ.String())
	}
	return c, nil
}

// slot returns the address of element i. i must be below cap.
func (c *core) slot(i int) unsafe.Pointer {
	if c.layout.ZeroSized() {
		return unsafe.Pointer(&zeroBase)
	}
	return unsafe.Add(c.region.Pointer(), c.layout.Offset(i))
}

func nextCap(capacity int) int {
	if capacity == 0 {
		return 1
	}
	if capacity > math.MaxInt/2 {
		return math.MaxInt
	}
	return capacity * 2
}

// grow moves the live elements into a region of newCap slots. On failure
// the vec is unchanged.
func (c *core) grow(newCap int) error {
	var (
		r   memory.Region
		err error
	)
	if c.region == nil {
		r, err = c.allocFirst(newCap)
	} else {
		r, err = c.alloc.Realloc(c.region, newCap, c.len)
	}
	if err != nil {
		c.log.Debug("vec growth failed",
			zap.Stringer("type", c.typ),
			zap.Int("len", c.len),
			zap.Int("cap", c.cap),
			zap.Int("requested", newCap),
			zap.Error(err))
		return errors.New(errors.PhaseGrow, kindOf(err)).
			BoundType(c.typ.String()).
			Detail("grow capacity %d -> %d", c.cap, newCap).
			Cause(err).
			Build()
	}

	c.log.Debug("vec grown",
		zap.Stringer("type", c.typ),
		zap.Int("len", c.len),
		zap.Int("from", c.cap),
		zap.Int("to", newCap),
		zap.Uintptr("bytes", uintptr(newCap)*c.layout.Stride()))
	c.region = r
	c.cap = newCap
	return nil
}

// allocFirst allocates the vec's first region, claiming allocators whose
// memory would move under another owner's elements.
func (c *core) allocFirst(n int) (memory.Region, error) {
	ex, exclusive := c.alloc.(memory.Exclusive)
	if exclusive && !c.claimed {
		if err := ex.Claim(); err != nil {
			return nil, err
		}
	}
	r, err := c.alloc.Alloc(c.typ, n)
	if err != nil {
		if exclusive && !c.claimed {
			ex.Release()
		}
		return nil, err
	}
	if exclusive {
		c.claimed = true
	}
	return r, nil
}

func kindOf(err error) errors.Kind {
	if e, ok := err.(*errors.Error); ok {
		return e.Kind
	}
	return errors.KindAllocation
}

// teardown returns the first destructor panic, if any.
func (c *core) teardown() (panicked any) {
	n := c.len
	c.len = 0
	c.closed = true

	if c.drop != nil {
		for i := 0; i < n; i++ {
			r := c.dropAt(i)
			if r == nil {
				continue
			}
			c.log.Warn("element destructor panicked",
				zap.Error(errors.DestructorPanic(c.typ.String(), i, r)))
			if panicked == nil {
				panicked = r
			}
		}
	}

	if c.region != nil {
		c.alloc.Free(c.region)
		c.region = nil
	}
	if c.claimed {
		c.alloc.(memory.Exclusive).Release()
		c.claimed = false
	}
	c.cap = 0

	c.log.Debug("vec closed",
		zap.Stringer("type", c.typ),
		zap.Int("dropped", n),
		zap.Bool("destructor", c.drop != nil))
	return panicked
}

func (c *core) dropAt(i int) (recovered any) {
	defer func() {
		recovered = recover()
	}()
	c.drop(c.slot(i))
	return nil
}

// finalize runs when a vec is collected without Close.
func (c *core) finalize() {
	if c.closed {
		return
	}
	if r := c.teardown(); r != nil {
		c.log.Error("implicit teardown swallowed destructor panic",
			zap.Stringer("type", c.typ),
			zap.String("phase", string(errors.PhaseDrop)),
			zap.Any("panic", r))
	}
}
