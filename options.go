package untypedvec

import (
	"reflect"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/untypedvec/memory"
)

// Option configures a Vec at construction.
type Option func(*config)

type config struct {
	alloc    memory.Allocator
	logger   *zap.Logger
	drop     func(unsafe.Pointer)
	dropType reflect.Type
}

// WithAllocator sets the backing allocator. The default is memory.NewHeap().
// An allocator implementing memory.Exclusive, such as memory.Linear, backs
// at most one open vec; a second vec fails its first push or reserve.
func WithAllocator(a memory.Allocator) Option {
	return func(c *config) {
		c.alloc = a
	}
}

// WithLogger sets the vec's logger. The default is the package Logger().
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// DropFunc sets the destructor run on each element at teardown, taking
// precedence over a Drop method. T must be the vec's element type; New
// panics otherwise.
func DropFunc[T any](fn func(*T)) Option {
	return func(c *config) {
		c.dropType = reflect.TypeFor[T]()
		c.drop = func(p unsafe.Pointer) { fn((*T)(p)) }
	}
}
