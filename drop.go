package untypedvec

import (
	"reflect"
	"unsafe"
)

// Dropper is implemented by element types that need teardown when the
// vec holding them is closed. Drop runs exactly once per stored element.
type Dropper interface {
	Drop()
}

// dropFor captures T's teardown as a function over raw slot addresses.
// It returns nil when T has none.
func dropFor[T any]() func(unsafe.Pointer) {
	typ := reflect.TypeFor[T]()

	switch typ.Kind() {
	case reflect.Interface:
		// Decided per element by the dynamic type.
		return func(p unsafe.Pointer) {
			if d, ok := any(*(*T)(p)).(Dropper); ok {
				d.Drop()
			}
		}
	case reflect.Pointer:
		if !typ.Implements(dropperType) {
			return nil
		}
		return func(p unsafe.Pointer) {
			if *(*unsafe.Pointer)(p) == nil {
				return
			}
			any(*(*T)(p)).(Dropper).Drop()
		}
	}

	if reflect.PointerTo(typ).Implements(dropperType) {
		return func(p unsafe.Pointer) {
			any((*T)(p)).(Dropper).Drop()
		}
	}
	return nil
}

var dropperType = reflect.TypeFor[Dropper]()
