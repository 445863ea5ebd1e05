package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which operation raised the error
type Phase string

const (
	PhaseCreate Phase = "create" // vec construction
	PhasePush   Phase = "push"   // element insertion
	PhaseGet    Phase = "get"    // indexed access
	PhaseGrow   Phase = "grow"   // capacity growth
	PhaseDrop   Phase = "drop"   // teardown
	PhaseAlloc  Phase = "alloc"  // allocator backends
	PhaseLayout Phase = "layout" // layout calculation and checks
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindAllocation     Kind = "allocation"
	KindOverflow       Kind = "overflow"
	KindUnsupported    Kind = "unsupported"
	KindClosed         Kind = "closed"
	KindInvalidInput   Kind = "invalid_input"
	KindLayoutMismatch Kind = "layout_mismatch"
	KindPanic          Kind = "panic"
)

// Sentinels for errors.Is; they match errors of the same Kind in any phase.
var (
	ErrTypeMismatch = &Error{Kind: KindTypeMismatch}
	ErrOutOfBounds  = &Error{Kind: KindOutOfBounds}
	ErrAllocation   = &Error{Kind: KindAllocation}
	ErrOverflow     = &Error{Kind: KindOverflow}
	ErrUnsupported  = &Error{Kind: KindUnsupported}
	ErrClosed       = &Error{Kind: KindClosed}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	GoType    string
	BoundType string
	Detail    string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.GoType != "" || e.BoundType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.BoundType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", bound type ")
			b.WriteString(e.BoundType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("bound type ")
			b.WriteString(e.BoundType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.BoundType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// GoType sets the Go type name supplied by the caller
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// BoundType sets the element type the container is bound to
func (b *Builder) BoundType(t string) *Builder {
	b.err.BoundType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, goType, boundType string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindTypeMismatch,
		GoType:    goType,
		BoundType: boundType,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uintptr, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, detail string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Detail: detail,
		Value:  value,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Closed creates an error for operations on a torn-down container
func Closed(phase Phase, boundType string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindClosed,
		BoundType: boundType,
		Detail:    "vec is closed",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// DestructorPanic records a panic recovered from an element destructor
func DestructorPanic(boundType string, index int, recovered any) *Error {
	return &Error{
		Phase:     PhaseDrop,
		Kind:      KindPanic,
		BoundType: boundType,
		Detail:    fmt.Sprintf("destructor of element %d panicked: %v", index, recovered),
		Value:     recovered,
	}
}

// LayoutMismatch creates an error for Go types whose memory layout
// differs from the layout expected by the guest
func LayoutMismatch(goType, witType, detail string) *Error {
	return &Error{
		Phase:     PhaseLayout,
		Kind:      KindLayoutMismatch,
		GoType:    goType,
		BoundType: witType,
		Detail:    detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
