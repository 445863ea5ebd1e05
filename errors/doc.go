// Package errors provides structured error types for untypedvec.
//
// Errors are categorized by Phase (which operation raised them) and Kind
// (error category). The Error type carries the offending Go type, the type
// the container is bound to, and an optional cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhasePush, errors.KindTypeMismatch).
//		GoType("float64").
//		BoundType("int32").
//		Detail("vec is bound to a different element type").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseGet, "float64", "int32")
//	err := errors.OutOfBounds(errors.PhaseGet, 10, 5)
//
// All errors implement the standard error interface and support errors.Is/As.
// The Err* sentinels match any phase:
//
//	if errors.Is(err, errors.ErrOutOfBounds) { ... }
package errors
