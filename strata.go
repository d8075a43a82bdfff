// Package strata encodes typed program values (structs, unions, arrays,
// pointers) into flat constraints over a solver backend's native vocabulary
// of booleans, fixed-width bit-vectors, and scalar-ranged arrays, and
// translates satisfying models back into concrete program values.
//
// The target solver dialect has no notion of composite values, so composite
// encoding works by hanging independently named scalar symbols off a tuple's
// symbol name, lazily, and by transposing arrays of composites into one
// homogeneous array per field ("structure of arrays"). See the tuple and
// tuple-array files for the two encoding engines.
package strata

import (
	"errors"
	"fmt"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64

	// WidthPtr is the machine word width used for pointer fields.
	WidthPtr = Width64
)

// ArrayReadbackCap bounds how many indices of an array a model readback
// will enumerate. Indices beyond the cap are not extracted.
const ArrayReadbackCap = 1024

var (
	ErrSolverTimeout       = errors.New("solver timeout")
	ErrSolverCanceled      = errors.New("solver canceled")
	ErrSolverResourceLimit = errors.New("solver resource limit")
	ErrSolverUnknown       = errors.New("solver unknown error")
)

// ContractError is returned when an operation is applied to a value that can
// never legally receive it: projecting a field from a scalar, indexing a
// non-array, updating a tuple through a non-constant field index, assigning
// into an already-bound destination. It indicates a broken invariant in the
// input IR rather than a limitation of this layer.
type ContractError struct {
	Op     string // operation that was attempted
	AST    string // name of the offending value, if it has one
	Reason string
}

// Error returns the string representation of the error.
func (e *ContractError) Error() string {
	if e.AST != "" {
		return fmt.Sprintf("strata: contract violation: %s on %q: %s", e.Op, e.AST, e.Reason)
	}
	return fmt.Sprintf("strata: contract violation: %s: %s", e.Op, e.Reason)
}

// UnsupportedError is returned for constructs this layer deliberately refuses
// to encode or extract (non-constant array sizes, full tuple-array readback,
// deeply nested array-of-tuple-of-array shapes). Callers can abstain from
// verifying the construct instead of receiving a wrong answer.
type UnsupportedError struct {
	Feature string
}

// Error returns the string representation of the error.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("strata: unsupported: %s", e.Feature)
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
