package strata

import "fmt"

// Op represents an operator from the fixed set every backend must provide.
// AND, OR, XOR, NOT and EQ apply to boolean or bit-vector operands; the
// backend dispatches on the operand sort.
type Op int

const (
	arithmetic_op_begin = Op(iota)
	ADD
	SUB
	MUL
	UDIV
	SDIV
	UREM
	SREM
	AND
	OR
	XOR
	NOT
	SHL
	LSHR
	ASHR
	arithmetic_op_end

	compare_op_begin
	EQ
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
	compare_op_end

	ITE
	STORE
	SELECT
	CONCAT
)

var opNames = [...]string{
	ADD:    "add",
	SUB:    "sub",
	MUL:    "mul",
	UDIV:   "udiv",
	SDIV:   "sdiv",
	UREM:   "urem",
	SREM:   "srem",
	AND:    "and",
	OR:     "or",
	XOR:    "xor",
	NOT:    "not",
	SHL:    "shl",
	LSHR:   "lshr",
	ASHR:   "ashr",
	EQ:     "eq",
	ULT:    "ult",
	ULE:    "ule",
	UGT:    "ugt",
	UGE:    "uge",
	SLT:    "slt",
	SLE:    "sle",
	SGT:    "sgt",
	SGE:    "sge",
	ITE:    "ite",
	STORE:  "store",
	SELECT: "select",
	CONCAT: "concat",
}

// String returns the string representation of the operator.
func (op Op) String() string {
	if op >= 0 && op < Op(len(opNames)) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op<%d>", op)
}

// IsArithmetic returns true if op is an arithmetic or bitwise operator.
func (op Op) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op Op) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// Term represents an opaque backend expression handle. The engine never
// inspects terms; it only threads them back into the backend.
type Term interface {
	String() string
}

// Status represents the outcome of a satisfiability check.
type Status int

const (
	StatusUnknown Status = iota
	StatusSat
	StatusUnsat
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusSat:
		return "sat"
	case StatusUnsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Backend represents the solver surface the encoding layer requires. All
// sorts passed in are Bool, BV, or Array sorts; tuple sorts never reach a
// backend. A backend answering "unknown" reports StatusUnknown, optionally
// with one of the ErrSolver sentinel errors; it never coerces to sat/unsat.
type Backend interface {
	// Symbol returns the named symbol of the given sort, creating it if
	// needed. The same name and sort always denote the same symbol.
	Symbol(name string, sort Sort) (Term, error)

	// ConstBV returns a bit-vector literal of the given sort.
	ConstBV(value uint64, sort Sort) (Term, error)

	// ConstBool returns a boolean literal.
	ConstBool(value bool) (Term, error)

	// Apply constructs a function application with the given result sort.
	Apply(op Op, sort Sort, args ...Term) (Term, error)

	// Extract returns width bits of t starting at offset.
	Extract(t Term, offset, width uint) (Term, error)

	// Assert adds a boolean term to the solver's constraint set.
	Assert(t Term) error

	// Check reports the satisfiability of the asserted constraints.
	Check() (Status, error)

	// ValueBV returns the concrete value bound to a bit-vector term.
	// Only valid after Check has returned StatusSat.
	ValueBV(t Term) (uint64, error)

	// ValueBool returns the concrete value bound to a boolean term.
	// Only valid after Check has returned StatusSat.
	ValueBool(t Term) (bool, error)
}
