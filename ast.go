package strata

// AST represents an encoded symbolic value. There are exactly three
// variants: ScalarAST wraps one backend term; TupleAST encodes a struct,
// union, or pointer as lazily materialized per-field values; ArrayAST
// encodes an array of composites as one homogeneous array per field.
//
// Every capability either succeeds with the variant-specific semantics
// below or fails with a ContractError; no operation silently degrades.
type AST interface {
	ast()

	// Sort returns the encoded sort of the value.
	Sort() Sort

	// Name returns the symbol name composites hang their fields off.
	// Scalar values are anonymous and return "".
	Name() string

	// Eq returns a boolean-sorted value constraining this and other equal.
	Eq(s *Session, other AST) (AST, error)

	// ITE returns a value equal to this when cond holds and falseOp
	// otherwise. The result never aliases either operand.
	ITE(s *Session, cond, falseOp AST) (AST, error)

	// Update returns a copy with one element replaced. Tuples require a
	// constant field index (idxExpr nil); arrays accept either a constant
	// idx or a general idxExpr.
	Update(s *Session, value AST, idx uint64, idxExpr Expr) (AST, error)

	// Select returns the element of an array-sorted value at idx.
	Select(s *Session, idx Expr) (AST, error)

	// Project returns the field of a composite at a constant index.
	Project(s *Session, idx uint) (AST, error)
}

func (*ScalarAST) ast() {}
func (*TupleAST) ast()  {}
func (*ArrayAST) ast()  {}

// ScalarAST wraps a single backend expression handle. It is the terminal
// variant: booleans, bit-vectors, and scalar-ranged arrays.
type ScalarAST struct {
	sort Sort
	term Term
}

func newScalarAST(sort Sort, term Term) *ScalarAST {
	return &ScalarAST{sort: sort, term: term}
}

// Sort returns the encoded sort of the value.
func (a *ScalarAST) Sort() Sort { return a.sort }

// Name returns "" since scalar values are anonymous.
func (a *ScalarAST) Name() string { return "" }

// Term returns the underlying backend handle.
func (a *ScalarAST) Term() Term { return a.term }

// String returns the backend's rendering of the term.
func (a *ScalarAST) String() string { return a.term.String() }

// Eq emits one backend equality over the two handles.
func (a *ScalarAST) Eq(s *Session, other AST) (AST, error) {
	b, ok := other.(*ScalarAST)
	if !ok {
		return nil, &ContractError{Op: "eq", AST: other.Name(), Reason: "scalar compared against composite"}
	}
	term, err := s.backend.Apply(EQ, s.sorts.Bool(), a.term, b.term)
	if err != nil {
		return nil, err
	}
	return newScalarAST(s.sorts.Bool(), term), nil
}

// ITE emits one backend if-then-else over the two handles.
func (a *ScalarAST) ITE(s *Session, cond, falseOp AST) (AST, error) {
	c, ok := cond.(*ScalarAST)
	if !ok {
		return nil, &ContractError{Op: "ite", AST: cond.Name(), Reason: "condition is not scalar"}
	}
	f, ok := falseOp.(*ScalarAST)
	if !ok {
		return nil, &ContractError{Op: "ite", AST: falseOp.Name(), Reason: "scalar switched against composite"}
	}
	term, err := s.backend.Apply(ITE, a.sort, c.term, a.term, f.term)
	if err != nil {
		return nil, err
	}
	return newScalarAST(a.sort, term), nil
}

// Update emits one backend store. Only legal on array-sorted scalars.
func (a *ScalarAST) Update(s *Session, value AST, idx uint64, idxExpr Expr) (AST, error) {
	sort, ok := a.sort.(*ArraySort)
	if !ok {
		return nil, &ContractError{Op: "update", Reason: "update applied to non-array scalar"}
	}
	v, ok := value.(*ScalarAST)
	if !ok {
		return nil, &ContractError{Op: "update", AST: value.Name(), Reason: "composite stored into scalar-ranged array"}
	}

	index, err := s.indexTerm(sort.DomainWidth, idx, idxExpr)
	if err != nil {
		return nil, err
	}
	term, err := s.backend.Apply(STORE, a.sort, a.term, index, v.term)
	if err != nil {
		return nil, err
	}
	return newScalarAST(a.sort, term), nil
}

// Select emits one backend select. Only legal on array-sorted scalars.
func (a *ScalarAST) Select(s *Session, idx Expr) (AST, error) {
	sort, ok := a.sort.(*ArraySort)
	if !ok {
		return nil, &ContractError{Op: "select", Reason: "select applied to non-array scalar"}
	}
	index, err := s.indexExprTerm(sort.DomainWidth, idx)
	if err != nil {
		return nil, err
	}
	term, err := s.backend.Apply(SELECT, sort.Range, a.term, index)
	if err != nil {
		return nil, err
	}
	return newScalarAST(sort.Range, term), nil
}

// Project fails: scalars have no fields. A projection reaching a scalar
// indicates a type error in the upstream IR.
func (a *ScalarAST) Project(s *Session, idx uint) (AST, error) {
	return nil, &ContractError{Op: "project", Reason: "projection from non-tuple value"}
}
