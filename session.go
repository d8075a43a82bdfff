package strata

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/davecgh/go-spew/spew"
)

// Session owns one conversion run: the fresh-name counter, the sort
// registry, the pointer provenance table, and every AST allocated while
// encoding. Sessions are single-threaded; nothing in a session may be
// shared with another session. Multiple independent sessions can run
// concurrently with zero shared mutable state.
type Session struct {
	backend Backend
	sorts   *SortRegistry

	// Fresh-name counter, scoped to this session so that independently
	// declared program variables never collide in the solver namespace.
	freshID uint64

	// Pointer provenance. Object ids 0 and 1 are pre-registered as the
	// null and invalid objects.
	pointers      *PointerTable
	pointerType   *PointerType
	pointerStruct *StructType
	nullPtr       *TupleAST
	invalidPtr    *TupleAST
	pointerInit   bool

	// Composite symbols interned by name, so that converting the same
	// symbol twice yields the same identity (and assign-sharing holds).
	symbols map[string]AST

	nasserts int
}

// NewSession returns a new conversion session backed by the given solver.
func NewSession(backend Backend) *Session {
	s := &Session{
		backend: backend,
		sorts:   NewSortRegistry(),
		symbols: make(map[string]AST),
	}
	s.pointerType = &PointerType{}
	s.pointerStruct = &StructType{
		Name: "pointer",
		Members: []Member{
			{Name: "object_id", Type: &IntType{Width: WidthPtr}},
			{Name: "offset", Type: &IntType{Width: WidthPtr}},
		},
	}
	s.pointers = NewPointerTable()
	s.pointers.Register(NullObjectID, "NULL", 0)
	s.pointers.Register(InvalidObjectID, "INVALID", 0)
	return s
}

// Sorts returns the session's sort registry.
func (s *Session) Sorts() *SortRegistry { return s.sorts }

// Pointers returns the session's pointer provenance table.
func (s *Session) Pointers() *PointerTable { return s.pointers }

// freshName returns a session-unique name with the given prefix.
func (s *Session) freshName(prefix string) string {
	name := fmt.Sprintf("%s::%d", prefix, s.freshID)
	s.freshID++
	return name
}

// convertSort returns the interned sort encoding typ. Nested scalar arrays
// are flattened into a single array over a combined index domain; arrays of
// composites become tuple sorts handled by the transposition engine.
func (s *Session) convertSort(typ Type) (Sort, error) {
	switch typ := typ.(type) {
	case *BoolType:
		return s.sorts.Bool(), nil
	case *IntType:
		return s.sorts.BV(typ.Width, typ.Signed), nil
	case *StructType:
		return s.sorts.Tuple(typ), nil
	case *PointerType:
		// All pointers share one canonical type so they intern to one sort.
		return s.sorts.Tuple(s.pointerType), nil
	case *ArrayType:
		if IsTupleType(typ.Elem) {
			return s.sorts.Tuple(typ), nil
		}

		flat, total, err := flattenArrayType(typ)
		if err != nil {
			return nil, err
		}
		if IsTupleType(flat.Elem) {
			// Arrays of arrays of tuples fall outside the flattening
			// heuristic.
			return nil, &UnsupportedError{Feature: "nested array of tuples"}
		}
		rng, err := s.convertSort(flat.Elem)
		if err != nil {
			return nil, err
		}
		return s.sorts.Array(domainWidth(total, flat.Infinite), rng), nil
	default:
		panic("unreachable")
	}
}

// Convert encodes a typed IR expression into an AST, routing backend
// operator construction through the session's solver.
func (s *Session) Convert(expr Expr) (AST, error) {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return s.convertConstant(expr)
	case *SymbolExpr:
		return s.convertSymbol(expr)
	case *BinaryExpr:
		return s.convertBinary(expr)
	case *NotExpr:
		return s.convertNot(expr)
	case *CastExpr:
		return s.convertCast(expr)
	case *IteExpr:
		return s.convertIte(expr)
	case *IndexExpr:
		array, err := s.Convert(expr.Array)
		if err != nil {
			return nil, err
		}
		return array.Select(s, expr.Index)
	case *StoreExpr:
		array, err := s.Convert(expr.Array)
		if err != nil {
			return nil, err
		}
		value, err := s.Convert(expr.Value)
		if err != nil {
			return nil, err
		}
		return array.Update(s, value, 0, expr.Index)
	case *MemberExpr:
		x, err := s.Convert(expr.X)
		if err != nil {
			return nil, err
		}
		return x.Project(s, expr.Index)
	case *MemberUpdateExpr:
		x, err := s.Convert(expr.X)
		if err != nil {
			return nil, err
		}
		value, err := s.Convert(expr.Value)
		if err != nil {
			return nil, err
		}
		return x.Update(s, value, uint64(expr.Index), nil)
	case *StructExpr:
		return s.tupleCreate(expr)
	case *UnionExpr:
		return s.unionCreate(expr)
	case *ArrayExpr:
		return s.arrayCreate(expr)
	case *ArrayOfExpr:
		return s.arrayOfCreate(expr)
	default:
		panic("unreachable")
	}
}

func (s *Session) convertConstant(expr *ConstantExpr) (AST, error) {
	switch typ := expr.Typ.(type) {
	case *BoolType:
		term, err := s.backend.ConstBool(expr.Value != 0)
		if err != nil {
			return nil, err
		}
		return newScalarAST(s.sorts.Bool(), term), nil
	case *IntType:
		sort := s.sorts.BV(typ.Width, typ.Signed)
		term, err := s.backend.ConstBV(expr.Value, sort)
		if err != nil {
			return nil, err
		}
		return newScalarAST(sort, term), nil
	default:
		return nil, &ContractError{Op: "convert", Reason: fmt.Sprintf("constant of non-scalar type %s", expr.Typ)}
	}
}

func (s *Session) convertSymbol(expr *SymbolExpr) (AST, error) {
	switch {
	case IsTupleType(expr.Typ):
		// Well-known pointer symbols resolve to the canonical objects.
		if _, ok := expr.Typ.(*PointerType); ok {
			switch expr.Name {
			case "NULL", "0":
				if err := s.initPointerASTs(); err != nil {
					return nil, err
				}
				return s.nullPtr, nil
			case "INVALID":
				if err := s.initPointerASTs(); err != nil {
					return nil, err
				}
				return s.invalidPtr, nil
			}
		}

		fallthrough

	case IsTupleArrayType(expr.Typ):
		if ast, ok := s.symbols[expr.Name]; ok {
			return ast, nil
		}
		sort, err := s.convertSort(expr.Typ)
		if err != nil {
			return nil, err
		}
		ast, err := s.tupleFresh(sort.(*TupleSort), expr.Name)
		if err != nil {
			return nil, err
		}
		s.symbols[expr.Name] = ast
		return ast, nil

	default:
		sort, err := s.convertSort(expr.Typ)
		if err != nil {
			return nil, err
		}
		term, err := s.backend.Symbol(expr.Name, sort)
		if err != nil {
			return nil, err
		}
		return newScalarAST(sort, term), nil
	}
}

func (s *Session) convertBinary(expr *BinaryExpr) (AST, error) {
	lhs, err := s.Convert(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := s.Convert(expr.RHS)
	if err != nil {
		return nil, err
	}

	// Equality over composites is pushed down by the capability model.
	if expr.Op == EQ {
		return lhs.Eq(s, rhs)
	}

	a, ok := lhs.(*ScalarAST)
	if !ok {
		return nil, &ContractError{Op: expr.Op.String(), AST: lhs.Name(), Reason: "arithmetic on composite value"}
	}
	b, ok := rhs.(*ScalarAST)
	if !ok {
		return nil, &ContractError{Op: expr.Op.String(), AST: rhs.Name(), Reason: "arithmetic on composite value"}
	}

	// Greater-than comparisons reverse into their less-than duals.
	op, x, y := expr.Op, a.term, b.term
	switch expr.Op {
	case UGT:
		op, x, y = ULT, b.term, a.term
	case UGE:
		op, x, y = ULE, b.term, a.term
	case SGT:
		op, x, y = SLT, b.term, a.term
	case SGE:
		op, x, y = SLE, b.term, a.term
	}

	resultSort := a.sort
	if op.IsCompare() {
		resultSort = s.sorts.Bool()
	}
	term, err := s.backend.Apply(op, resultSort, x, y)
	if err != nil {
		return nil, err
	}
	return newScalarAST(resultSort, term), nil
}

func (s *Session) convertNot(expr *NotExpr) (AST, error) {
	x, err := s.Convert(expr.X)
	if err != nil {
		return nil, err
	}
	a, ok := x.(*ScalarAST)
	if !ok {
		return nil, &ContractError{Op: "not", AST: x.Name(), Reason: "negation of composite value"}
	}
	term, err := s.backend.Apply(NOT, a.sort, a.term)
	if err != nil {
		return nil, err
	}
	return newScalarAST(a.sort, term), nil
}

func (s *Session) convertCast(expr *CastExpr) (AST, error) {
	src, err := s.Convert(expr.Src)
	if err != nil {
		return nil, err
	}
	a, ok := src.(*ScalarAST)
	if !ok {
		return nil, &ContractError{Op: "cast", AST: src.Name(), Reason: "cast of composite value"}
	}
	srcSort, ok := a.sort.(*BVSort)
	if !ok {
		return nil, &ContractError{Op: "cast", Reason: "cast of non-bit-vector value"}
	}

	sort := s.sorts.BV(expr.Width, expr.Signed)
	term, err := s.castTerm(a.term, srcSort.Width, expr.Width, expr.Signed)
	if err != nil {
		return nil, err
	}
	return newScalarAST(sort, term), nil
}

// castTerm adjusts a bit-vector term to a new width using the backend's
// extract/concat vocabulary. Sign extension is expressed as a conditional
// on the operand's sign.
func (s *Session) castTerm(t Term, from, to uint, signed bool) (Term, error) {
	if to == from {
		return t, nil
	} else if to < from {
		return s.backend.Extract(t, 0, to)
	}

	pad := to - from
	zeros, err := s.backend.ConstBV(0, s.sorts.BV(pad, false))
	if err != nil {
		return nil, err
	}
	zext, err := s.backend.Apply(CONCAT, s.sorts.BV(to, signed), zeros, t)
	if err != nil {
		return nil, err
	}
	if !signed {
		return zext, nil
	}

	ones, err := s.backend.ConstBV(^uint64(0), s.sorts.BV(pad, false))
	if err != nil {
		return nil, err
	}
	sext, err := s.backend.Apply(CONCAT, s.sorts.BV(to, signed), ones, t)
	if err != nil {
		return nil, err
	}
	zero, err := s.backend.ConstBV(0, s.sorts.BV(from, true))
	if err != nil {
		return nil, err
	}
	negative, err := s.backend.Apply(SLT, s.sorts.Bool(), t, zero)
	if err != nil {
		return nil, err
	}
	return s.backend.Apply(ITE, s.sorts.BV(to, signed), negative, sext, zext)
}

func (s *Session) convertIte(expr *IteExpr) (AST, error) {
	cond, err := s.Convert(expr.Cond)
	if err != nil {
		return nil, err
	}
	then, err := s.Convert(expr.Then)
	if err != nil {
		return nil, err
	}
	els, err := s.Convert(expr.Else)
	if err != nil {
		return nil, err
	}
	return then.ITE(s, cond, els)
}

// arrayCreate encodes an explicit-element-list array literal. Composite
// elements route through the transposition engine; scalar elements become
// repeated stores into a fresh native array.
func (s *Session) arrayCreate(expr *ArrayExpr) (AST, error) {
	if IsTupleType(expr.Typ.Elem) {
		elems := make([]AST, len(expr.Elems))
		for i, e := range expr.Elems {
			elem, err := s.Convert(e)
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return s.tupleArrayCreate(expr.Typ, elems)
	}

	sort, err := s.convertSort(expr.Typ)
	if err != nil {
		return nil, err
	}
	name := s.freshName("array_create")
	term, err := s.backend.Symbol(name, sort)
	if err != nil {
		return nil, err
	}
	result := AST(newScalarAST(sort, term))

	if expr.Typ.Infinite {
		// Guarantee nothing, this is modelling only.
		return result, nil
	}
	size, err := expr.Typ.ConstantSize()
	if err != nil {
		return nil, err
	}
	if uint64(len(expr.Elems)) != size {
		return nil, &ContractError{
			Op:     "array_create",
			AST:    name,
			Reason: fmt.Sprintf("%d elements for declared size %d", len(expr.Elems), size),
		}
	}

	for i, e := range expr.Elems {
		value, err := s.Convert(e)
		if err != nil {
			return nil, err
		}
		result, err = result.Update(s, value, uint64(i), nil)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// arrayOfCreate encodes a repeated-initializer construction. Nested
// array-of-array shapes are flattened into one combined index domain and
// broadcast from the innermost initializer; this flattening is a heuristic
// with known limits and is not extended any further.
func (s *Session) arrayOfCreate(expr *ArrayOfExpr) (AST, error) {
	arrType := expr.Typ
	init := expr.Init

	if _, ok := arrType.Elem.(*ArrayType); ok {
		flat, _, err := flattenArrayType(arrType)
		if err != nil {
			return nil, err
		}
		for {
			inner, ok := init.(*ArrayOfExpr)
			if !ok {
				break
			}
			init = inner.Init
		}
		arrType = flat
	}

	switch {
	case IsTupleType(arrType.Elem):
		if _, ok := arrType.Elem.(*PointerType); ok {
			return s.pointerArrayOf(arrType, init)
		}
		initAST, err := s.Convert(init)
		if err != nil {
			return nil, err
		}
		return s.tupleArrayOf(arrType, initAST)

	default:
		sort, err := s.convertSort(arrType)
		if err != nil {
			return nil, err
		}
		term, err := s.backend.Symbol(s.freshName("array_of"), sort)
		if err != nil {
			return nil, err
		}
		result := AST(newScalarAST(sort, term))

		if arrType.Infinite {
			// Guarantee nothing, this is modelling only.
			return result, nil
		}
		size, err := arrType.ConstantSize()
		if err != nil {
			return nil, err
		}

		value, err := s.Convert(init)
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < size; i++ {
			result, err = result.Update(s, value, i, nil)
			if err != nil {
				return nil, err
			}
		}
		return result, nil
	}
}

// pointerArrayOf encodes an array_of whose initializer is the null pointer:
// the well-known {0, 0} pair broadcast through the tuple-array path.
func (s *Session) pointerArrayOf(arrType *ArrayType, init Expr) (AST, error) {
	sym, ok := init.(*SymbolExpr)
	if !ok || (sym.Name != "NULL" && sym.Name != "0") {
		return nil, &UnsupportedError{Feature: "pointer array_of with non-null initializer"}
	}

	zero := NewConstantExpr(0, &IntType{Width: WidthPtr})
	strct := NewStructExpr(s.pointerStruct, zero, zero)
	initAST, err := s.tupleCreate(strct)
	if err != nil {
		return nil, err
	}
	return s.tupleArrayOf(arrType, initAST)
}

// initPointerASTs lazily creates and constrains the canonical NULL and
// INVALID pointer values.
func (s *Session) initPointerASTs() error {
	if s.pointerInit {
		return nil
	}
	s.pointerInit = true

	ptrSort := s.sorts.Tuple(s.pointerType).(*TupleSort)
	var err error
	if s.nullPtr, err = s.constrainedPointer(ptrSort, "NULL", NullObjectID); err != nil {
		return err
	}
	if s.invalidPtr, err = s.constrainedPointer(ptrSort, "INVALID", InvalidObjectID); err != nil {
		return err
	}
	return nil
}

// constrainedPointer returns a pointer tuple whose fields are asserted
// equal to {objectID, 0}.
func (s *Session) constrainedPointer(sort *TupleSort, name string, objectID uint64) (*TupleAST, error) {
	ptr := newTupleAST(sort, name)
	wordSort := s.sorts.BV(WidthPtr, false)

	want := [2]uint64{objectID, 0}
	for i, value := range want {
		field, err := ptr.Project(s, uint(i))
		if err != nil {
			return nil, err
		}
		c, err := s.backend.ConstBV(value, wordSort)
		if err != nil {
			return nil, err
		}
		eq, err := field.Eq(s, newScalarAST(wordSort, c))
		if err != nil {
			return nil, err
		}
		if err := s.Assert(eq); err != nil {
			return nil, err
		}
	}
	return ptr, nil
}

// Assert adds a boolean-sorted scalar constraint to the backend.
func (s *Session) Assert(a AST) error {
	scalar, ok := a.(*ScalarAST)
	if !ok {
		return &ContractError{Op: "assert", AST: a.Name(), Reason: "assertion of composite value"}
	}
	if _, ok := scalar.sort.(*BoolSort); !ok {
		return &ContractError{Op: "assert", Reason: "assertion of non-boolean value"}
	}
	if err := s.backend.Assert(scalar.term); err != nil {
		return err
	}
	s.nasserts++
	return nil
}

// Assign binds dst to src without emitting per-field equality constraints.
// This models lvalue assignment into a destination that carries no prior
// constraints: tuples must still be unmaterialized, arrays still free.
// Scalars fall back to one asserted equality.
func (s *Session) Assign(dst, src AST) error {
	switch dst := dst.(type) {
	case *TupleAST:
		other, ok := src.(*TupleAST)
		if !ok {
			return &ContractError{Op: "assign", AST: dst.name, Reason: "tuple assigned from non-tuple"}
		}
		if dst.Materialized() {
			return &ContractError{Op: "assign", AST: dst.name, Reason: "assign into materialized tuple"}
		}
		if err := other.materialize(s); err != nil {
			return err
		}
		// Destination and source now share field identities.
		dst.elements = other.elements
		return nil

	case *ArrayAST:
		other, ok := src.(*ArrayAST)
		if !ok {
			return &ContractError{Op: "assign", AST: dst.name, Reason: "tuple array assigned from non-array"}
		}
		if !dst.stillFree {
			return &ContractError{Op: "assign", AST: dst.name, Reason: "assign into non-free tuple array"}
		}
		dst.elements = other.elements
		dst.stillFree = false
		return nil

	default:
		eq, err := dst.Eq(s, src)
		if err != nil {
			return err
		}
		return s.Assert(eq)
	}
}

// Check reports the satisfiability of everything asserted so far. An
// unknown answer is surfaced as-is; it is never coerced to sat or unsat.
func (s *Session) Check() (Status, error) {
	return s.backend.Check()
}

// conjunct folds boolean values into a single conjunction.
func (s *Session) conjunct(asts []AST) (AST, error) {
	if len(asts) == 0 {
		term, err := s.backend.ConstBool(true)
		if err != nil {
			return nil, err
		}
		return newScalarAST(s.sorts.Bool(), term), nil
	}

	result := asts[0].(*ScalarAST).term
	for _, ast := range asts[1:] {
		var err error
		result, err = s.backend.Apply(AND, s.sorts.Bool(), result, ast.(*ScalarAST).term)
		if err != nil {
			return nil, err
		}
	}
	return newScalarAST(s.sorts.Bool(), result), nil
}

// indexTerm returns the index term for an array operation: either the
// constant idx or the converted idxExpr, adjusted to the domain width.
func (s *Session) indexTerm(width uint, idx uint64, idxExpr Expr) (Term, error) {
	if idxExpr == nil {
		return s.backend.ConstBV(idx, s.sorts.BV(width, false))
	}
	return s.indexExprTerm(width, idxExpr)
}

// indexExprTerm converts a general index expression and adjusts its width
// to the array's domain width.
func (s *Session) indexExprTerm(width uint, idx Expr) (Term, error) {
	ast, err := s.Convert(idx)
	if err != nil {
		return nil, err
	}
	scalar, ok := ast.(*ScalarAST)
	if !ok {
		return nil, &ContractError{Op: "index", AST: ast.Name(), Reason: "composite array index"}
	}
	bv, ok := scalar.sort.(*BVSort)
	if !ok {
		return nil, &ContractError{Op: "index", Reason: "non-bit-vector array index"}
	}
	return s.castTerm(scalar.term, bv.Width, width, false)
}

// Dump returns the contents of the session as a string.
func (s *Session) Dump() string {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, "SESSION")
	fmt.Fprintln(&buf, "=======")
	fmt.Fprintf(&buf, "asserts=%d fresh=%d pointers=%d\n\n", s.nasserts, s.freshID, s.pointers.Len())

	names := make([]string, 0, len(s.symbols))
	for name := range s.symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(&buf, "== SYMBOLS")
	for _, name := range names {
		fmt.Fprintf(&buf, "%s\n%s", name, spew.Sdump(s.symbols[name]))
	}
	return buf.String()
}
