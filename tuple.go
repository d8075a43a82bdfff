package strata

// TupleAST encodes a struct, union, or pointer value as a named symbol that
// per-field values hang off. Fields are materialized lazily: a tuple that is
// only assigned into or passed through never allocates field symbols, which
// bounds symbol growth across declared-but-unread variables.
//
// The element list is either empty (unmaterialized) or holds exactly one
// entry per declared member. Materialization is one-way; entries are only
// rebound wholesale by Session.Assign while the list is still empty.
type TupleAST struct {
	sort     *TupleSort
	name     string
	elements []AST
}

func newTupleAST(sort *TupleSort, name string) *TupleAST {
	return &TupleAST{sort: sort, name: name}
}

// Sort returns the encoded sort of the value.
func (a *TupleAST) Sort() Sort { return a.sort }

// Name returns the symbol name fields are derived from.
func (a *TupleAST) Name() string { return a.name }

// String returns the string representation of the value.
func (a *TupleAST) String() string { return a.name }

// Materialized returns true once field symbols have been allocated.
func (a *TupleAST) Materialized() bool { return len(a.elements) != 0 }

// materialize allocates one fresh child identity per declared member, named
// "<name>.<member>". No-op if the tuple is already materialized.
func (a *TupleAST) materialize(s *Session) error {
	if len(a.elements) != 0 {
		return nil
	}

	def := s.typeDef(a.sort.Type)
	a.elements = make([]AST, len(def.Members))
	for i, m := range def.Members {
		fieldName := a.name + "." + m.Name
		sort, err := s.convertSort(m.Type)
		if err != nil {
			return err
		}

		switch {
		case IsTupleType(m.Type):
			a.elements[i] = newTupleAST(sort.(*TupleSort), fieldName)
		case IsTupleArrayType(m.Type):
			elem, err := s.newArrayAST(sort.(*TupleSort), fieldName)
			if err != nil {
				return err
			}
			a.elements[i] = elem
		default:
			term, err := s.backend.Symbol(fieldName, sort)
			if err != nil {
				return err
			}
			a.elements[i] = newScalarAST(sort, term)
		}
	}
	return nil
}

// Project materializes the tuple and returns the field at idx.
func (a *TupleAST) Project(s *Session, idx uint) (AST, error) {
	if err := a.materialize(s); err != nil {
		return nil, err
	}
	if int(idx) >= len(a.elements) {
		return nil, &ContractError{Op: "project", AST: a.name, Reason: "field index out of bounds"}
	}
	return a.elements[idx], nil
}

// Eq returns the conjunction of per-field equalities between a and other,
// recursing into nested composites.
func (a *TupleAST) Eq(s *Session, other AST) (AST, error) {
	b, ok := other.(*TupleAST)
	if !ok {
		return nil, &ContractError{Op: "eq", AST: a.name, Reason: "tuple compared against non-tuple"}
	}
	if err := a.materialize(s); err != nil {
		return nil, err
	}
	if err := b.materialize(s); err != nil {
		return nil, err
	}

	def := s.typeDef(a.sort.Type)
	eqs := make([]AST, 0, len(def.Members))
	for i := range def.Members {
		side1, err := a.Project(s, uint(i))
		if err != nil {
			return nil, err
		}
		side2, err := b.Project(s, uint(i))
		if err != nil {
			return nil, err
		}
		eq, err := side1.Eq(s, side2)
		if err != nil {
			return nil, err
		}
		eqs = append(eqs, eq)
	}
	return s.conjunct(eqs)
}

// ITE allocates a brand-new tuple identity and binds each of its fields to
// the if-then-else of the operands' corresponding fields. Backends without
// native tuple support cannot switch a composite in one operation, so the
// conditional is pushed down to every leaf.
func (a *TupleAST) ITE(s *Session, cond, falseOp AST) (AST, error) {
	f, ok := falseOp.(*TupleAST)
	if !ok {
		return nil, &ContractError{Op: "ite", AST: a.name, Reason: "tuple switched against non-tuple"}
	}
	if err := a.materialize(s); err != nil {
		return nil, err
	}
	if err := f.materialize(s); err != nil {
		return nil, err
	}

	result := newTupleAST(a.sort, s.freshName("tuple_ite"))
	def := s.typeDef(a.sort.Type)
	result.elements = make([]AST, len(def.Members))
	for i := range def.Members {
		truePart, err := a.Project(s, uint(i))
		if err != nil {
			return nil, err
		}
		falsePart, err := f.Project(s, uint(i))
		if err != nil {
			return nil, err
		}
		elem, err := truePart.ITE(s, cond, falsePart)
		if err != nil {
			return nil, err
		}
		result.elements[i] = elem
	}
	return result, nil
}

// Update returns a fresh tuple identity equal to a with the field at idx
// replaced by value. The original is untouched: it may still be referenced
// elsewhere, e.g. inside an array-of-tuples transpose. The field index must
// be a compile-time constant; symbolic field selection is not a legal
// operation on a structurally typed value.
func (a *TupleAST) Update(s *Session, value AST, idx uint64, idxExpr Expr) (AST, error) {
	if idxExpr != nil {
		return nil, &ContractError{Op: "update", AST: a.name, Reason: "non-constant field index applied to tuple"}
	}
	if err := a.materialize(s); err != nil {
		return nil, err
	}
	if int(idx) >= len(a.elements) {
		return nil, &ContractError{Op: "update", AST: a.name, Reason: "field index out of bounds"}
	}

	result := newTupleAST(a.sort, s.freshName("tuple_update"))
	result.elements = make([]AST, len(a.elements))
	copy(result.elements, a.elements)
	result.elements[idx] = value
	return result, nil
}

// Select fails: a tuple is not indexable.
func (a *TupleAST) Select(s *Session, idx Expr) (AST, error) {
	return nil, &ContractError{Op: "select", AST: a.name, Reason: "select applied to tuple"}
}

// tupleCreate encodes a struct literal as an eagerly materialized tuple:
// each field is converted and bound directly into a fresh identity.
func (s *Session) tupleCreate(expr *StructExpr) (AST, error) {
	sort, err := s.convertSort(expr.Typ)
	if err != nil {
		return nil, err
	}

	result := newTupleAST(sort.(*TupleSort), s.freshName("tuple_create"))
	result.elements = make([]AST, len(expr.Fields))
	for i, field := range expr.Fields {
		elem, err := s.Convert(field)
		if err != nil {
			return nil, err
		}
		result.elements[i] = elem
	}
	return result, nil
}

// unionCreate encodes a union literal. Exactly one initializer is accepted;
// each member whose type structurally matches it is constrained equal to it,
// and every other member is left as an unconstrained fresh symbol. There is
// no discriminator tag: reading a member other than the one last written
// yields a don't-care value.
func (s *Session) unionCreate(expr *UnionExpr) (AST, error) {
	if len(expr.Inits) != 1 {
		return nil, &ContractError{Op: "union_create", AST: expr.Typ.Name, Reason: "union initializer must have exactly one member"}
	}
	init := expr.Inits[0]
	initAST, err := s.Convert(init)
	if err != nil {
		return nil, err
	}

	sort, err := s.convertSort(expr.Typ)
	if err != nil {
		return nil, err
	}
	result := newTupleAST(sort.(*TupleSort), s.freshName("union_create"))
	if err := result.materialize(s); err != nil {
		return nil, err
	}

	for i, m := range expr.Typ.Members {
		if !TypesEqual(m.Type, init.Type()) {
			continue
		}
		member, err := result.Project(s, uint(i))
		if err != nil {
			return nil, err
		}
		eq, err := member.Eq(s, initAST)
		if err != nil {
			return nil, err
		}
		if err := s.Assert(eq); err != nil {
			return nil, err
		}
		result.elements[i] = initAST
	}
	return result, nil
}

// tupleFresh returns a brand-new unconstrained composite of the given sort.
// Array-typed tuple sorts produce an ArrayAST, everything else a TupleAST.
func (s *Session) tupleFresh(sort *TupleSort, name string) (AST, error) {
	if name == "" {
		name = s.freshName("tuple_fresh")
	}
	if _, ok := sort.Type.(*ArrayType); ok {
		return s.newArrayAST(sort, name)
	}
	return newTupleAST(sort, name), nil
}

// typeDef returns the struct definition behind a composite type. Pointers
// resolve to the session's fixed {object_id, offset} definition.
func (s *Session) typeDef(typ Type) *StructType {
	switch typ := typ.(type) {
	case *PointerType:
		return s.pointerStruct
	case *StructType:
		return typ
	default:
		panic("unreachable")
	}
}
