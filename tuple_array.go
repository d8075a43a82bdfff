package strata

import "fmt"

// ArrayAST encodes an array of composite elements as a structure of arrays:
// one homogeneous, scalar-ranged array per field of the element type. The
// underlying solver dialect cannot express an array whose range is itself
// composite, so an N-element array of K-field tuples becomes K independent
// arrays of size N.
//
// Unlike tuples there is no lazy phase; every sub-array exists from
// construction. The one-shot stillFree flag permits a single Assign before
// the array is considered bound. Only fresh symbols are free: derived
// identities (Update and ITE results) are constructed already bound, since
// their sub-arrays carry constraints from the operands.
type ArrayAST struct {
	sort      *TupleSort // Type is always *ArrayType with a composite element
	name      string
	elements  []AST // one array per field of the element type
	stillFree bool
}

// newArrayAST allocates a fresh, unconstrained array-of-tuple symbol with
// one fresh sub-array per field, named "<name>.<member>".
func (s *Session) newArrayAST(sort *TupleSort, name string) (*ArrayAST, error) {
	arrType, ok := sort.Type.(*ArrayType)
	assert(ok, "array ast with non-array type: %s", sort.Type)

	def := s.typeDef(arrType.Elem)
	a := &ArrayAST{sort: sort, name: name, stillFree: true}
	a.elements = make([]AST, len(def.Members))
	for i, m := range def.Members {
		fieldName := name + "." + m.Name
		subType := &ArrayType{Elem: m.Type, Size: arrType.Size, Infinite: arrType.Infinite}

		switch {
		case IsTupleType(m.Type):
			subSort, err := s.convertSort(subType)
			if err != nil {
				return nil, err
			}
			elem, err := s.newArrayAST(subSort.(*TupleSort), fieldName)
			if err != nil {
				return nil, err
			}
			a.elements[i] = elem
		case IsTupleArrayType(m.Type):
			return nil, &UnsupportedError{Feature: "array of tuples containing arrays of tuples"}
		default:
			// Scalar field, or an array field whose index domain is
			// flattened into the enclosing array's domain by convertSort.
			subSort, err := s.convertSort(subType)
			if err != nil {
				return nil, err
			}
			term, err := s.backend.Symbol(fieldName, subSort)
			if err != nil {
				return nil, err
			}
			a.elements[i] = newScalarAST(subSort, term)
		}
	}
	return a, nil
}

// Sort returns the encoded sort of the value.
func (a *ArrayAST) Sort() Sort { return a.sort }

// Name returns the symbol name sub-arrays are derived from.
func (a *ArrayAST) Name() string { return a.name }

// String returns the string representation of the value.
func (a *ArrayAST) String() string { return a.name }

// StillFree returns true until the array receives its one permitted Assign.
func (a *ArrayAST) StillFree() bool { return a.stillFree }

// elemType returns the composite element type of the array.
func (a *ArrayAST) elemType() Type {
	return a.sort.Type.(*ArrayType).Elem
}

// Project returns the sub-array carrying the field at idx. Arrays have no
// lazy phase, so no materialization happens here.
func (a *ArrayAST) Project(s *Session, idx uint) (AST, error) {
	if int(idx) >= len(a.elements) {
		return nil, &ContractError{Op: "project", AST: a.name, Reason: "field index out of bounds"}
	}
	return a.elements[idx], nil
}

// Select reads the element at idx by selecting idx out of every field's
// sub-array and assembling the results into a fresh, already materialized
// tuple. The values exist as a byproduct of the selects, so there is
// nothing to defer.
func (a *ArrayAST) Select(s *Session, idx Expr) (AST, error) {
	elemSort, err := s.convertSort(a.elemType())
	if err != nil {
		return nil, err
	}

	result := newTupleAST(elemSort.(*TupleSort), s.freshName("tuple_array_select"))
	result.elements = make([]AST, len(a.elements))
	for i, sub := range a.elements {
		selected, err := sub.Select(s, idx)
		if err != nil {
			return nil, err
		}
		result.elements[i] = selected
	}
	return result, nil
}

// Update stores value at an index, which may be a constant idx or a general
// idxExpr. Every field is indexed and updated: the corresponding field is
// projected out of value and stored into that field's sub-array. The result
// is a fresh identity; the original is untouched.
func (a *ArrayAST) Update(s *Session, value AST, idx uint64, idxExpr Expr) (AST, error) {
	result := &ArrayAST{
		sort:     a.sort,
		name:     s.freshName("tuple_array_update"),
		elements: make([]AST, len(a.elements)),
	}
	for i, sub := range a.elements {
		fieldVal, err := value.Project(s, uint(i))
		if err != nil {
			return nil, err
		}
		updated, err := sub.Update(s, fieldVal, idx, idxExpr)
		if err != nil {
			return nil, err
		}
		result.elements[i] = updated
	}
	return result, nil
}

// Eq returns the conjunction of whole-sub-array equalities between a and
// other. The backend is assumed to support native equality over homogeneous
// scalar-ranged arrays, so no per-element expansion happens.
func (a *ArrayAST) Eq(s *Session, other AST) (AST, error) {
	b, ok := other.(*ArrayAST)
	if !ok {
		return nil, &ContractError{Op: "eq", AST: a.name, Reason: "tuple array compared against non-array"}
	}

	eqs := make([]AST, 0, len(a.elements))
	for i, sub := range a.elements {
		eq, err := sub.Eq(s, b.elements[i])
		if err != nil {
			return nil, err
		}
		eqs = append(eqs, eq)
	}
	return s.conjunct(eqs)
}

// ITE binds each field of a fresh identity to the if-then-else of the
// operands' whole sub-arrays.
func (a *ArrayAST) ITE(s *Session, cond, falseOp AST) (AST, error) {
	f, ok := falseOp.(*ArrayAST)
	if !ok {
		return nil, &ContractError{Op: "ite", AST: a.name, Reason: "tuple array switched against non-array"}
	}

	result := &ArrayAST{
		sort:     a.sort,
		name:     s.freshName("tuple_array_ite"),
		elements: make([]AST, len(a.elements)),
	}
	for i, sub := range a.elements {
		elem, err := sub.ITE(s, cond, f.elements[i])
		if err != nil {
			return nil, err
		}
		result.elements[i] = elem
	}
	return result, nil
}

// tupleArrayCreate encodes an explicit-element-list construction of an
// array of composites: a fresh array symbol updated once per index in
// ascending order. The size must be a compile-time constant; infinite
// arrays are returned as unconstrained placeholders with no stores.
func (s *Session) tupleArrayCreate(arrType *ArrayType, elems []AST) (AST, error) {
	sort, err := s.convertSort(arrType)
	if err != nil {
		return nil, err
	}
	sym, err := s.newArrayAST(sort.(*TupleSort), s.freshName("tuple_array_create"))
	if err != nil {
		return nil, err
	}
	if arrType.Infinite {
		// Guarantee nothing, this is modelling only.
		return sym, nil
	}
	size, err := arrType.ConstantSize()
	if err != nil {
		return nil, err
	}
	if uint64(len(elems)) != size {
		return nil, &ContractError{
			Op:     "array_create",
			AST:    sym.name,
			Reason: fmt.Sprintf("%d elements for declared size %d", len(elems), size),
		}
	}

	result := AST(sym)
	for i, elem := range elems {
		result, err = result.Update(s, elem, uint64(i), nil)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// tupleArrayOf encodes a repeated-initializer construction of an array of
// composites by broadcasting the initializer recursively per field.
func (s *Session) tupleArrayOf(arrType *ArrayType, init AST) (AST, error) {
	sort, err := s.convertSort(arrType)
	if err != nil {
		return nil, err
	}
	sym, err := s.newArrayAST(sort.(*TupleSort), s.freshName("tuple_array_of"))
	if err != nil {
		return nil, err
	}
	if arrType.Infinite {
		// Guarantee nothing, this is modelling only.
		return sym, nil
	}
	size, err := arrType.ConstantSize()
	if err != nil {
		return nil, err
	}

	if err := s.broadcast(sym, init, size); err != nil {
		return nil, err
	}
	sym.stillFree = false
	return sym, nil
}

// broadcast constrains every index of every field's sub-array to the
// corresponding field of init, recursing where a field is itself an array
// of composites.
func (s *Session) broadcast(arr *ArrayAST, init AST, size uint64) error {
	for i := range arr.elements {
		fieldVal, err := init.Project(s, uint(i))
		if err != nil {
			return err
		}

		switch sub := arr.elements[i].(type) {
		case *ArrayAST:
			if err := s.broadcast(sub, fieldVal, size); err != nil {
				return err
			}
		default:
			updated := arr.elements[i]
			for idx := uint64(0); idx < size; idx++ {
				updated, err = updated.Update(s, fieldVal, idx, nil)
				if err != nil {
					return err
				}
			}
			arr.elements[i] = updated
		}
	}
	return nil
}
