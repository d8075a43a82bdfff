package strata

import (
	"fmt"
	"strings"
)

// Value is a concrete value extracted from a satisfying model.
type Value interface {
	value()
	String() string
}

func (*IntValue) value()     {}
func (*BoolValue) value()    {}
func (*StructValue) value()  {}
func (*ArrayValue) value()   {}
func (*PointerValue) value() {}
func (*NoValue) value()      {}

// IntValue is a fixed-width integer model value.
type IntValue struct {
	Value  uint64
	Width  uint
	Signed bool
}

func (v *IntValue) String() string {
	if v.Signed {
		shift := 64 - v.Width
		return fmt.Sprintf("%d", int64(v.Value<<shift)>>shift)
	}
	return fmt.Sprintf("%d", v.Value)
}

// BoolValue is a boolean model value.
type BoolValue struct {
	Value bool
}

func (v *BoolValue) String() string {
	return fmt.Sprintf("%v", v.Value)
}

// StructValue is a struct or union model value, one field per member.
type StructValue struct {
	Type   *StructType
	Fields []Value
}

func (v *StructValue) String() string {
	var buf strings.Builder
	buf.WriteString("{")
	for i, f := range v.Fields {
		if i != 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s: %s", v.Type.Members[i].Name, f)
	}
	buf.WriteString("}")
	return buf.String()
}

// ArrayValue is a scalar array model value enumerated element by element.
type ArrayValue struct {
	Elems []Value
}

func (v *ArrayValue) String() string {
	var buf strings.Builder
	buf.WriteString("[")
	for i, e := range v.Elems {
		if i != 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(e.String())
	}
	buf.WriteString("]")
	return buf.String()
}

// PointerValue is a pointer model value translated through the provenance
// table back to the allocation it points into.
type PointerValue struct {
	Object *PointerObject
	Offset uint64
}

func (v *PointerValue) String() string {
	return fmt.Sprintf("&%s+%d", v.Object.Name, v.Offset)
}

// NoValue marks a component the model places no constraint on. Reading it
// is not an error; any value would satisfy the formula.
type NoValue struct{}

func (v *NoValue) String() string { return "?" }

// Readback extracts a concrete value for a from the current model. It is
// only valid after Check has returned a sat result.
func (s *Session) Readback(a AST) (Value, error) {
	switch a := a.(type) {
	case *ScalarAST:
		return s.readbackScalar(a)
	case *TupleAST:
		return s.readbackTuple(a)
	case *ArrayAST:
		return nil, &UnsupportedError{Feature: "tuple array readback"}
	default:
		panic("unreachable")
	}
}

func (s *Session) readbackScalar(a *ScalarAST) (Value, error) {
	switch sort := a.sort.(type) {
	case *BoolSort:
		v, err := s.backend.ValueBool(a.term)
		if err != nil {
			return nil, err
		}
		return &BoolValue{Value: v}, nil
	case *BVSort:
		v, err := s.backend.ValueBV(a.term)
		if err != nil {
			return nil, err
		}
		return &IntValue{Value: v, Width: sort.Width, Signed: sort.Signed}, nil
	case *ArraySort:
		return s.readbackArray(a, sort)
	default:
		panic("unreachable")
	}
}

// readbackArray enumerates a native array element by element. Enumeration
// is capped so that wide index domains stay tractable.
func (s *Session) readbackArray(a *ScalarAST, sort *ArraySort) (Value, error) {
	n := uint64(ArrayReadbackCap)
	if sort.DomainWidth < 64 {
		if max := uint64(1) << sort.DomainWidth; max < n {
			n = max
		}
	}

	idxSort := s.sorts.BV(sort.DomainWidth, false)
	elems := make([]Value, 0, n)
	for i := uint64(0); i < n; i++ {
		idx, err := s.backend.ConstBV(i, idxSort)
		if err != nil {
			return nil, err
		}
		elem, err := s.backend.Apply(SELECT, sort.Range, a.term, idx)
		if err != nil {
			return nil, err
		}
		v, err := s.readbackScalar(newScalarAST(sort.Range, elem))
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}
	return &ArrayValue{Elems: elems}, nil
}

func (s *Session) readbackTuple(a *TupleAST) (Value, error) {
	typ := s.typeDef(a.sort.Type)

	// Write-only values were never materialized; nothing constrains them.
	if !a.Materialized() {
		fields := make([]Value, len(typ.Members))
		for i := range fields {
			fields[i] = &NoValue{}
		}
		return &StructValue{Type: typ, Fields: fields}, nil
	}

	fields := make([]Value, len(a.elements))
	for i, elem := range a.elements {
		if _, ok := elem.(*ArrayAST); ok {
			fields[i] = &NoValue{}
			continue
		}
		v, err := s.Readback(elem)
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}

	if _, ok := a.sort.Type.(*PointerType); ok {
		return s.readbackPointer(a, fields)
	}
	return &StructValue{Type: typ, Fields: fields}, nil
}

// readbackPointer translates a {object_id, offset} pair through the
// provenance table.
func (s *Session) readbackPointer(a *TupleAST, fields []Value) (Value, error) {
	id, ok := fields[0].(*IntValue)
	if !ok {
		return &StructValue{Type: s.pointerStruct, Fields: fields}, nil
	}
	offset, ok := fields[1].(*IntValue)
	if !ok {
		return &StructValue{Type: s.pointerStruct, Fields: fields}, nil
	}

	obj := s.pointers.Lookup(id.Value)
	if obj == nil {
		return nil, fmt.Errorf("pointer %q resolves to unregistered object id %d", a.name, id.Value)
	}
	return &PointerValue{Object: obj, Offset: offset.Value}, nil
}
