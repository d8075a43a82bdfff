package strata

import (
	"bytes"
	"fmt"
	"math/bits"
)

// Type represents a program-level type of the input IR.
type Type interface {
	typ()
	String() string
}

func (*BoolType) typ()    {}
func (*IntType) typ()     {}
func (*ArrayType) typ()   {}
func (*StructType) typ()  {}
func (*PointerType) typ() {}

// BoolType represents a boolean program type.
type BoolType struct{}

// String returns the string representation of the type.
func (t *BoolType) String() string { return "bool" }

// IntType represents a fixed-width integer program type.
type IntType struct {
	Width  uint
	Signed bool
}

// String returns the string representation of the type.
func (t *IntType) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Width)
	}
	return fmt.Sprintf("uint%d", t.Width)
}

// ArrayType represents an array program type. Size is an expression carried
// over from the IR; only constant sizes can be encoded. Infinite marks an
// unbounded array used as an unconstrained modelling placeholder.
type ArrayType struct {
	Elem     Type
	Size     Expr
	Infinite bool
}

// String returns the string representation of the type.
func (t *ArrayType) String() string {
	if t.Infinite {
		return fmt.Sprintf("[inf]%s", t.Elem)
	}
	return fmt.Sprintf("[%s]%s", t.Size, t.Elem)
}

// ConstantSize returns the array size as a concrete value.
// Returns an UnsupportedError if the size expression is not constant.
func (t *ArrayType) ConstantSize() (uint64, error) {
	if t.Infinite {
		return 0, &UnsupportedError{Feature: "size of infinite array"}
	}
	size, ok := t.Size.(*ConstantExpr)
	if !ok {
		return 0, &UnsupportedError{Feature: "non-constant array size"}
	}
	return size.Value, nil
}

// Member represents one named field of a struct or union type.
type Member struct {
	Name string
	Type Type
}

// StructType represents a struct or union program type. Members are ordered;
// field indices used throughout the encoder refer to this order.
type StructType struct {
	Name    string
	Union   bool
	Members []Member
}

// String returns the string representation of the type.
func (t *StructType) String() string {
	var buf bytes.Buffer
	if t.Union {
		buf.WriteString("union ")
	} else {
		buf.WriteString("struct ")
	}
	buf.WriteString(t.Name)
	buf.WriteRune('{')
	for i, m := range t.Members {
		if i > 0 {
			buf.WriteRune(' ')
		}
		fmt.Fprintf(&buf, "%s:%s", m.Name, m.Type)
	}
	buf.WriteRune('}')
	return buf.String()
}

// PointerType represents a pointer program type. Every pointer is encoded as
// the fixed two-field tuple {object_id, offset} of machine word width,
// regardless of Elem.
type PointerType struct {
	Elem Type // pointed-to type; not consulted by the encoding
}

// String returns the string representation of the type.
func (t *PointerType) String() string {
	if t.Elem != nil {
		return fmt.Sprintf("*%s", t.Elem)
	}
	return "*void"
}

// IsTupleType returns true if typ is encoded as a tuple: structs, unions,
// and pointers.
func IsTupleType(typ Type) bool {
	switch typ.(type) {
	case *StructType, *PointerType:
		return true
	default:
		return false
	}
}

// IsTupleArrayType returns true if typ is an array whose element type is
// encoded as a tuple.
func IsTupleArrayType(typ Type) bool {
	t, ok := typ.(*ArrayType)
	return ok && IsTupleType(t.Elem)
}

// TypesEqual returns true if a and b are structurally equal.
func TypesEqual(a, b Type) bool {
	switch a := a.(type) {
	case *BoolType:
		_, ok := b.(*BoolType)
		return ok
	case *IntType:
		b, ok := b.(*IntType)
		return ok && a.Width == b.Width && a.Signed == b.Signed
	case *ArrayType:
		b, ok := b.(*ArrayType)
		if !ok || a.Infinite != b.Infinite || !TypesEqual(a.Elem, b.Elem) {
			return false
		}
		if a.Infinite {
			return true
		}
		x, xok := a.Size.(*ConstantExpr)
		y, yok := b.Size.(*ConstantExpr)
		return xok && yok && x.Value == y.Value
	case *StructType:
		b, ok := b.(*StructType)
		if !ok || a.Union != b.Union || len(a.Members) != len(b.Members) {
			return false
		}
		for i := range a.Members {
			if a.Members[i].Name != b.Members[i].Name || !TypesEqual(a.Members[i].Type, b.Members[i].Type) {
				return false
			}
		}
		return true
	case *PointerType:
		_, ok := b.(*PointerType)
		return ok // all pointers share one encoding
	default:
		panic("unreachable")
	}
}

// domainWidth returns the bit width needed to address every element of an
// array of the given size. Infinite arrays use the machine word width.
func domainWidth(size uint64, infinite bool) uint {
	if infinite {
		return WidthPtr
	}
	if size <= 1 {
		return 1
	}
	return uint(bits.Len64(size - 1))
}

// flattenArrayType collapses nested array types into a single array over a
// combined index domain. The total element count is the product of the
// nesting levels' sizes; non-uniform nesting beyond that is not handled.
// Returns the flattened type and the combined element count.
func flattenArrayType(typ *ArrayType) (*ArrayType, uint64, error) {
	elem := Type(typ)
	total := uint64(1)
	infinite := false
	for {
		at, ok := elem.(*ArrayType)
		if !ok {
			break
		}
		if at.Infinite {
			infinite = true
		} else {
			size, err := at.ConstantSize()
			if err != nil {
				return nil, 0, err
			}
			total *= size
		}
		elem = at.Elem
	}

	flat := &ArrayType{
		Elem:     elem,
		Size:     NewConstantExpr(total, &IntType{Width: Width64}),
		Infinite: infinite,
	}
	return flat, total, nil
}
