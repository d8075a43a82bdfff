package strata

import (
	"bytes"
	"fmt"
)

// Expr represents a node of the typed IR consumed by the encoder. The tree
// is assumed well-typed by the producing frontend; the encoder re-checks
// only the contracts it depends on.
type Expr interface {
	expr()
	Type() Type
	String() string
}

func (*ConstantExpr) expr()     {}
func (*SymbolExpr) expr()       {}
func (*BinaryExpr) expr()       {}
func (*NotExpr) expr()          {}
func (*CastExpr) expr()         {}
func (*IteExpr) expr()          {}
func (*IndexExpr) expr()        {}
func (*StoreExpr) expr()        {}
func (*MemberExpr) expr()       {}
func (*MemberUpdateExpr) expr() {}
func (*StructExpr) expr()       {}
func (*UnionExpr) expr()        {}
func (*ArrayExpr) expr()        {}
func (*ArrayOfExpr) expr()      {}

// ConstantExpr represents a boolean or fixed-width integer literal.
type ConstantExpr struct {
	Value uint64
	Typ   Type
}

// NewConstantExpr returns a new instance of ConstantExpr.
// The value is masked to the width of typ.
func NewConstantExpr(value uint64, typ Type) *ConstantExpr {
	if t, ok := typ.(*IntType); ok && t.Width < 64 {
		value &= (1 << t.Width) - 1
	}
	return &ConstantExpr{Value: value, Typ: typ}
}

// NewBoolConstantExpr returns a boolean literal expression.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return &ConstantExpr{Value: 1, Typ: &BoolType{}}
	}
	return &ConstantExpr{Value: 0, Typ: &BoolType{}}
}

// Type returns the type of the expression.
func (e *ConstantExpr) Type() Type { return e.Typ }

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string { return fmt.Sprintf("(const %d %s)", e.Value, e.Typ) }

// SymbolExpr represents a named program variable. Pointer-typed symbols
// named "NULL", "0", or "INVALID" resolve to the session's canonical
// pointer values.
type SymbolExpr struct {
	Name string
	Typ  Type
}

// NewSymbolExpr returns a new instance of SymbolExpr.
func NewSymbolExpr(name string, typ Type) *SymbolExpr {
	return &SymbolExpr{Name: name, Typ: typ}
}

// Type returns the type of the expression.
func (e *SymbolExpr) Type() Type { return e.Typ }

// String returns the string representation of the expression.
func (e *SymbolExpr) String() string { return fmt.Sprintf("(sym %s %s)", e.Name, e.Typ) }

// BinaryExpr represents an operation on two expressions. EQ may be applied
// to operands of any type, including composites; all other operators take
// scalar operands.
type BinaryExpr struct {
	Op  Op
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns a new instance of BinaryExpr.
func NewBinaryExpr(op Op, lhs, rhs Expr) *BinaryExpr {
	assert(op.IsArithmetic() || op.IsCompare(), "invalid binary op: %s", op)
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// NewEqExpr returns an equality expression over lhs & rhs.
func NewEqExpr(lhs, rhs Expr) *BinaryExpr {
	return &BinaryExpr{Op: EQ, LHS: lhs, RHS: rhs}
}

// Type returns the type of the expression.
func (e *BinaryExpr) Type() Type {
	if e.Op.IsCompare() {
		return &BoolType{}
	}
	return e.LHS.Type()
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// NotExpr represents a boolean or bitwise negation.
type NotExpr struct {
	X Expr
}

// NewNotExpr returns a new instance of NotExpr.
func NewNotExpr(x Expr) *NotExpr { return &NotExpr{X: x} }

// Type returns the type of the expression.
func (e *NotExpr) Type() Type { return e.X.Type() }

// String returns the string representation of the expression.
func (e *NotExpr) String() string { return fmt.Sprintf("(not %s)", e.X) }

// CastExpr represents a width change of an integer expression.
type CastExpr struct {
	Src    Expr
	Width  uint
	Signed bool
}

// NewCastExpr returns a new instance of CastExpr.
func NewCastExpr(src Expr, width uint, signed bool) *CastExpr {
	return &CastExpr{Src: src, Width: width, Signed: signed}
}

// Type returns the type of the expression.
func (e *CastExpr) Type() Type { return &IntType{Width: e.Width, Signed: e.Signed} }

// String returns the string representation of the expression.
func (e *CastExpr) String() string {
	if e.Signed {
		return fmt.Sprintf("(sext %s %d)", e.Src, e.Width)
	}
	return fmt.Sprintf("(zext %s %d)", e.Src, e.Width)
}

// IteExpr represents a conditional selection between two values of the same
// type. Composite branches are lowered field-by-field during encoding.
type IteExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// NewIteExpr returns a new instance of IteExpr.
func NewIteExpr(cond, then, els Expr) *IteExpr {
	return &IteExpr{Cond: cond, Then: then, Else: els}
}

// Type returns the type of the expression.
func (e *IteExpr) Type() Type { return e.Then.Type() }

// String returns the string representation of the expression.
func (e *IteExpr) String() string {
	return fmt.Sprintf("(ite %s %s %s)", e.Cond, e.Then, e.Else)
}

// IndexExpr represents reading one element of an array.
type IndexExpr struct {
	Array Expr
	Index Expr
}

// NewIndexExpr returns a new instance of IndexExpr.
func NewIndexExpr(array, index Expr) *IndexExpr {
	return &IndexExpr{Array: array, Index: index}
}

// Type returns the type of the expression.
func (e *IndexExpr) Type() Type {
	t, ok := e.Array.Type().(*ArrayType)
	assert(ok, "index of non-array type: %s", e.Array.Type())
	return t.Elem
}

// String returns the string representation of the expression.
func (e *IndexExpr) String() string {
	return fmt.Sprintf("(index %s %s)", e.Array, e.Index)
}

// StoreExpr represents a non-destructive element update of an array.
// The index may be a fully general expression.
type StoreExpr struct {
	Array Expr
	Index Expr
	Value Expr
}

// NewStoreExpr returns a new instance of StoreExpr.
func NewStoreExpr(array, index, value Expr) *StoreExpr {
	return &StoreExpr{Array: array, Index: index, Value: value}
}

// Type returns the type of the expression.
func (e *StoreExpr) Type() Type { return e.Array.Type() }

// String returns the string representation of the expression.
func (e *StoreExpr) String() string {
	return fmt.Sprintf("(store %s %s %s)", e.Array, e.Index, e.Value)
}

// MemberExpr represents projecting a field out of a struct or union value.
// The field index must be a compile-time constant.
type MemberExpr struct {
	X     Expr
	Index uint
}

// NewMemberExpr returns a new instance of MemberExpr.
func NewMemberExpr(x Expr, index uint) *MemberExpr {
	return &MemberExpr{X: x, Index: index}
}

// Type returns the type of the expression.
func (e *MemberExpr) Type() Type {
	st, ok := e.X.Type().(*StructType)
	assert(ok, "member of non-struct type: %s", e.X.Type())
	assert(int(e.Index) < len(st.Members), "member index out of bounds: %d", e.Index)
	return st.Members[e.Index].Type
}

// String returns the string representation of the expression.
func (e *MemberExpr) String() string {
	return fmt.Sprintf("(member %s %d)", e.X, e.Index)
}

// MemberUpdateExpr represents a non-destructive field replacement of a
// struct or union value.
type MemberUpdateExpr struct {
	X     Expr
	Index uint
	Value Expr
}

// NewMemberUpdateExpr returns a new instance of MemberUpdateExpr.
func NewMemberUpdateExpr(x Expr, index uint, value Expr) *MemberUpdateExpr {
	return &MemberUpdateExpr{X: x, Index: index, Value: value}
}

// Type returns the type of the expression.
func (e *MemberUpdateExpr) Type() Type { return e.X.Type() }

// String returns the string representation of the expression.
func (e *MemberUpdateExpr) String() string {
	return fmt.Sprintf("(member-update %s %d %s)", e.X, e.Index, e.Value)
}

// StructExpr represents a struct literal with one value per member, in
// declared member order.
type StructExpr struct {
	Typ    *StructType
	Fields []Expr
}

// NewStructExpr returns a new instance of StructExpr.
func NewStructExpr(typ *StructType, fields ...Expr) *StructExpr {
	assert(len(fields) == len(typ.Members), "struct literal field count mismatch: %d != %d", len(fields), len(typ.Members))
	return &StructExpr{Typ: typ, Fields: fields}
}

// Type returns the type of the expression.
func (e *StructExpr) Type() Type { return e.Typ }

// String returns the string representation of the expression.
func (e *StructExpr) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "(struct %s", e.Typ.Name)
	for _, f := range e.Fields {
		buf.WriteRune(' ')
		buf.WriteString(f.String())
	}
	buf.WriteRune(')')
	return buf.String()
}

// UnionExpr represents a union literal. Exactly one initializer is legal;
// supplying more is a contract violation reported during encoding.
type UnionExpr struct {
	Typ   *StructType
	Inits []Expr
}

// NewUnionExpr returns a new instance of UnionExpr.
func NewUnionExpr(typ *StructType, inits ...Expr) *UnionExpr {
	return &UnionExpr{Typ: typ, Inits: inits}
}

// Type returns the type of the expression.
func (e *UnionExpr) Type() Type { return e.Typ }

// String returns the string representation of the expression.
func (e *UnionExpr) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "(union %s", e.Typ.Name)
	for _, f := range e.Inits {
		buf.WriteRune(' ')
		buf.WriteString(f.String())
	}
	buf.WriteRune(')')
	return buf.String()
}

// ArrayExpr represents an array literal with one value per element, in
// ascending index order.
type ArrayExpr struct {
	Typ   *ArrayType
	Elems []Expr
}

// NewArrayExpr returns a new instance of ArrayExpr.
func NewArrayExpr(typ *ArrayType, elems ...Expr) *ArrayExpr {
	return &ArrayExpr{Typ: typ, Elems: elems}
}

// Type returns the type of the expression.
func (e *ArrayExpr) Type() Type { return e.Typ }

// String returns the string representation of the expression.
func (e *ArrayExpr) String() string {
	var buf bytes.Buffer
	buf.WriteString("(array")
	for _, el := range e.Elems {
		buf.WriteRune(' ')
		buf.WriteString(el.String())
	}
	buf.WriteRune(')')
	return buf.String()
}

// ArrayOfExpr represents a repeated-initializer array construction: every
// element of the array holds Init. Nested arrays of this form are flattened
// into a single combined index domain during encoding.
type ArrayOfExpr struct {
	Typ  *ArrayType
	Init Expr
}

// NewArrayOfExpr returns a new instance of ArrayOfExpr.
func NewArrayOfExpr(typ *ArrayType, init Expr) *ArrayOfExpr {
	return &ArrayOfExpr{Typ: typ, Init: init}
}

// Type returns the type of the expression.
func (e *ArrayOfExpr) Type() Type { return e.Typ }

// String returns the string representation of the expression.
func (e *ArrayOfExpr) String() string {
	return fmt.Sprintf("(array-of %s %s)", e.Typ, e.Init)
}
