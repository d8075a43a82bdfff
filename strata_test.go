package strata_test

import (
	"fmt"
	"testing"

	"github.com/benbjohnson/strata"
)

// mockBackend records every solver interaction as an in-memory term tree so
// tests can inspect the exact shape of what the engine emits. Values for
// readback are provided through the values map, keyed by symbol name or by
// "name[index]" for array elements.
type mockBackend struct {
	symbols map[string]*mockTerm
	asserts []*mockTerm
	status  strata.Status
	values  map[string]uint64
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		symbols: make(map[string]*mockTerm),
		status:  strata.StatusSat,
		values:  make(map[string]uint64),
	}
}

func (b *mockBackend) Symbol(name string, sort strata.Sort) (strata.Term, error) {
	key := fmt.Sprintf("%s %s", name, sort)
	if t, ok := b.symbols[key]; ok {
		return t, nil
	}
	t := &mockTerm{kind: "sym", name: name, sort: sort}
	b.symbols[key] = t
	return t, nil
}

func (b *mockBackend) ConstBV(value uint64, sort strata.Sort) (strata.Term, error) {
	return &mockTerm{kind: "bv", value: value, sort: sort}, nil
}

func (b *mockBackend) ConstBool(value bool) (strata.Term, error) {
	var v uint64
	if value {
		v = 1
	}
	return &mockTerm{kind: "bool", value: v}, nil
}

func (b *mockBackend) Apply(op strata.Op, sort strata.Sort, args ...strata.Term) (strata.Term, error) {
	t := &mockTerm{kind: "apply", op: op, sort: sort}
	for _, arg := range args {
		t.args = append(t.args, arg.(*mockTerm))
	}
	return t, nil
}

func (b *mockBackend) Extract(t strata.Term, offset, width uint) (strata.Term, error) {
	return &mockTerm{kind: "extract", value: uint64(offset)<<32 | uint64(width), args: []*mockTerm{t.(*mockTerm)}}, nil
}

func (b *mockBackend) Assert(t strata.Term) error {
	b.asserts = append(b.asserts, t.(*mockTerm))
	return nil
}

func (b *mockBackend) Check() (strata.Status, error) {
	return b.status, nil
}

func (b *mockBackend) ValueBV(t strata.Term) (uint64, error) {
	return b.eval(t.(*mockTerm))
}

func (b *mockBackend) ValueBool(t strata.Term) (bool, error) {
	v, err := b.eval(t.(*mockTerm))
	return v != 0, err
}

// eval computes a concrete value for a term, walking store chains for
// constant indices the way a solver model would.
func (b *mockBackend) eval(t *mockTerm) (uint64, error) {
	switch t.kind {
	case "bv", "bool":
		return t.value, nil
	case "sym":
		return b.values[t.name], nil
	case "apply":
		if t.op != strata.SELECT {
			return 0, fmt.Errorf("mock: eval of %s", t.op)
		}
		idx, err := b.eval(t.args[1])
		if err != nil {
			return 0, err
		}
		arr := t.args[0]
		for arr.kind == "apply" && arr.op == strata.STORE {
			storeIdx, err := b.eval(arr.args[1])
			if err != nil {
				return 0, err
			}
			if storeIdx == idx {
				return b.eval(arr.args[2])
			}
			arr = arr.args[0]
		}
		if arr.kind == "sym" {
			return b.values[fmt.Sprintf("%s[%d]", arr.name, idx)], nil
		}
		return 0, fmt.Errorf("mock: eval of select base %q", arr.kind)
	default:
		return 0, fmt.Errorf("mock: eval of %q", t.kind)
	}
}

// mockTerm is one node of the recorded term tree.
type mockTerm struct {
	kind  string // "sym", "bv", "bool", "apply", "extract"
	name  string
	op    strata.Op
	sort  strata.Sort
	value uint64
	args  []*mockTerm
}

func (t *mockTerm) String() string {
	switch t.kind {
	case "sym":
		return t.name
	case "bv", "bool":
		return fmt.Sprintf("%d", t.value)
	case "apply":
		s := "(" + t.op.String()
		for _, arg := range t.args {
			s += " " + arg.String()
		}
		return s + ")"
	case "extract":
		return fmt.Sprintf("(extract %s)", t.args[0])
	default:
		return t.kind
	}
}

// storeDepth counts the stores stacked on top of a term's base symbol.
func storeDepth(t *mockTerm) int {
	n := 0
	for t.kind == "apply" && t.op == strata.STORE {
		n++
		t = t.args[0]
	}
	return n
}

// Commonly used test types.
func u8Type() *strata.IntType  { return &strata.IntType{Width: strata.Width8} }
func u32Type() *strata.IntType { return &strata.IntType{Width: strata.Width32} }
func u64Type() *strata.IntType { return &strata.IntType{Width: strata.Width64} }

func pointType() *strata.StructType {
	return &strata.StructType{
		Name: "point",
		Members: []strata.Member{
			{Name: "x", Type: u32Type()},
			{Name: "y", Type: u32Type()},
		},
	}
}

func arrayType(elem strata.Type, size uint64) *strata.ArrayType {
	return &strata.ArrayType{Elem: elem, Size: strata.NewConstantExpr(size, u64Type())}
}

// MustConvert converts expr or fails the test.
func MustConvert(tb testing.TB, s *strata.Session, expr strata.Expr) strata.AST {
	tb.Helper()
	ast, err := s.Convert(expr)
	if err != nil {
		tb.Fatal(err)
	}
	return ast
}

// MustProject projects the field at idx or fails the test.
func MustProject(tb testing.TB, s *strata.Session, a strata.AST, idx uint) strata.AST {
	tb.Helper()
	elem, err := a.Project(s, idx)
	if err != nil {
		tb.Fatal(err)
	}
	return elem
}
