package z3_test

import (
	"testing"

	"github.com/benbjohnson/strata"
	"github.com/benbjohnson/strata/z3"
)

func TestBackend_Check(t *testing.T) {
	t.Run("True", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)

		term, err := b.ConstBool(true)
		if err != nil {
			t.Fatal(err)
		}
		if err := b.Assert(term); err != nil {
			t.Fatal(err)
		}
		if status, err := b.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusSat {
			t.Fatalf("status=%s, want sat", status)
		}
	})

	t.Run("False", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)

		term, err := b.ConstBool(false)
		if err != nil {
			t.Fatal(err)
		}
		if err := b.Assert(term); err != nil {
			t.Fatal(err)
		}
		if status, err := b.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusUnsat {
			t.Fatalf("status=%s, want unsat", status)
		}
	})
}

func TestSession_Tuple(t *testing.T) {
	t.Run("EqSat", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)
		s := strata.NewSession(b)

		point := pointType()
		sym := strata.NewSymbolExpr("b", point)
		MustAssertExpr(t, s, strata.NewEqExpr(sym, pointLit(point, 3, 5)))

		if status, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusSat {
			t.Fatalf("status=%s, want sat", status)
		}

		v, err := s.Readback(MustConvert(t, s, sym))
		if err != nil {
			t.Fatal(err)
		}
		if got, want := v.String(), "{x: 3, y: 5}"; got != want {
			t.Fatalf("value=%q, want %q", got, want)
		}
	})

	t.Run("EqUnsat", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)
		s := strata.NewSession(b)

		point := pointType()
		sym := strata.NewSymbolExpr("b", point)
		MustAssertExpr(t, s, strata.NewEqExpr(sym, pointLit(point, 3, 5)))
		MustAssertExpr(t, s, strata.NewEqExpr(sym, pointLit(point, 3, 6)))

		if status, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusUnsat {
			t.Fatalf("status=%s, want unsat", status)
		}
	})

	t.Run("IteCondTrue", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)
		s := strata.NewSession(b)

		point := pointType()
		cond := strata.NewSymbolExpr("c", &strata.BoolType{})
		sym := strata.NewSymbolExpr("r", point)
		ite := strata.NewIteExpr(cond, pointLit(point, 1, 2), pointLit(point, 3, 4))

		MustAssertExpr(t, s, strata.NewEqExpr(sym, ite))
		MustAssertExpr(t, s, cond)

		if status, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusSat {
			t.Fatalf("status=%s, want sat", status)
		}
		v, err := s.Readback(MustConvert(t, s, sym))
		if err != nil {
			t.Fatal(err)
		}
		if got, want := v.String(), "{x: 1, y: 2}"; got != want {
			t.Fatalf("value=%q, want %q", got, want)
		}
	})

	t.Run("IteCondFalse", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)
		s := strata.NewSession(b)

		point := pointType()
		cond := strata.NewSymbolExpr("c", &strata.BoolType{})
		sym := strata.NewSymbolExpr("r", point)
		ite := strata.NewIteExpr(cond, pointLit(point, 1, 2), pointLit(point, 3, 4))

		MustAssertExpr(t, s, strata.NewEqExpr(sym, ite))
		MustAssertExpr(t, s, strata.NewNotExpr(cond))

		if status, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusSat {
			t.Fatalf("status=%s, want sat", status)
		}
		v, err := s.Readback(MustConvert(t, s, sym))
		if err != nil {
			t.Fatal(err)
		}
		if got, want := v.String(), "{x: 3, y: 4}"; got != want {
			t.Fatalf("value=%q, want %q", got, want)
		}
	})
}

func TestSession_TupleArray(t *testing.T) {
	t.Run("UpdateSelectSat", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)
		s := strata.NewSession(b)

		point := pointType()
		arrType := &strata.ArrayType{Elem: point, Size: u64Const(4)}
		arr := strata.NewStoreExpr(
			strata.NewArrayOfExpr(arrType, pointLit(point, 1, 2)),
			u64Const(2),
			pointLit(point, 7, 8),
		)

		// Updated index holds the new element, untouched index the broadcast.
		MustAssertExpr(t, s, strata.NewEqExpr(
			strata.NewIndexExpr(arr, u64Const(2)),
			pointLit(point, 7, 8),
		))
		MustAssertExpr(t, s, strata.NewEqExpr(
			strata.NewIndexExpr(arr, u64Const(1)),
			pointLit(point, 1, 2),
		))

		if status, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusSat {
			t.Fatalf("status=%s, want sat", status)
		}
	})

	t.Run("UpdateSelectUnsat", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)
		s := strata.NewSession(b)

		point := pointType()
		arrType := &strata.ArrayType{Elem: point, Size: u64Const(4)}
		arr := strata.NewStoreExpr(
			strata.NewArrayOfExpr(arrType, pointLit(point, 1, 2)),
			u64Const(2),
			pointLit(point, 7, 8),
		)

		MustAssertExpr(t, s, strata.NewEqExpr(
			strata.NewIndexExpr(arr, u64Const(2)),
			pointLit(point, 1, 2),
		))

		if status, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusUnsat {
			t.Fatalf("status=%s, want unsat", status)
		}
	})

	t.Run("SymbolicIndex", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)
		s := strata.NewSession(b)

		point := pointType()
		arrType := &strata.ArrayType{Elem: point, Size: u64Const(4)}
		arr := strata.NewArrayOfExpr(arrType, pointLit(point, 1, 2))
		idx := strata.NewSymbolExpr("i", &strata.IntType{Width: 2})

		// Every index of the broadcast holds the initializer.
		MustAssertExpr(t, s, strata.NewEqExpr(
			strata.NewIndexExpr(arr, idx),
			pointLit(point, 1, 2),
		))
		if status, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusSat {
			t.Fatalf("status=%s, want sat", status)
		}
	})

	t.Run("SymbolicIndexStore", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)
		s := strata.NewSession(b)

		point := pointType()
		arrType := &strata.ArrayType{Elem: point, Size: u64Const(4)}
		idx := strata.NewSymbolExpr("i", &strata.IntType{Width: 2})
		arr := strata.NewStoreExpr(
			strata.NewSymbolExpr("pts", arrType),
			idx,
			pointLit(point, 7, 8),
		)

		// Selecting at the stored index yields the stored element, whatever
		// index the model picks.
		MustAssertExpr(t, s, strata.NewEqExpr(
			strata.NewIndexExpr(arr, idx),
			pointLit(point, 7, 8),
		))
		if status, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusSat {
			t.Fatalf("status=%s, want sat", status)
		}
	})

	t.Run("EqReflexive", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)
		s := strata.NewSession(b)

		point := pointType()
		arrType := &strata.ArrayType{Elem: point, Size: u64Const(4)}
		sym := strata.NewSymbolExpr("pts", arrType)

		MustAssertExpr(t, s, strata.NewEqExpr(sym, sym))
		if status, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusSat {
			t.Fatalf("status=%s, want sat", status)
		}
	})
}

func TestSession_Pointer(t *testing.T) {
	t.Run("Provenance", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)
		s := strata.NewSession(b)
		s.Pointers().Register(2, "buf", 16)

		p := MustConvert(t, s, strata.NewSymbolExpr("p", &strata.PointerType{}))
		wordType := &strata.IntType{Width: strata.WidthPtr}

		constrain := func(field uint, value uint64) {
			t.Helper()
			f, err := p.Project(s, field)
			if err != nil {
				t.Fatal(err)
			}
			c := MustConvert(t, s, strata.NewConstantExpr(value, wordType))
			eq, err := f.Eq(s, c)
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Assert(eq); err != nil {
				t.Fatal(err)
			}
		}
		constrain(0, 2)
		constrain(1, 4)

		if status, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusSat {
			t.Fatalf("status=%s, want sat", status)
		}

		v, err := s.Readback(p)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := v.String(), "&buf+4"; got != want {
			t.Fatalf("value=%q, want %q", got, want)
		}
	})

	t.Run("Null", func(t *testing.T) {
		b := z3.NewBackend()
		defer MustCloseBackend(b)
		s := strata.NewSession(b)

		q := strata.NewSymbolExpr("q", &strata.PointerType{})
		MustAssertExpr(t, s, strata.NewEqExpr(q, strata.NewSymbolExpr("NULL", &strata.PointerType{})))

		if status, err := s.Check(); err != nil {
			t.Fatal(err)
		} else if status != strata.StatusSat {
			t.Fatalf("status=%s, want sat", status)
		}
		v, err := s.Readback(MustConvert(t, s, q))
		if err != nil {
			t.Fatal(err)
		}
		if got, want := v.String(), "&NULL+0"; got != want {
			t.Fatalf("value=%q, want %q", got, want)
		}
	})
}

func TestSession_Union(t *testing.T) {
	b := z3.NewBackend()
	defer MustCloseBackend(b)
	s := strata.NewSession(b)

	typ := &strata.StructType{
		Name:  "reg",
		Union: true,
		Members: []strata.Member{
			{Name: "a", Type: &strata.IntType{Width: strata.Width32}},
			{Name: "b", Type: &strata.IntType{Width: strata.Width32}},
		},
	}
	init := strata.NewConstantExpr(0x41, &strata.IntType{Width: strata.Width32})
	ast := MustConvert(t, s, strata.NewUnionExpr(typ, init))

	if status, err := s.Check(); err != nil {
		t.Fatal(err)
	} else if status != strata.StatusSat {
		t.Fatalf("status=%s, want sat", status)
	}

	v, err := s.Readback(ast)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v.String(), "{a: 65, b: 65}"; got != want {
		t.Fatalf("value=%q, want %q", got, want)
	}
}

func TestSession_Cast(t *testing.T) {
	b := z3.NewBackend()
	defer MustCloseBackend(b)
	s := strata.NewSession(b)

	// Sign extending -1 from 8 to 32 bits yields all ones.
	i8 := &strata.IntType{Width: strata.Width8, Signed: true}
	i32 := &strata.IntType{Width: strata.Width32, Signed: true}
	MustAssertExpr(t, s, strata.NewEqExpr(
		strata.NewCastExpr(strata.NewConstantExpr(0xFF, i8), strata.Width32, true),
		strata.NewConstantExpr(0xFFFFFFFF, i32),
	))

	if status, err := s.Check(); err != nil {
		t.Fatal(err)
	} else if status != strata.StatusSat {
		t.Fatalf("status=%s, want sat", status)
	}
}

func pointType() *strata.StructType {
	return &strata.StructType{
		Name: "point",
		Members: []strata.Member{
			{Name: "x", Type: &strata.IntType{Width: strata.Width32}},
			{Name: "y", Type: &strata.IntType{Width: strata.Width32}},
		},
	}
}

func pointLit(typ *strata.StructType, x, y uint64) *strata.StructExpr {
	u32 := &strata.IntType{Width: strata.Width32}
	return strata.NewStructExpr(typ, strata.NewConstantExpr(x, u32), strata.NewConstantExpr(y, u32))
}

func u64Const(v uint64) *strata.ConstantExpr {
	return strata.NewConstantExpr(v, &strata.IntType{Width: strata.Width64})
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

// MustAssertExpr converts expr and asserts it.
func MustAssertExpr(tb testing.TB, s *strata.Session, expr strata.Expr) {
	tb.Helper()
	if err := s.Assert(MustConvert(tb, s, expr)); err != nil {
		tb.Fatal(err)
	}
}

func MustCloseBackend(b *z3.Backend) {
	if err := b.Close(); err != nil {
		panic(err)
	}
}
