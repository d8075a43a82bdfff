package strata_test

import (
	"strings"
	"testing"

	"github.com/benbjohnson/strata"
	"github.com/google/go-cmp/cmp"
)

func TestReadback_Scalar(t *testing.T) {
	t.Run("BV", func(t *testing.T) {
		backend := newMockBackend()
		backend.values["x"] = 42
		s := strata.NewSession(backend)

		ast := MustConvert(t, s, strata.NewSymbolExpr("x", u32Type()))
		v, err := s.Readback(ast)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(v, &strata.IntValue{Value: 42, Width: 32}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("SignedString", func(t *testing.T) {
		v := &strata.IntValue{Value: 0xFF, Width: 8, Signed: true}
		if got, want := v.String(), "-1"; got != want {
			t.Fatalf("String()=%q, want %q", got, want)
		}
	})

	t.Run("Bool", func(t *testing.T) {
		backend := newMockBackend()
		backend.values["b"] = 1
		s := strata.NewSession(backend)

		ast := MustConvert(t, s, strata.NewSymbolExpr("b", &strata.BoolType{}))
		v, err := s.Readback(ast)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(v, &strata.BoolValue{Value: true}); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestReadback_Tuple(t *testing.T) {
	t.Run("Unmaterialized", func(t *testing.T) {
		backend := newMockBackend()
		s := strata.NewSession(backend)

		ast := MustConvert(t, s, strata.NewSymbolExpr("pt", pointType()))
		v, err := s.Readback(ast)
		if err != nil {
			t.Fatal(err)
		}
		sv, ok := v.(*strata.StructValue)
		if !ok {
			t.Fatal("expected struct value")
		}
		for i, f := range sv.Fields {
			if _, ok := f.(*strata.NoValue); !ok {
				t.Fatalf("field %d: expected no value, got %s", i, f)
			}
		}
		// Readback must not materialize a write-only value.
		if ast.(*strata.TupleAST).Materialized() {
			t.Fatal("expected tuple to stay unmaterialized")
		}
	})

	t.Run("Materialized", func(t *testing.T) {
		backend := newMockBackend()
		backend.values["pt.x"] = 3
		backend.values["pt.y"] = 5
		s := strata.NewSession(backend)

		ast := MustConvert(t, s, strata.NewSymbolExpr("pt", pointType()))
		MustProject(t, s, ast, 0)

		v, err := s.Readback(ast)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := v.String(), "{x: 3, y: 5}"; got != want {
			t.Fatalf("value=%q, want %q", got, want)
		}
	})

	t.Run("TupleArrayField", func(t *testing.T) {
		backend := newMockBackend()
		s := strata.NewSession(backend)

		typ := &strata.StructType{
			Name: "poly",
			Members: []strata.Member{
				{Name: "n", Type: u32Type()},
				{Name: "pts", Type: arrayType(pointType(), 4)},
			},
		}
		ast := MustConvert(t, s, strata.NewSymbolExpr("p", typ))
		MustProject(t, s, ast, 0)

		v, err := s.Readback(ast)
		if err != nil {
			t.Fatal(err)
		}
		sv := v.(*strata.StructValue)
		if _, ok := sv.Fields[1].(*strata.NoValue); !ok {
			t.Fatalf("expected no value for transposed array field, got %s", sv.Fields[1])
		}
	})
}

func TestReadback_Array(t *testing.T) {
	t.Run("Enumerated", func(t *testing.T) {
		backend := newMockBackend()
		backend.values["buf[0]"] = 7
		backend.values["buf[9]"] = 9
		s := strata.NewSession(backend)

		ast := MustConvert(t, s, strata.NewSymbolExpr("buf", arrayType(u8Type(), 10)))
		v, err := s.Readback(ast)
		if err != nil {
			t.Fatal(err)
		}
		av, ok := v.(*strata.ArrayValue)
		if !ok {
			t.Fatal("expected array value")
		}

		// Domain width 4 enumerates all 16 addressable indices.
		if got, want := len(av.Elems), 16; got != want {
			t.Fatalf("elems=%d, want %d", got, want)
		}
		if got, want := av.Elems[0].String(), "7"; got != want {
			t.Fatalf("elem 0=%q, want %q", got, want)
		}
		if got, want := av.Elems[9].String(), "9"; got != want {
			t.Fatalf("elem 9=%q, want %q", got, want)
		}
	})

	t.Run("Capped", func(t *testing.T) {
		backend := newMockBackend()
		s := strata.NewSession(backend)

		ast := MustConvert(t, s, strata.NewSymbolExpr("big", arrayType(u8Type(), 1<<12)))
		v, err := s.Readback(ast)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := len(v.(*strata.ArrayValue).Elems), strata.ArrayReadbackCap; got != want {
			t.Fatalf("elems=%d, want %d", got, want)
		}
	})
}

func TestReadback_Pointer(t *testing.T) {
	t.Run("Registered", func(t *testing.T) {
		backend := newMockBackend()
		backend.values["p.object_id"] = 2
		backend.values["p.offset"] = 4
		s := strata.NewSession(backend)
		s.Pointers().Register(2, "buf", 16)

		ast := MustConvert(t, s, strata.NewSymbolExpr("p", &strata.PointerType{}))
		MustProject(t, s, ast, 0)

		v, err := s.Readback(ast)
		if err != nil {
			t.Fatal(err)
		}
		pv, ok := v.(*strata.PointerValue)
		if !ok {
			t.Fatalf("expected pointer value, got %s", v)
		}
		if pv.Object.Name != "buf" || pv.Offset != 4 {
			t.Fatalf("unexpected pointer value: %s", pv)
		}
		if got, want := pv.String(), "&buf+4"; got != want {
			t.Fatalf("String()=%q, want %q", got, want)
		}
	})

	t.Run("Null", func(t *testing.T) {
		backend := newMockBackend()
		s := strata.NewSession(backend)

		ast := MustConvert(t, s, strata.NewSymbolExpr("p", &strata.PointerType{}))
		MustProject(t, s, ast, 0)

		v, err := s.Readback(ast)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := v.String(), "&NULL+0"; got != want {
			t.Fatalf("value=%q, want %q", got, want)
		}
	})

	t.Run("Unregistered", func(t *testing.T) {
		backend := newMockBackend()
		backend.values["p.object_id"] = 99
		s := strata.NewSession(backend)

		ast := MustConvert(t, s, strata.NewSymbolExpr("p", &strata.PointerType{}))
		MustProject(t, s, ast, 0)

		if _, err := s.Readback(ast); err == nil {
			t.Fatal("expected error for unregistered object id")
		} else if !strings.Contains(err.Error(), "unregistered object id 99") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
