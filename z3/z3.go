package z3

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/benbjohnson/strata"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// Ensure backend implements interface.
var _ strata.Backend = (*Backend)(nil)

// Backend represents a solver backend over an embedded Z3 solver.
type Backend struct {
	ctx    *Context
	solver C.Z3_solver
	model  C.Z3_model
	stats  Stats
}

// NewBackend returns a new instance of Backend.
func NewBackend() *Backend {
	b := &Backend{ctx: NewContext()}
	b.solver = C.Z3_mk_solver(b.ctx.raw)
	C.Z3_solver_inc_ref(b.ctx.raw, b.solver)
	return b
}

// Close releases the model, solver, and underlying Z3 context.
func (b *Backend) Close() error {
	if b.model != nil {
		C.Z3_model_dec_ref(b.ctx.raw, b.model)
		b.model = nil
	}
	C.Z3_solver_dec_ref(b.ctx.raw, b.solver)
	return b.ctx.Close()
}

// Stats returns statistics for the backend.
func (b *Backend) Stats() Stats {
	return b.stats
}

// Symbol returns the named symbol of the given sort. Z3 interns constants by
// name and sort, so the same pair always denotes the same symbol.
func (b *Backend) Symbol(name string, sort strata.Sort) (strata.Term, error) {
	z3Sort, err := b.ctx.toSort(sort)
	if err != nil {
		return nil, err
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	nameSymbol := C.Z3_mk_string_symbol(b.ctx.raw, cname)

	ast := C.Z3_mk_const(b.ctx.raw, nameSymbol, z3Sort)
	if err := b.ctx.err("Z3_mk_const"); err != nil {
		return nil, err
	}
	return b.term(ast), nil
}

// ConstBV returns a bit-vector literal of the given sort.
func (b *Backend) ConstBV(value uint64, sort strata.Sort) (strata.Term, error) {
	bv, ok := sort.(*strata.BVSort)
	if !ok {
		return nil, fmt.Errorf("z3.Backend.ConstBV: non-bit-vector sort: %s", sort)
	}
	ast, err := b.ctx.makeUint64(bv.Width, value)
	if err != nil {
		return nil, err
	}
	return b.term(ast), nil
}

// ConstBool returns a boolean literal.
func (b *Backend) ConstBool(value bool) (strata.Term, error) {
	var ast C.Z3_ast
	var err error
	if value {
		ast, err = b.ctx.makeTrue()
	} else {
		ast, err = b.ctx.makeFalse()
	}
	if err != nil {
		return nil, err
	}
	return b.term(ast), nil
}

// Apply constructs a function application over the given arguments.
// AND, OR, XOR, NOT, and EQ dispatch on the operand sort.
func (b *Backend) Apply(op strata.Op, sort strata.Sort, args ...strata.Term) (strata.Term, error) {
	raw := make([]C.Z3_ast, len(args))
	for i, arg := range args {
		t, ok := arg.(*Term)
		if !ok {
			return nil, fmt.Errorf("z3.Backend.Apply: foreign term: %T", arg)
		}
		raw[i] = t.raw
	}

	ast, err := b.ctx.apply(op, raw)
	if err != nil {
		return nil, err
	}
	return b.term(ast), nil
}

// Extract returns width bits of t starting at offset.
func (b *Backend) Extract(t strata.Term, offset, width uint) (strata.Term, error) {
	src, ok := t.(*Term)
	if !ok {
		return nil, fmt.Errorf("z3.Backend.Extract: foreign term: %T", t)
	}
	ast := C.Z3_mk_extract(b.ctx.raw, C.uint(offset+width-1), C.uint(offset), src.raw)
	if err := b.ctx.err("Z3_mk_extract"); err != nil {
		return nil, err
	}
	return b.term(ast), nil
}

// Assert adds a boolean term to the solver's constraint set.
func (b *Backend) Assert(t strata.Term) error {
	constraint, ok := t.(*Term)
	if !ok {
		return fmt.Errorf("z3.Backend.Assert: foreign term: %T", t)
	}
	C.Z3_solver_assert(b.ctx.raw, b.solver, constraint.raw)
	return b.ctx.err("Z3_solver_assert")
}

// Check reports the satisfiability of the asserted constraints. On a sat
// answer the model is retained for Value lookups; an undef answer maps to
// StatusUnknown plus the reason, never to sat or unsat.
func (b *Backend) Check() (strata.Status, error) {
	t := time.Now()
	defer func() {
		b.stats.CheckN++
		b.stats.CheckTime += time.Since(t)
	}()

	if b.model != nil {
		C.Z3_model_dec_ref(b.ctx.raw, b.model)
		b.model = nil
	}

	ret := C.Z3_solver_check(b.ctx.raw, b.solver)
	if err := b.ctx.err("Z3_solver_check"); err != nil {
		return strata.StatusUnknown, err
	} else if ret == C.Z3_L_FALSE {
		return strata.StatusUnsat, nil
	} else if ret == C.Z3_L_UNDEF {
		reason := C.GoString(C.Z3_solver_get_reason_unknown(b.ctx.raw, b.solver))
		switch {
		case strings.Contains(reason, "timeout"):
			return strata.StatusUnknown, strata.ErrSolverTimeout
		case strings.Contains(reason, "canceled"):
			return strata.StatusUnknown, strata.ErrSolverCanceled
		case strings.Contains(reason, "(resource limits reached)"):
			return strata.StatusUnknown, strata.ErrSolverResourceLimit
		case strings.Contains(reason, "unknown"):
			return strata.StatusUnknown, strata.ErrSolverUnknown
		default:
			return strata.StatusUnknown, fmt.Errorf("z3: %s", reason)
		}
	}

	b.model = C.Z3_solver_get_model(b.ctx.raw, b.solver)
	if err := b.ctx.err("Z3_solver_get_model"); err != nil {
		return strata.StatusUnknown, err
	}
	C.Z3_model_inc_ref(b.ctx.raw, b.model)
	return strata.StatusSat, nil
}

// ValueBV returns the concrete value bound to a bit-vector term.
func (b *Backend) ValueBV(t strata.Term) (uint64, error) {
	ast, err := b.evalTerm(t)
	if err != nil {
		return 0, err
	}

	var value C.uint64_t
	C.Z3_get_numeral_uint64(b.ctx.raw, ast, &value)
	if err := b.ctx.err("Z3_get_numeral_uint64"); err != nil {
		return 0, err
	}
	return uint64(value), nil
}

// ValueBool returns the concrete value bound to a boolean term.
func (b *Backend) ValueBool(t strata.Term) (bool, error) {
	ast, err := b.evalTerm(t)
	if err != nil {
		return false, err
	}

	ret := C.Z3_get_bool_value(b.ctx.raw, ast)
	if err := b.ctx.err("Z3_get_bool_value"); err != nil {
		return false, err
	}
	return ret == C.Z3_L_TRUE, nil
}

// evalTerm evaluates a term against the retained model with model
// completion, so unconstrained symbols still yield a value.
func (b *Backend) evalTerm(t strata.Term) (C.Z3_ast, error) {
	src, ok := t.(*Term)
	if !ok {
		return nil, fmt.Errorf("z3.Backend.evalTerm: foreign term: %T", t)
	}
	if b.model == nil {
		return nil, fmt.Errorf("z3.Backend.evalTerm: no model; Check must return sat first")
	}

	var ast C.Z3_ast
	C.Z3_model_eval(b.ctx.raw, b.model, src.raw, C.bool(true), &ast)
	if err := b.ctx.err("Z3_model_eval"); err != nil {
		return nil, err
	}
	return ast, nil
}

func (b *Backend) term(ast C.Z3_ast) *Term {
	return &Term{ctx: b.ctx, raw: ast}
}

// Term wraps a Z3 expression handle.
type Term struct {
	ctx *Context
	raw C.Z3_ast
}

// String returns the SMT-LIB rendering of the term.
func (t *Term) String() string {
	return t.ctx.astToString(t.raw)
}

// Context represents a Z3 context object that is used for constructing expressions.
type Context struct {
	raw C.Z3_context
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{raw: raw}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return ctx.err("Z3_del_context")
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// toSort returns the Z3 sort encoding sort. Tuple sorts never reach the
// backend; they are transposed away by the encoding layer.
func (ctx *Context) toSort(sort strata.Sort) (C.Z3_sort, error) {
	switch sort := sort.(type) {
	case *strata.BoolSort:
		return C.Z3_mk_bool_sort(ctx.raw), ctx.err("Z3_mk_bool_sort")
	case *strata.BVSort:
		return ctx.makeBVSort(sort.Width)
	case *strata.ArraySort:
		domainSort, err := ctx.makeBVSort(sort.DomainWidth)
		if err != nil {
			return nil, err
		}
		rangeSort, err := ctx.toSort(sort.Range)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_array_sort(ctx.raw, domainSort, rangeSort), ctx.err("Z3_mk_array_sort")
	default:
		return nil, fmt.Errorf("z3.Context.toSort: invalid sort type: %T", sort)
	}
}

// apply constructs one operator application, dispatching the overloaded
// boolean/bit-vector operators on the first argument's sort.
func (ctx *Context) apply(op strata.Op, args []C.Z3_ast) (C.Z3_ast, error) {
	switch op {
	case strata.ADD:
		return C.Z3_mk_bvadd(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvadd")
	case strata.SUB:
		return C.Z3_mk_bvsub(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvsub")
	case strata.MUL:
		return C.Z3_mk_bvmul(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvmul")
	case strata.UDIV:
		return C.Z3_mk_bvudiv(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvudiv")
	case strata.SDIV:
		return C.Z3_mk_bvsdiv(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvsdiv")
	case strata.UREM:
		return C.Z3_mk_bvurem(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvurem")
	case strata.SREM:
		return C.Z3_mk_bvsrem(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvsrem")
	case strata.AND:
		if ctx.isBool(args[0]) {
			pair := [2]C.Z3_ast{args[0], args[1]}
			return C.Z3_mk_and(ctx.raw, 2, &pair[0]), ctx.err("Z3_mk_and")
		}
		return C.Z3_mk_bvand(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvand")
	case strata.OR:
		if ctx.isBool(args[0]) {
			pair := [2]C.Z3_ast{args[0], args[1]}
			return C.Z3_mk_or(ctx.raw, 2, &pair[0]), ctx.err("Z3_mk_or")
		}
		return C.Z3_mk_bvor(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvor")
	case strata.XOR:
		if ctx.isBool(args[0]) {
			return C.Z3_mk_xor(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_xor")
		}
		return C.Z3_mk_bvxor(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvxor")
	case strata.NOT:
		if ctx.isBool(args[0]) {
			return C.Z3_mk_not(ctx.raw, args[0]), ctx.err("Z3_mk_not")
		}
		return C.Z3_mk_bvnot(ctx.raw, args[0]), ctx.err("Z3_mk_bvnot")
	case strata.SHL:
		return C.Z3_mk_bvshl(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvshl")
	case strata.LSHR:
		return C.Z3_mk_bvlshr(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvlshr")
	case strata.ASHR:
		return C.Z3_mk_bvashr(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvashr")
	case strata.EQ:
		if ctx.isBool(args[0]) {
			return C.Z3_mk_iff(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_iff")
		}
		return C.Z3_mk_eq(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_eq")
	case strata.ULT:
		return C.Z3_mk_bvult(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvult")
	case strata.ULE:
		return C.Z3_mk_bvule(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvule")
	case strata.SLT:
		return C.Z3_mk_bvslt(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvslt")
	case strata.SLE:
		return C.Z3_mk_bvsle(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_bvsle")
	case strata.ITE:
		return C.Z3_mk_ite(ctx.raw, args[0], args[1], args[2]), ctx.err("Z3_mk_ite")
	case strata.STORE:
		return C.Z3_mk_store(ctx.raw, args[0], args[1], args[2]), ctx.err("Z3_mk_store")
	case strata.SELECT:
		return C.Z3_mk_select(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_select")
	case strata.CONCAT:
		return C.Z3_mk_concat(ctx.raw, args[0], args[1]), ctx.err("Z3_mk_concat")
	default:
		return nil, fmt.Errorf("z3.Context.apply: unexpected operation: %s", op)
	}
}

func (ctx *Context) makeTrue() (C.Z3_ast, error) {
	return C.Z3_mk_true(ctx.raw), ctx.err("Z3_mk_true")
}

func (ctx *Context) makeFalse() (C.Z3_ast, error) {
	return C.Z3_mk_false(ctx.raw), ctx.err("Z3_mk_false")
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t), ctx.err("Z3_mk_unsigned_int64")
}

// isBool returns true if ast has the boolean sort.
func (ctx *Context) isBool(ast C.Z3_ast) bool {
	t := C.Z3_get_sort(ctx.raw, ast)
	if err := ctx.err("Z3_get_sort"); err != nil {
		panic(err)
	}
	return C.Z3_get_sort_kind(ctx.raw, t) == C.Z3_BOOL_SORT
}

func (ctx *Context) astToString(ast C.Z3_ast) string {
	return C.GoString(C.Z3_ast_to_string(ctx.raw, ast))
}

func (ctx *Context) sortToString(t C.Z3_sort) string {
	return C.GoString(C.Z3_sort_to_string(ctx.raw, t))
}

func (ctx *Context) modelToString(model C.Z3_model) string {
	return C.GoString(C.Z3_model_to_string(ctx.raw, model))
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Possible error codes.
const (
	ErrorCodeOK = iota
	ErrorCodeSortError
	ErrorCodeIOB
	ErrorCodeInvalidArg
	ErrorCodeParserError
	ErrorCodeNoParser
	ErrorCodeInvalidPattern
	ErrorCodeMemoutFail
	ErrorCodeFileAccessError
	ErrorCodeInternalFatal
	ErrorCodeInvalidUsage
	ErrorCodeDecRefError
	ErrorCodeException
)

// Stats tracks satisfiability check counts and time.
type Stats struct {
	CheckN    int
	CheckTime time.Duration
}
