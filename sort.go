package strata

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Sort represents the encoded type of a value: boolean, bit-vector, scalar
// ranged array, or tuple. Sorts are immutable descriptors created once per
// distinct shape by a SortRegistry and shared by reference thereafter.
type Sort interface {
	sort()
	String() string
}

func (*BoolSort) sort()  {}
func (*BVSort) sort()    {}
func (*ArraySort) sort() {}
func (*TupleSort) sort() {}

// BoolSort represents the boolean sort.
type BoolSort struct{}

// String returns the string representation of the sort.
func (s *BoolSort) String() string { return "Bool" }

// BVSort represents a fixed-width bit-vector sort.
type BVSort struct {
	Width  uint
	Signed bool
}

// String returns the string representation of the sort.
func (s *BVSort) String() string {
	if s.Signed {
		return fmt.Sprintf("(BitVec %d s)", s.Width)
	}
	return fmt.Sprintf("(BitVec %d u)", s.Width)
}

// ArraySort represents an array sort with a bit-vector index domain and a
// scalar range. Composite ranges are never expressed as a sort; arrays of
// tuples are transposed into per-field arrays instead.
type ArraySort struct {
	DomainWidth uint
	Range       Sort
}

// String returns the string representation of the sort.
func (s *ArraySort) String() string {
	return fmt.Sprintf("(Array %d %s)", s.DomainWidth, s.Range)
}

// TupleSort represents a composite sort referencing the structural program
// type it encodes. Type is either a struct/union/pointer type or an array
// type whose element is one.
type TupleSort struct {
	Type Type
}

// String returns the string representation of the sort.
func (s *TupleSort) String() string {
	return fmt.Sprintf("(Tuple %s)", s.Type)
}

// SortsEqual returns true if a and b have the same variant and payload.
// Tuple sorts compare by structural type identity.
func SortsEqual(a, b Sort) bool {
	switch a := a.(type) {
	case *BoolSort:
		_, ok := b.(*BoolSort)
		return ok
	case *BVSort:
		b, ok := b.(*BVSort)
		return ok && a.Width == b.Width && a.Signed == b.Signed
	case *ArraySort:
		b, ok := b.(*ArraySort)
		return ok && a.DomainWidth == b.DomainWidth && SortsEqual(a.Range, b.Range)
	case *TupleSort:
		b, ok := b.(*TupleSort)
		return ok && a.Type == b.Type
	default:
		panic("unreachable")
	}
}

// SortRegistry interns sorts so that each distinct shape is represented by
// exactly one descriptor. Buckets are keyed by a hash of the shape; entries
// within a bucket are compared structurally.
type SortRegistry struct {
	buckets map[uint64][]Sort
}

// NewSortRegistry returns a new instance of SortRegistry.
func NewSortRegistry() *SortRegistry {
	return &SortRegistry{buckets: make(map[uint64][]Sort)}
}

// Bool returns the interned boolean sort.
func (r *SortRegistry) Bool() Sort {
	return r.intern(&BoolSort{})
}

// BV returns the interned bit-vector sort of the given width.
func (r *SortRegistry) BV(width uint, signed bool) Sort {
	return r.intern(&BVSort{Width: width, Signed: signed})
}

// Array returns the interned array sort over the given domain width & range.
func (r *SortRegistry) Array(domainWidth uint, rng Sort) Sort {
	return r.intern(&ArraySort{DomainWidth: domainWidth, Range: rng})
}

// Tuple returns the interned tuple sort for the given structural type.
func (r *SortRegistry) Tuple(typ Type) Sort {
	return r.intern(&TupleSort{Type: typ})
}

// intern returns the registry's canonical descriptor for the shape of s.
func (r *SortRegistry) intern(s Sort) Sort {
	key := xxhash.Sum64String(sortKey(s))
	for _, other := range r.buckets[key] {
		if SortsEqual(s, other) {
			return other
		}
	}
	r.buckets[key] = append(r.buckets[key], s)
	return s
}

// sortKey returns a string uniquely describing the shape of s.
// Tuple sorts key on type identity since structural types are created once.
func sortKey(s Sort) string {
	switch s := s.(type) {
	case *BoolSort:
		return "bool"
	case *BVSort:
		return fmt.Sprintf("bv:%d:%v", s.Width, s.Signed)
	case *ArraySort:
		return fmt.Sprintf("array:%d:%s", s.DomainWidth, sortKey(s.Range))
	case *TupleSort:
		return fmt.Sprintf("tuple:%p", s.Type)
	default:
		panic("unreachable")
	}
}
