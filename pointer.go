package strata

import (
	"github.com/benbjohnson/immutable"
)

// Well-known pointer object ids.
const (
	NullObjectID    = uint64(0)
	InvalidObjectID = uint64(1)
)

// PointerObject describes one allocation known to the pointer provenance
// table.
type PointerObject struct {
	ID   uint64
	Name string
	Size uint64
}

// PointerTable maps object ids back to the allocations they identify.
// Object ids 0 and 1 are reserved for the null and invalid objects.
type PointerTable struct {
	objects *immutable.SortedMap
}

// NewPointerTable returns an empty pointer table.
func NewPointerTable() *PointerTable {
	return &PointerTable{
		objects: immutable.NewSortedMap(&uint64Comparer{}),
	}
}

// Register records an allocation under the given object id. Re-registering
// an id replaces the previous entry.
func (t *PointerTable) Register(id uint64, name string, size uint64) *PointerObject {
	obj := &PointerObject{ID: id, Name: name, Size: size}
	t.objects = t.objects.Set(id, obj)
	return obj
}

// Lookup returns the allocation registered under id, if any.
func (t *PointerTable) Lookup(id uint64) *PointerObject {
	v, ok := t.objects.Get(id)
	if !ok {
		return nil
	}
	return v.(*PointerObject)
}

// Len returns the number of registered allocations.
func (t *PointerTable) Len() int {
	return t.objects.Len()
}

// Objects returns all registered allocations in ascending id order.
func (t *PointerTable) Objects() []*PointerObject {
	a := make([]*PointerObject, 0, t.objects.Len())
	for itr := t.objects.Iterator(); !itr.Done(); {
		_, v := itr.Next()
		a = append(a, v.(*PointerObject))
	}
	return a
}

// uint64Comparer compares two uint64 keys.
type uint64Comparer struct{}

// Compare returns -1 if a is less than b, 1 if greater, and 0 if equal.
func (c *uint64Comparer) Compare(a, b interface{}) int {
	if x, y := a.(uint64), b.(uint64); x < y {
		return -1
	} else if x > y {
		return 1
	}
	return 0
}
