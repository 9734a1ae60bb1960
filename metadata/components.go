package metadata

import (
	"errors"
	"fmt"
)

// ErrUnresolvedReference is returned when a ReferenceType names an entry that
// is missing from the components table.
var ErrUnresolvedReference = errors.New("metadata: unresolved reference")

// Components is the shared table that ReferenceType descriptors point into.
// The zero value is an empty table.
type Components struct {
	DataTypes map[string]DataType
}

// Resolve returns the descriptor registered under name.
func (c Components) Resolve(name string) (DataType, bool) {
	if c.DataTypes == nil {
		return nil, false
	}
	dt, ok := c.DataTypes[name]
	return dt, ok
}

// Dereference follows reference chains until a non-reference descriptor is
// reached. Non-reference descriptors are returned unchanged.
func (c Components) Dereference(dt DataType) (DataType, error) {
	seen := 0
	for {
		ref, ok := dt.(*ReferenceType)
		if !ok {
			return dt, nil
		}
		next, found := c.Resolve(ref.Ref)
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedReference, ref.Ref)
		}
		seen++
		if seen > len(c.DataTypes) {
			return nil, fmt.Errorf("metadata: reference cycle through %s", ref.Ref)
		}
		dt = next
	}
}

// Equal reports whether both tables hold structurally equal descriptors under
// the same names.
func (c Components) Equal(o Components) bool {
	if len(c.DataTypes) != len(o.DataTypes) {
		return false
	}
	for name, dt := range c.DataTypes {
		odt, ok := o.DataTypes[name]
		if !ok || !Equal(dt, odt) {
			return false
		}
	}
	return true
}
