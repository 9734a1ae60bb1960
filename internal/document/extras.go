package document

import (
	"maps"
	"slices"
	"strings"
)

// Extras is the out-of-band side bag for values a Document cannot hold, such
// as opaque platform handles. Values are handles, slices of handles, or nested
// *Extras. An Extras is immutable; the zero value and nil are empty.
type Extras struct {
	m map[string]any
}

var empty = &Extras{}

// EmptyExtras returns the shared empty bag.
func EmptyExtras() *Extras { return empty }

// Len returns the number of entries.
func (e *Extras) Len() int {
	if e == nil {
		return 0
	}
	return len(e.m)
}

// Get returns the entry stored at key.
func (e *Extras) Get(key string) (any, bool) {
	if e.Len() == 0 {
		return nil, false
	}
	v, ok := e.m[key]
	return v, ok
}

// Nested returns the nested bag stored at key, or the empty bag.
func (e *Extras) Nested(key string) *Extras {
	if v, ok := e.Get(key); ok {
		if n, ok := v.(*Extras); ok && n != nil {
			return n
		}
	}
	return empty
}

// Keys returns the entry keys in sorted order.
func (e *Extras) Keys() []string {
	if e.Len() == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(e.m))
}

// ExtrasBuilder accumulates entries for an Extras bag.
type ExtrasBuilder struct {
	m map[string]any
}

// NewExtrasBuilder returns an empty builder.
func NewExtrasBuilder() *ExtrasBuilder {
	return &ExtrasBuilder{m: map[string]any{}}
}

// Put stores v at key. Empty nested bags are not stored.
func (b *ExtrasBuilder) Put(key string, v any) *ExtrasBuilder {
	if n, ok := v.(*Extras); ok && n.Len() == 0 {
		delete(b.m, key)
		return b
	}
	b.m[key] = v
	return b
}

// Remove deletes key.
func (b *ExtrasBuilder) Remove(key string) *ExtrasBuilder {
	delete(b.m, key)
	return b
}

// RemovePrefix deletes every key starting with prefix.
func (b *ExtrasBuilder) RemovePrefix(prefix string) *ExtrasBuilder {
	for k := range b.m {
		if strings.HasPrefix(k, prefix) {
			delete(b.m, k)
		}
	}
	return b
}

// Build snapshots the builder.
func (b *ExtrasBuilder) Build() *Extras {
	if len(b.m) == 0 {
		return empty
	}
	return &Extras{m: maps.Clone(b.m)}
}
