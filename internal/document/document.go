// Package document implements the portable property bag that backs
// appfunctiondata containers.
//
// Every property is a repeated field holding one of []bool, []int64,
// []float64, []string, [][]byte or []*Document. A scalar is a slice of length
// one. An empty slice is a set value distinct from an absent key.
//
// Documents are immutable once built. Builders copy every slice they are
// handed, so values can be shared freely across goroutines and parents.
package document

import (
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrTypeMismatch is returned by the typed accessors when the stored
// representation differs from the requested one.
var ErrTypeMismatch = errors.New("document: type mismatch")

// Document is an immutable ordered property bag.
type Document struct {
	namespace  string
	id         string
	schemaType string
	props      *orderedmap.OrderedMap[string, any]
}

// Namespace returns the document namespace.
func (d *Document) Namespace() string { return d.namespace }

// ID returns the document id.
func (d *Document) ID() string { return d.id }

// SchemaType returns the schema type name the document was built for.
func (d *Document) SchemaType() string { return d.schemaType }

// Len returns the number of properties.
func (d *Document) Len() int {
	if d == nil || d.props == nil {
		return 0
	}
	return d.props.Len()
}

// Keys returns property names in insertion order.
func (d *Document) Keys() []string {
	if d.Len() == 0 {
		return nil
	}
	keys := make([]string, 0, d.props.Len())
	for pair := d.props.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Has reports whether key is set, including to an empty slice.
func (d *Document) Has(key string) bool {
	_, ok := d.Value(key)
	return ok
}

// Value returns the raw stored slice for key. Callers must not mutate it.
func (d *Document) Value(key string) (any, bool) {
	if d.Len() == 0 {
		return nil, false
	}
	return d.props.Get(key)
}

func typed[T any](d *Document, key string) ([]T, bool, error) {
	raw, ok := d.Value(key)
	if !ok {
		return nil, false, nil
	}
	v, ok := raw.([]T)
	if !ok {
		var want []T
		return nil, true, fmt.Errorf("%w: %s holds %s, not %T", ErrTypeMismatch, key, describe(raw), want)
	}
	return v, true, nil
}

// Booleans returns the []bool stored at key.
func (d *Document) Booleans(key string) ([]bool, bool, error) { return typed[bool](d, key) }

// Longs returns the []int64 stored at key.
func (d *Document) Longs(key string) ([]int64, bool, error) { return typed[int64](d, key) }

// Doubles returns the []float64 stored at key.
func (d *Document) Doubles(key string) ([]float64, bool, error) { return typed[float64](d, key) }

// Strings returns the []string stored at key.
func (d *Document) Strings(key string) ([]string, bool, error) { return typed[string](d, key) }

// Bytes returns the [][]byte stored at key.
func (d *Document) Bytes(key string) ([][]byte, bool, error) { return typed[[]byte](d, key) }

// Documents returns the nested documents stored at key.
func (d *Document) Documents(key string) ([]*Document, bool, error) {
	return typed[*Document](d, key)
}

func describe(v any) string {
	switch v.(type) {
	case []bool:
		return "boolean[]"
	case []int64:
		return "long[]"
	case []float64:
		return "double[]"
	case []string:
		return "string[]"
	case [][]byte:
		return "bytes[]"
	case []*Document:
		return "document[]"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func (d *Document) String() string {
	if d == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString(d.schemaType)
	sb.WriteByte('{')
	for i, k := range d.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, _ := d.Value(k)
		fmt.Fprintf(&sb, "%s=%v", k, v)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Builder accumulates properties for a Document. It is not safe for
// concurrent use.
type Builder struct {
	namespace  string
	id         string
	schemaType string
	props      *orderedmap.OrderedMap[string, any]
}

// NewBuilder returns a builder for a document of schemaType.
func NewBuilder(namespace, id, schemaType string) *Builder {
	return &Builder{
		namespace:  namespace,
		id:         id,
		schemaType: schemaType,
		props:      orderedmap.New[string, any](),
	}
}

func set[T any](b *Builder, key string, vals []T) *Builder {
	cp := make([]T, len(vals))
	copy(cp, vals)
	b.props.Set(key, cp)
	return b
}

func (b *Builder) SetBooleans(key string, vals ...bool) *Builder   { return set(b, key, vals) }
func (b *Builder) SetLongs(key string, vals ...int64) *Builder     { return set(b, key, vals) }
func (b *Builder) SetDoubles(key string, vals ...float64) *Builder { return set(b, key, vals) }
func (b *Builder) SetStrings(key string, vals ...string) *Builder  { return set(b, key, vals) }

// SetBytes stores deep copies of vals.
func (b *Builder) SetBytes(key string, vals ...[]byte) *Builder {
	cp := make([][]byte, len(vals))
	for i, v := range vals {
		cp[i] = append([]byte(nil), v...)
	}
	b.props.Set(key, cp)
	return b
}

// SetDocuments stores nested documents. Documents are immutable so only the
// slice is copied.
func (b *Builder) SetDocuments(key string, docs ...*Document) *Builder {
	return set(b, key, docs)
}

// Remove deletes key if present.
func (b *Builder) Remove(key string) *Builder {
	b.props.Delete(key)
	return b
}

// Has reports whether key has been set on the builder.
func (b *Builder) Has(key string) bool {
	_, ok := b.props.Get(key)
	return ok
}

// Build snapshots the builder. Later builder calls do not affect the result.
func (b *Builder) Build() *Document {
	props := orderedmap.New[string, any](b.props.Len())
	for pair := b.props.Oldest(); pair != nil; pair = pair.Next() {
		props.Set(pair.Key, pair.Value)
	}
	return &Document{namespace: b.namespace, id: b.id, schemaType: b.schemaType, props: props}
}
