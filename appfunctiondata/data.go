package appfunctiondata

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ggoodman/appfunctions-go/internal/document"
)

const extrasPrefix = "property/"

func extrasKey(key string) string { return extrasPrefix + key }

func extrasIndexKey(key string, i int) string {
	return extrasPrefix + key + "[" + strconv.Itoa(i) + "]"
}

// Data is an immutable, schema-aware container of named values. Portable
// values live in a document; platform handles live in a side bag. Nested
// containers returned by GetData and GetDataList are views rebuilt on every
// read, so a Data can be shared freely.
type Data struct {
	v      validator
	doc    *document.Document
	extras *document.Extras
}

// QualifiedName returns the schema type name the container was built
// against. Anonymous and parameter containers return "".
func (d *Data) QualifiedName() string { return d.v.typeName() }

// ID returns the document id. Only legacy containers carry one.
func (d *Data) ID() string { return d.doc.ID() }

// Spec returns the container's spec. Legacy containers have none.
func (d *Data) Spec() (*DataSpec, bool) {
	s, ok := d.v.(*DataSpec)
	return s, ok
}

// ContainsKey reports whether key is declared (always true for legacy
// containers) and holds a value in either bag. Legacy containers always
// contain "id".
func (d *Data) ContainsKey(key string) bool {
	if _, ok := d.v.syntheticString(key, d.doc.ID()); ok {
		return true
	}
	if !d.v.declares(key) {
		return false
	}
	if d.doc.Has(key) {
		return true
	}
	_, ok := d.extras.Get(extrasKey(key))
	return ok
}

// Keys returns the populated keys: document properties in insertion order,
// followed by properties that live only in the side bag.
func (d *Data) Keys() []string {
	keys := d.doc.Keys()
	for _, ek := range d.extras.Keys() {
		k, ok := strings.CutPrefix(ek, extrasPrefix)
		if !ok || isIndexed(k) || d.doc.Has(k) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

func isIndexed(k string) bool {
	open := strings.LastIndexByte(k, '[')
	if open <= 0 || !strings.HasSuffix(k, "]") {
		return false
	}
	_, err := strconv.Atoi(k[open+1 : len(k)-1])
	return err == nil
}

// MissingRequired returns the declared required keys that hold no value.
func (d *Data) MissingRequired() []string {
	s, ok := d.Spec()
	if !ok {
		return nil
	}
	var missing []string
	for _, k := range s.keys {
		if s.IsRequired(k) && !d.ContainsKey(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

func (d *Data) String() string {
	return fmt.Sprintf("Data(%s, extras=%v)", d.doc, d.extras.Keys())
}

func identity[T any](_ string, v T) (T, error) { return v, nil }

func narrowInt(key string, v int64) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, illegalStatef("value %d at %s is outside the int range", v, key)
	}
	return int32(v), nil
}

func narrowFloat(key string, v float64) (float32, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) <= math.MaxFloat32 {
		return float32(v), nil
	}
	return 0, illegalStatef("value %g at %s is outside the float range", v, key)
}

func cloneBytes(_ string, v []byte) ([]byte, error) {
	return append([]byte{}, v...), nil
}

func lookup[T, S any](d *Data, key string, k valueKind, raw func(*document.Document, string) ([]S, bool, error), narrow func(string, S) (T, error)) (T, bool, error) {
	var zero T
	if err := d.v.validateRead(key, k, false, nil); err != nil {
		return zero, false, err
	}
	vals, _, err := raw(d.doc, key)
	if err != nil {
		return zero, false, invalidArgf(key, "data type does not match: %v", err)
	}
	if len(vals) == 0 {
		return zero, false, nil
	}
	v, err := narrow(key, vals[0])
	if err != nil {
		return zero, false, err
	}
	if err := d.v.validateRead(key, k, false, v); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func lookupArray[T, S any](d *Data, key string, k valueKind, raw func(*document.Document, string) ([]S, bool, error), narrow func(string, S) (T, error)) ([]T, error) {
	if err := d.v.validateRead(key, k, true, nil); err != nil {
		return nil, err
	}
	vals, ok, err := raw(d.doc, key)
	if err != nil {
		return nil, invalidArgf(key, "data type does not match: %v", err)
	}
	if !ok {
		return nil, nil
	}
	out := make([]T, len(vals))
	for i, s := range vals {
		v, err := narrow(key, s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	if err := d.v.validateRead(key, k, true, out); err != nil {
		return nil, err
	}
	return out, nil
}

func getValue[T any](d *Data, key string, lookup func(string) (T, bool, error)) (T, error) {
	v, ok, err := lookup(key)
	if err != nil || ok {
		return v, err
	}
	if d.v.requires(key) {
		return v, invalidArgf(key, "required value is missing")
	}
	return v, nil
}

func getValueOr[T any](key string, def T, lookup func(string) (T, bool, error)) (T, error) {
	v, ok, err := lookup(key)
	if err != nil {
		return v, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// LookupBoolean returns the boolean at key and whether it was set.
func (d *Data) LookupBoolean(key string) (bool, bool, error) {
	return lookup(d, key, kindBoolean, (*document.Document).Booleans, identity[bool])
}

// GetBoolean returns the boolean at key, false when an optional slot is
// unset.
func (d *Data) GetBoolean(key string) (bool, error) { return getValue(d, key, d.LookupBoolean) }

// GetBooleanOr returns the boolean at key or def when unset.
func (d *Data) GetBooleanOr(key string, def bool) (bool, error) {
	return getValueOr(key, def, d.LookupBoolean)
}

func (d *Data) LookupLong(key string) (int64, bool, error) {
	return lookup(d, key, kindLong, (*document.Document).Longs, identity[int64])
}

func (d *Data) GetLong(key string) (int64, error) { return getValue(d, key, d.LookupLong) }

func (d *Data) GetLongOr(key string, def int64) (int64, error) {
	return getValueOr(key, def, d.LookupLong)
}

func (d *Data) LookupDouble(key string) (float64, bool, error) {
	return lookup(d, key, kindDouble, (*document.Document).Doubles, identity[float64])
}

func (d *Data) GetDouble(key string) (float64, error) { return getValue(d, key, d.LookupDouble) }

func (d *Data) GetDoubleOr(key string, def float64) (float64, error) {
	return getValueOr(key, def, d.LookupDouble)
}

// LookupString returns the string at key. On legacy containers "id" always
// resolves to the container id.
func (d *Data) LookupString(key string) (string, bool, error) {
	if v, ok := d.v.syntheticString(key, d.doc.ID()); ok {
		return v, true, nil
	}
	return lookup(d, key, kindString, (*document.Document).Strings, identity[string])
}

func (d *Data) GetString(key string) (string, error) { return getValue(d, key, d.LookupString) }

func (d *Data) GetStringOr(key string, def string) (string, error) {
	return getValueOr(key, def, d.LookupString)
}

// LookupInt returns the 32-bit integer at key. A stored value outside the
// int range is reported as ErrIllegalState.
func (d *Data) LookupInt(key string) (int32, bool, error) {
	return lookup(d, key, kindInt, (*document.Document).Longs, narrowInt)
}

func (d *Data) GetInt(key string) (int32, error) { return getValue(d, key, d.LookupInt) }

func (d *Data) GetIntOr(key string, def int32) (int32, error) {
	return getValueOr(key, def, d.LookupInt)
}

// LookupFloat returns the 32-bit float at key. A stored finite value outside
// the float range is reported as ErrIllegalState.
func (d *Data) LookupFloat(key string) (float32, bool, error) {
	return lookup(d, key, kindFloat, (*document.Document).Doubles, narrowFloat)
}

func (d *Data) GetFloat(key string) (float32, error) { return getValue(d, key, d.LookupFloat) }

func (d *Data) GetFloatOr(key string, def float32) (float32, error) {
	return getValueOr(key, def, d.LookupFloat)
}

func (d *Data) LookupBytes(key string) ([]byte, bool, error) {
	return lookup(d, key, kindBytes, (*document.Document).Bytes, cloneBytes)
}

// GetBytes returns a copy of the byte string at key, nil when unset.
func (d *Data) GetBytes(key string) ([]byte, error) { return getValue(d, key, d.LookupBytes) }

// Array getters return nil when the key was never set and an empty slice
// when it was set empty.

func (d *Data) GetBooleanArray(key string) ([]bool, error) {
	return lookupArray(d, key, kindBoolean, (*document.Document).Booleans, identity[bool])
}

func (d *Data) GetLongArray(key string) ([]int64, error) {
	return lookupArray(d, key, kindLong, (*document.Document).Longs, identity[int64])
}

func (d *Data) GetDoubleArray(key string) ([]float64, error) {
	return lookupArray(d, key, kindDouble, (*document.Document).Doubles, identity[float64])
}

func (d *Data) GetFloatArray(key string) ([]float32, error) {
	return lookupArray(d, key, kindFloat, (*document.Document).Doubles, narrowFloat)
}

func (d *Data) GetIntArray(key string) ([]int32, error) {
	return lookupArray(d, key, kindInt, (*document.Document).Longs, narrowInt)
}

func (d *Data) GetStringList(key string) ([]string, error) {
	return lookupArray(d, key, kindString, (*document.Document).Strings, identity[string])
}

func (d *Data) GetBytesList(key string) ([][]byte, error) {
	return lookupArray(d, key, kindBytes, (*document.Document).Bytes, cloneBytes)
}

// GetData returns the nested container at key, nil when unset. The result
// carries the child spec and the side-bag entries that belong to it.
func (d *Data) GetData(key string) (*Data, error) {
	if err := d.v.validateRead(key, kindData, false, nil); err != nil {
		return nil, err
	}
	docs, _, err := d.doc.Documents(key)
	if err != nil {
		return nil, invalidArgf(key, "data type does not match: %v", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return d.wrap(key, docs[0], d.extras.Nested(extrasKey(key)))
}

// GetDataList returns the nested containers at key, nil when unset.
func (d *Data) GetDataList(key string) ([]*Data, error) {
	if err := d.v.validateRead(key, kindData, true, nil); err != nil {
		return nil, err
	}
	docs, ok, err := d.doc.Documents(key)
	if err != nil {
		return nil, invalidArgf(key, "data type does not match: %v", err)
	}
	if !ok {
		return nil, nil
	}
	out := make([]*Data, len(docs))
	for i, doc := range docs {
		child, err := d.wrap(key, doc, d.extras.Nested(extrasIndexKey(key, i)))
		if err != nil {
			return nil, err
		}
		out[i] = child
	}
	return out, nil
}

func (d *Data) wrap(key string, doc *document.Document, extras *document.Extras) (*Data, error) {
	v, err := d.v.child(key, doc.SchemaType())
	if err != nil {
		return nil, err
	}
	return &Data{v: v, doc: doc, extras: extras}, nil
}

// GetPendingIntent returns the platform handle at key, nil when unset.
// Handles are read from the side bag only.
func (d *Data) GetPendingIntent(key string) (PlatformHandle, error) {
	if err := d.v.validateRead(key, kindPendingIntent, false, nil); err != nil {
		return nil, err
	}
	raw, ok := d.extras.Get(extrasKey(key))
	if !ok {
		if d.v.requires(key) {
			return nil, invalidArgf(key, "required value is missing")
		}
		return nil, nil
	}
	h, ok := raw.(PlatformHandle)
	if !ok {
		return nil, invalidArgf(key, "data type does not match: %T is not a platform handle", raw)
	}
	return h, nil
}

// GetPendingIntentList returns the platform handles at key, nil when unset.
func (d *Data) GetPendingIntentList(key string) ([]PlatformHandle, error) {
	if err := d.v.validateRead(key, kindPendingIntent, true, nil); err != nil {
		return nil, err
	}
	raw, ok := d.extras.Get(extrasKey(key))
	if !ok {
		return nil, nil
	}
	hs, ok := raw.([]PlatformHandle)
	if !ok {
		return nil, invalidArgf(key, "data type does not match: %T is not a platform handle list", raw)
	}
	return append([]PlatformHandle{}, hs...), nil
}
