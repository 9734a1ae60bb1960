// Package jsondata converts between agent-facing JSON objects and
// appfunctiondata containers, driven by the container's spec.
//
// Longs and ints are JSON integers, floats and doubles JSON numbers, byte
// strings base64 text, nested containers JSON objects. Platform handles have
// no JSON form: Encode omits them and Decode rejects them.
package jsondata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ggoodman/appfunctions-go/appfunctiondata"
	"github.com/ggoodman/appfunctions-go/metadata"
)

func invalid(path, format string, args ...any) error {
	return &appfunctiondata.InvalidArgumentError{Key: path, Reason: fmt.Sprintf(format, args...)}
}

func join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// valueKind resolves references and allOf types to the kind used for
// conversion.
func valueKind(dt metadata.DataType) metadata.Kind {
	switch dt.Kind() {
	case metadata.KindReference, metadata.KindAllOf:
		return metadata.KindObject
	default:
		return dt.Kind()
	}
}

// Encode renders d as a JSON-compatible map. d must carry a spec.
func Encode(d *appfunctiondata.Data) (map[string]any, error) {
	return encodeAt(d, "")
}

func encodeAt(d *appfunctiondata.Data, path string) (map[string]any, error) {
	spec, ok := d.Spec()
	if !ok {
		return nil, invalid(path, "container %q has no schema", d.QualifiedName())
	}
	out := make(map[string]any)
	for _, key := range spec.Keys() {
		if !d.ContainsKey(key) {
			continue
		}
		dt, _ := spec.DataType(key)
		v, skip, err := encodeValue(d, key, dt, join(path, key))
		if err != nil {
			return nil, err
		}
		if !skip {
			out[key] = v
		}
	}
	return out, nil
}

func encodeValue(d *appfunctiondata.Data, key string, dt metadata.DataType, path string) (any, bool, error) {
	switch valueKind(dt) {
	case metadata.KindBoolean:
		v, err := d.GetBoolean(key)
		return v, false, err
	case metadata.KindLong:
		v, err := d.GetLong(key)
		return v, false, err
	case metadata.KindInt:
		v, err := d.GetInt(key)
		return v, false, err
	case metadata.KindDouble:
		v, err := d.GetDouble(key)
		if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return nil, false, invalid(path, "%v has no JSON form", v)
		}
		return v, false, err
	case metadata.KindFloat:
		v, err := d.GetFloat(key)
		if err == nil && (math.IsNaN(float64(v)) || math.IsInf(float64(v), 0)) {
			return nil, false, invalid(path, "%v has no JSON form", v)
		}
		return v, false, err
	case metadata.KindString:
		v, err := d.GetString(key)
		return v, false, err
	case metadata.KindBytes:
		v, err := d.GetBytes(key)
		return v, false, err
	case metadata.KindPendingIntent:
		return nil, true, nil
	case metadata.KindObject:
		child, err := d.GetData(key)
		if err != nil || child == nil {
			return nil, child == nil, err
		}
		m, err := encodeAt(child, path)
		return m, false, err
	case metadata.KindArray:
		return encodeArray(d, key, dt.(*metadata.ArrayType), path)
	default:
		return nil, false, invalid(path, "unsupported type %v", dt)
	}
}

func encodeArray(d *appfunctiondata.Data, key string, arr *metadata.ArrayType, path string) (any, bool, error) {
	switch valueKind(arr.Item) {
	case metadata.KindBoolean:
		v, err := d.GetBooleanArray(key)
		return v, false, err
	case metadata.KindLong:
		v, err := d.GetLongArray(key)
		return v, false, err
	case metadata.KindInt:
		v, err := d.GetIntArray(key)
		return v, false, err
	case metadata.KindDouble:
		v, err := d.GetDoubleArray(key)
		return v, false, err
	case metadata.KindFloat:
		v, err := d.GetFloatArray(key)
		return v, false, err
	case metadata.KindString:
		v, err := d.GetStringList(key)
		return v, false, err
	case metadata.KindBytes:
		v, err := d.GetBytesList(key)
		return v, false, err
	case metadata.KindPendingIntent:
		return nil, true, nil
	case metadata.KindObject:
		children, err := d.GetDataList(key)
		if err != nil {
			return nil, false, err
		}
		out := make([]any, len(children))
		for i, child := range children {
			m, err := encodeAt(child, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, false, err
			}
			out[i] = m
		}
		return out, false, nil
	default:
		return nil, false, invalid(path, "unsupported item type %v", arr.Item)
	}
}

// Marshal encodes d as JSON.
func Marshal(d *appfunctiondata.Data) ([]byte, error) {
	m, err := Encode(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Decode parses raw, a JSON object, into a container validated against
// spec. Unknown properties, missing required properties, nulls in
// non-nullable slots and out of range numbers are rejected. An empty or null
// raw value decodes to an empty container. Anything after the object, even a
// second object, is rejected.
func Decode(spec *appfunctiondata.DataSpec, raw json.RawMessage) (*appfunctiondata.Data, error) {
	var m map[string]any
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&m); err != nil {
			return nil, invalid("", "malformed JSON object: %v", err)
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, invalid("", "unexpected data after JSON object")
		}
	}
	return DecodeMap(spec, m)
}

// DecodeMap is Decode for an already parsed object. Numbers may be
// json.Number or any Go numeric type.
func DecodeMap(spec *appfunctiondata.DataSpec, m map[string]any) (*appfunctiondata.Data, error) {
	return decodeObject(spec, m, "")
}

func decodeObject(spec *appfunctiondata.DataSpec, m map[string]any, path string) (*appfunctiondata.Data, error) {
	b := appfunctiondata.NewBuilderForSpec(spec)
	for _, key := range sortedKeys(m) {
		p := join(path, key)
		dt, ok := spec.DataType(key)
		if !ok {
			return nil, invalid(p, "unknown property")
		}
		v := m[key]
		if v == nil {
			if dt.IsNullable() || !spec.IsRequired(key) {
				continue
			}
			return nil, invalid(p, "null is not allowed")
		}
		if err := decodeValue(b, spec, key, dt, v, p); err != nil {
			return nil, err
		}
	}
	d := b.Build()
	for _, missing := range d.MissingRequired() {
		dt, _ := spec.DataType(missing)
		if valueKind(dt) == metadata.KindPendingIntent {
			continue
		}
		return nil, invalid(join(path, missing), "required property is missing")
	}
	return d, nil
}

func decodeValue(b *appfunctiondata.Builder, spec *appfunctiondata.DataSpec, key string, dt metadata.DataType, v any, path string) error {
	switch valueKind(dt) {
	case metadata.KindBoolean:
		x, ok := v.(bool)
		if !ok {
			return invalid(path, "expected boolean, got %T", v)
		}
		return b.SetBoolean(key, x)
	case metadata.KindLong:
		x, err := toInt64(v, path)
		if err != nil {
			return err
		}
		return b.SetLong(key, x)
	case metadata.KindInt:
		x, err := toInt32(v, path)
		if err != nil {
			return err
		}
		return b.SetInt(key, x)
	case metadata.KindDouble:
		x, err := toFloat64(v, path)
		if err != nil {
			return err
		}
		return b.SetDouble(key, x)
	case metadata.KindFloat:
		x, err := toFloat32(v, path)
		if err != nil {
			return err
		}
		return b.SetFloat(key, x)
	case metadata.KindString:
		x, ok := v.(string)
		if !ok {
			return invalid(path, "expected string, got %T", v)
		}
		return b.SetString(key, x)
	case metadata.KindBytes:
		x, err := toBytes(v, path)
		if err != nil {
			return err
		}
		return b.SetBytes(key, x)
	case metadata.KindPendingIntent:
		return invalid(path, "platform handles cannot be supplied as JSON")
	case metadata.KindObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return invalid(path, "expected object, got %T", v)
		}
		childSpec, err := spec.PropertyObjectSpec(key)
		if err != nil {
			return err
		}
		child, err := decodeObject(childSpec, obj, path)
		if err != nil {
			return err
		}
		return b.SetData(key, child)
	case metadata.KindArray:
		items, ok := v.([]any)
		if !ok {
			return invalid(path, "expected array, got %T", v)
		}
		return decodeArray(b, spec, key, dt.(*metadata.ArrayType), items, path)
	default:
		return invalid(path, "unsupported type %v", dt)
	}
}

func decodeItems[T any](items []any, path string, conv func(any, string) (T, error)) ([]T, error) {
	out := make([]T, len(items))
	for i, item := range items {
		p := path + "[" + strconv.Itoa(i) + "]"
		if item == nil {
			return nil, invalid(p, "null is not allowed")
		}
		v, err := conv(item, p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeArray(b *appfunctiondata.Builder, spec *appfunctiondata.DataSpec, key string, arr *metadata.ArrayType, items []any, path string) error {
	switch valueKind(arr.Item) {
	case metadata.KindBoolean:
		vals, err := decodeItems(items, path, func(v any, p string) (bool, error) {
			x, ok := v.(bool)
			if !ok {
				return false, invalid(p, "expected boolean, got %T", v)
			}
			return x, nil
		})
		if err != nil {
			return err
		}
		return b.SetBooleanArray(key, vals)
	case metadata.KindLong:
		vals, err := decodeItems(items, path, toInt64)
		if err != nil {
			return err
		}
		return b.SetLongArray(key, vals)
	case metadata.KindInt:
		vals, err := decodeItems(items, path, toInt32)
		if err != nil {
			return err
		}
		return b.SetIntArray(key, vals)
	case metadata.KindDouble:
		vals, err := decodeItems(items, path, toFloat64)
		if err != nil {
			return err
		}
		return b.SetDoubleArray(key, vals)
	case metadata.KindFloat:
		vals, err := decodeItems(items, path, toFloat32)
		if err != nil {
			return err
		}
		return b.SetFloatArray(key, vals)
	case metadata.KindString:
		vals, err := decodeItems(items, path, func(v any, p string) (string, error) {
			x, ok := v.(string)
			if !ok {
				return "", invalid(p, "expected string, got %T", v)
			}
			return x, nil
		})
		if err != nil {
			return err
		}
		return b.SetStringList(key, vals)
	case metadata.KindBytes:
		vals, err := decodeItems(items, path, toBytes)
		if err != nil {
			return err
		}
		return b.SetBytesList(key, vals)
	case metadata.KindObject:
		childSpec, err := spec.PropertyObjectSpec(key)
		if err != nil {
			return err
		}
		children, err := decodeItems(items, path, func(v any, p string) (*appfunctiondata.Data, error) {
			obj, ok := v.(map[string]any)
			if !ok {
				return nil, invalid(p, "expected object, got %T", v)
			}
			return decodeObject(childSpec, obj, p)
		})
		if err != nil {
			return err
		}
		return b.SetDataList(key, children)
	case metadata.KindPendingIntent:
		return invalid(path, "platform handles cannot be supplied as JSON")
	default:
		return invalid(path, "unsupported item type %v", arr.Item)
	}
}
