package metadata

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

var reflectCache sync.Map // reflect.Type -> *ObjectType

// ReflectObject derives an ObjectType from the struct type T.
//
// Property names, descriptions, enums and the required set come from the
// JSON schema that invopop/jsonschema reflects for T (so `json` and
// `jsonschema` struct tags apply). The descriptor kind of each property is
// chosen from the Go field type:
//
//	bool                         -> Boolean
//	int, int8, int16, int32      -> Int
//	int64, uint*                 -> Long
//	float32                      -> Float
//	float64                      -> Double
//	string                       -> String
//	[]byte                       -> Bytes
//	[]T                          -> Array of T
//	struct                       -> Object (QualifiedName "<pkgpath>.<Name>")
//	*T                           -> T, nullable and never required
//
// Maps, interfaces, channels and functions are rejected. Results are cached
// per type.
func ReflectObject[T any]() (*ObjectType, error) {
	return ReflectObjectOf(reflect.TypeFor[T]())
}

// ReflectObjectOf is the reflect.Type form of ReflectObject.
func ReflectObjectOf(t reflect.Type) (*ObjectType, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("metadata: reflect expects a struct, got %s", t.Kind())
	}
	if v, ok := reflectCache.Load(t); ok {
		return v.(*ObjectType), nil
	}
	obj, err := reflectStruct(t, map[reflect.Type]bool{})
	if err != nil {
		return nil, err
	}
	actual, _ := reflectCache.LoadOrStore(t, obj)
	return actual.(*ObjectType), nil
}

func reflectStruct(t reflect.Type, visiting map[reflect.Type]bool) (*ObjectType, error) {
	if visiting[t] {
		return nil, fmt.Errorf("metadata: recursive type %s is not supported", t)
	}
	visiting[t] = true
	defer delete(visiting, t)

	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	root := r.ReflectFromType(t)
	if root == nil || root.Type != "object" {
		return nil, fmt.Errorf("metadata: %s did not reflect to an object schema", t)
	}

	fields := map[string]reflect.StructField{}
	collectFields(t, fields)

	obj := &ObjectType{QualifiedName: qualifiedName(t), Description: root.Description}
	required := map[string]struct{}{}
	for _, n := range root.Required {
		required[n] = struct{}{}
	}

	if root.Properties != nil {
		for pair := root.Properties.Oldest(); pair != nil; pair = pair.Next() {
			name := pair.Key
			sf, ok := fields[name]
			if !ok {
				return nil, fmt.Errorf("metadata: property %s of %s not matched to a struct field", name, t)
			}
			prop := unwrapNullable(pair.Value)
			dt, err := reflectField(sf.Type, prop, visiting)
			if err != nil {
				return nil, fmt.Errorf("metadata: %s.%s: %w", t.Name(), sf.Name, err)
			}
			obj.Properties = append(obj.Properties, Property{Name: name, Type: dt})
			if _, req := required[name]; req && !dt.IsNullable() {
				obj.Required = append(obj.Required, name)
			}
		}
	}
	return obj, nil
}

func reflectField(ft reflect.Type, s *jsonschema.Schema, visiting map[reflect.Type]bool) (DataType, error) {
	nullable := false
	if ft.Kind() == reflect.Pointer {
		nullable = true
		ft = ft.Elem()
	}
	desc := ""
	if s != nil {
		desc = s.Description
	}

	switch ft.Kind() {
	case reflect.Bool:
		return &PrimitiveType{Type: KindBoolean, Nullable: nullable, Description: desc}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		t := &IntType{Nullable: nullable, Description: desc}
		if s != nil {
			for _, ev := range s.Enum {
				v, err := toInt32(ev)
				if err != nil {
					return nil, err
				}
				t.EnumValues = append(t.EnumValues, v)
			}
		}
		return t, nil
	case reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &PrimitiveType{Type: KindLong, Nullable: nullable, Description: desc}, nil
	case reflect.Float32:
		return &PrimitiveType{Type: KindFloat, Nullable: nullable, Description: desc}, nil
	case reflect.Float64:
		return &PrimitiveType{Type: KindDouble, Nullable: nullable, Description: desc}, nil
	case reflect.String:
		t := &StringType{Nullable: nullable, Description: desc}
		if s != nil {
			for _, ev := range s.Enum {
				if str, ok := ev.(string); ok {
					t.EnumValues = append(t.EnumValues, str)
				}
			}
		}
		return t, nil
	case reflect.Slice, reflect.Array:
		if ft.Elem().Kind() == reflect.Uint8 {
			return &PrimitiveType{Type: KindBytes, Nullable: nullable, Description: desc}, nil
		}
		var itemSchema *jsonschema.Schema
		if s != nil {
			itemSchema = unwrapNullable(s.Items)
		}
		item, err := reflectField(ft.Elem(), itemSchema, visiting)
		if err != nil {
			return nil, err
		}
		return &ArrayType{Item: item, Nullable: nullable, Description: desc}, nil
	case reflect.Struct:
		obj, err := reflectStruct(ft, visiting)
		if err != nil {
			return nil, err
		}
		nested := *obj
		nested.Nullable = nullable
		if desc != "" {
			nested.Description = desc
		}
		return &nested, nil
	default:
		return nil, fmt.Errorf("unsupported field kind %s", ft.Kind())
	}
}

// unwrapNullable strips the oneOf [T, null] wrapper invopop emits for fields
// tagged `jsonschema:"nullable"`.
func unwrapNullable(s *jsonschema.Schema) *jsonschema.Schema {
	if s == nil || len(s.OneOf) != 2 {
		return s
	}
	for _, member := range s.OneOf {
		if member != nil && member.Type != "null" {
			return member
		}
	}
	return s
}

func collectFields(t reflect.Type, out map[string]reflect.StructField) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("json") == "" {
			collectFields(f.Type, out)
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag := f.Tag.Get("json"); tag != "" {
			seg := strings.Split(tag, ",")[0]
			if seg == "-" {
				continue
			}
			if seg != "" {
				name = seg
			}
		}
		out[name] = f
	}
}

func qualifiedName(t reflect.Type) string {
	if t.Name() == "" {
		return ""
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
