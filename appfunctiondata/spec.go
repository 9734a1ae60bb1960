package appfunctiondata

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ggoodman/appfunctions-go/metadata"
)

// valueKind is the shape an accessor reads or writes.
type valueKind int

const (
	kindBoolean valueKind = iota
	kindLong
	kindDouble
	kindString
	kindBytes
	kindInt
	kindFloat
	kindData
	kindPendingIntent
)

func (k valueKind) String() string {
	switch k {
	case kindBoolean:
		return "boolean"
	case kindLong:
		return "long"
	case kindDouble:
		return "double"
	case kindString:
		return "string"
	case kindBytes:
		return "bytes"
	case kindInt:
		return "int"
	case kindFloat:
		return "float"
	case kindData:
		return "data"
	case kindPendingIntent:
		return "pendingIntent"
	default:
		return fmt.Sprintf("valueKind(%d)", int(k))
	}
}

func describeRequest(k valueKind, collection bool) string {
	if collection {
		return k.String() + "[]"
	}
	return k.String()
}

func requestKindOf(k metadata.Kind) (valueKind, bool) {
	switch k {
	case metadata.KindBoolean:
		return kindBoolean, true
	case metadata.KindLong:
		return kindLong, true
	case metadata.KindDouble:
		return kindDouble, true
	case metadata.KindString:
		return kindString, true
	case metadata.KindBytes:
		return kindBytes, true
	case metadata.KindInt:
		return kindInt, true
	case metadata.KindFloat:
		return kindFloat, true
	case metadata.KindPendingIntent:
		return kindPendingIntent, true
	case metadata.KindObject, metadata.KindReference, metadata.KindAllOf:
		return kindData, true
	default:
		return 0, false
	}
}

// accepts reports whether dt accepts a (k, collection) request. Every
// descriptor accepts exactly one pairing; arrays of arrays accept none.
func accepts(dt metadata.DataType, k valueKind, collection bool) bool {
	if arr, ok := dt.(*metadata.ArrayType); ok {
		if !collection || arr.Item == nil {
			return false
		}
		want, ok := requestKindOf(arr.Item.Kind())
		return ok && want == k
	}
	want, ok := requestKindOf(dt.Kind())
	return ok && !collection && want == k
}

func checkConstraint(key string, dt metadata.DataType, value any) error {
	switch t := dt.(type) {
	case *metadata.ArrayType:
		return checkConstraint(key, t.Item, value)
	case *metadata.IntType:
		switch v := value.(type) {
		case int32:
			if !t.Allows(v) {
				return invalidArgf(key, "value %d is not one of %v", v, t.EnumValues)
			}
		case []int32:
			for _, e := range v {
				if !t.Allows(e) {
					return invalidArgf(key, "value %d is not one of %v", e, t.EnumValues)
				}
			}
		}
	case *metadata.StringType:
		switch v := value.(type) {
		case string:
			if !t.Allows(v) {
				return invalidArgf(key, "value %q is not one of %q", v, t.EnumValues)
			}
		case []string:
			for _, e := range v {
				if !t.Allows(e) {
					return invalidArgf(key, "value %q is not one of %q", e, t.EnumValues)
				}
			}
		}
	}
	return nil
}

// DataSpec is a resolved, queryable view over either an object's properties
// or a function's parameter list, paired with the components table that
// references resolve against. A DataSpec is immutable.
type DataSpec struct {
	qualifiedName string
	keys          []string
	types         map[string]metadata.DataType
	required      map[string]bool
	components    metadata.Components
}

// NewObjectSpec returns a spec over the properties of obj.
func NewObjectSpec(obj *metadata.ObjectType, components metadata.Components) *DataSpec {
	s := &DataSpec{
		qualifiedName: obj.QualifiedName,
		types:         make(map[string]metadata.DataType, len(obj.Properties)),
		required:      make(map[string]bool, len(obj.Required)),
		components:    components,
	}
	for _, p := range obj.Properties {
		if _, dup := s.types[p.Name]; !dup {
			s.keys = append(s.keys, p.Name)
		}
		s.types[p.Name] = p.Type
	}
	for _, r := range obj.Required {
		s.required[r] = true
	}
	return s
}

// NewParametersSpec returns a spec over a function's parameter list.
func NewParametersSpec(params []metadata.ParameterMetadata, components metadata.Components) *DataSpec {
	s := &DataSpec{
		types:      make(map[string]metadata.DataType, len(params)),
		required:   make(map[string]bool, len(params)),
		components: components,
	}
	for _, p := range params {
		if _, dup := s.types[p.Name]; !dup {
			s.keys = append(s.keys, p.Name)
		}
		s.types[p.Name] = p.DataType
		s.required[p.Name] = p.IsRequired
	}
	return s
}

// ParametersSpec returns the spec a function's arguments are validated
// against.
func ParametersSpec(f *metadata.FunctionMetadata) *DataSpec {
	return NewParametersSpec(f.Parameters, f.Components)
}

// ResponseSpec returns the spec of the container a function returns: a
// single property, metadata.ReturnValueKey, holding the declared value.
func ResponseSpec(f *metadata.FunctionMetadata) *DataSpec {
	return NewObjectSpec(f.ResponseObject(), f.Components)
}

// QualifiedName returns the schema type name, empty for parameter specs and
// anonymous objects.
func (s *DataSpec) QualifiedName() string { return s.qualifiedName }

// Components returns the table references resolve against.
func (s *DataSpec) Components() metadata.Components { return s.components }

// Keys returns the declared keys in declaration order.
func (s *DataSpec) Keys() []string { return slices.Clone(s.keys) }

// DataType returns the descriptor declared for key.
func (s *DataSpec) DataType(key string) (metadata.DataType, bool) {
	dt, ok := s.types[key]
	return dt, ok && dt != nil
}

// IsRequired reports whether key must be present.
func (s *DataSpec) IsRequired(key string) bool { return s.required[key] }

// ContainsMetadata reports whether key is declared.
func (s *DataSpec) ContainsMetadata(key string) bool {
	_, ok := s.DataType(key)
	return ok
}

// PropertyObjectSpec returns the spec for the object-shaped property key. For
// arrays the item type is used; references are resolved and allOf types are
// flattened. A dangling reference is an ErrIllegalState error and an
// undeclared key an invalid argument. Calling it on a property that is not
// object shaped is a programming error and panics.
func (s *DataSpec) PropertyObjectSpec(key string) (*DataSpec, error) {
	dt, ok := s.DataType(key)
	if !ok {
		return nil, invalidArgf(key, "no object is declared")
	}
	return s.objectSpecFor(key, dt)
}

func (s *DataSpec) objectSpecFor(key string, dt metadata.DataType) (*DataSpec, error) {
	switch t := dt.(type) {
	case *metadata.ArrayType:
		return s.objectSpecFor(key, t.Item)
	case *metadata.ObjectType:
		return NewObjectSpec(t, s.components), nil
	case *metadata.ReferenceType:
		resolved, err := s.components.Dereference(t)
		if err != nil {
			if errors.Is(err, metadata.ErrUnresolvedReference) {
				return nil, illegalStatef("unable to resolve %s", t.Ref)
			}
			return nil, illegalStatef("%v", err)
		}
		return s.objectSpecFor(key, resolved)
	case *metadata.AllOfType:
		obj, err := t.PseudoObject(s.components)
		if err != nil {
			return nil, illegalStatef("%v", err)
		}
		return NewObjectSpec(obj, s.components), nil
	default:
		panic(fmt.Sprintf("appfunctiondata: property %s is %v, not an object", key, dt))
	}
}

// Equal reports structural equality. References are compared by the shape
// they resolve to, so specs built against different component tables are
// equal when the shapes agree.
func (s *DataSpec) Equal(o *DataSpec) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	if s.qualifiedName != o.qualifiedName || !slices.Equal(s.keys, o.keys) {
		return false
	}
	c := &shapeComparer{ca: s.components, cb: o.components, seen: map[[2]string]bool{}}
	for _, k := range s.keys {
		if s.required[k] != o.required[k] || !c.equal(s.types[k], o.types[k]) {
			return false
		}
	}
	return true
}

func (s *DataSpec) validate(op, key string, k valueKind, collection bool, value any) error {
	dt, ok := s.DataType(key)
	if !ok {
		return invalidArgf(key, "no value should be %s at %s", op, key)
	}
	if !accepts(dt, k, collection) {
		return invalidArgf(key, "requested %s but %s is declared as %v", describeRequest(k, collection), key, dt)
	}
	if value == nil {
		return nil
	}
	return checkConstraint(key, dt, value)
}

func (s *DataSpec) validateRead(key string, k valueKind, collection bool, value any) error {
	return s.validate("read", key, k, collection, value)
}

func (s *DataSpec) validateWrite(key string, k valueKind, collection bool, value any) error {
	return s.validate("set", key, k, collection, value)
}

func (s *DataSpec) requires(key string) bool { return s.IsRequired(key) }

func (s *DataSpec) declares(key string) bool { return s.ContainsMetadata(key) }

func (s *DataSpec) typeName() string { return s.qualifiedName }

func (s *DataSpec) syntheticString(string, string) (string, bool) { return "", false }

func (s *DataSpec) child(key string, _ string) (validator, error) {
	cs, err := s.PropertyObjectSpec(key)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *DataSpec) checkNested(key string, nested validator) error {
	want, err := s.PropertyObjectSpec(key)
	if err != nil {
		return err
	}
	got, ok := nested.(*DataSpec)
	if !ok {
		return invalidArgf(key, "nested value has no schema; expected %s", describeSpec(want))
	}
	if !want.Equal(got) {
		return invalidArgf(key, "nested value %s does not match declared %s", describeSpec(got), describeSpec(want))
	}
	return nil
}

func describeSpec(s *DataSpec) string {
	if s.qualifiedName != "" {
		return s.qualifiedName
	}
	return fmt.Sprintf("object%v", s.keys)
}

// shapeComparer compares descriptors after resolving references against each
// side's own components table. Reference pairs already under comparison are
// assumed equal, which terminates recursive types.
type shapeComparer struct {
	ca, cb metadata.Components
	seen   map[[2]string]bool
}

func (c *shapeComparer) equal(a, b metadata.DataType) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.IsNullable() != b.IsNullable() {
		return false
	}
	ra, aIsRef := a.(*metadata.ReferenceType)
	rb, bIsRef := b.(*metadata.ReferenceType)
	if aIsRef && bIsRef {
		pair := [2]string{ra.Ref, rb.Ref}
		if c.seen[pair] {
			return true
		}
		c.seen[pair] = true
	}

	a, err := resolveShape(a, c.ca)
	if err != nil {
		return false
	}
	b, err = resolveShape(b, c.cb)
	if err != nil {
		return false
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *metadata.ArrayType:
		y, ok := b.(*metadata.ArrayType)
		return ok && c.equal(x.Item, y.Item)
	case *metadata.ObjectType:
		y, ok := b.(*metadata.ObjectType)
		if !ok || x.QualifiedName != y.QualifiedName || len(x.Properties) != len(y.Properties) || len(x.Required) != len(y.Required) {
			return false
		}
		for i := range x.Properties {
			if x.Properties[i].Name != y.Properties[i].Name || !c.equal(x.Properties[i].Type, y.Properties[i].Type) {
				return false
			}
		}
		for _, r := range x.Required {
			if !y.IsRequired(r) {
				return false
			}
		}
		return true
	case *metadata.IntType:
		y, ok := b.(*metadata.IntType)
		return ok && slices.Equal(x.EnumValues, y.EnumValues)
	case *metadata.StringType:
		y, ok := b.(*metadata.StringType)
		return ok && slices.Equal(x.EnumValues, y.EnumValues)
	default:
		return true
	}
}

// resolveShape dereferences references and flattens allOf types. Nullability
// of the original descriptor has already been compared by the caller.
func resolveShape(dt metadata.DataType, c metadata.Components) (metadata.DataType, error) {
	dt, err := c.Dereference(dt)
	if err != nil {
		return nil, err
	}
	if all, ok := dt.(*metadata.AllOfType); ok {
		return all.PseudoObject(c)
	}
	return dt, nil
}
