package metadata

import (
	"fmt"
	"slices"
)

// Kind identifies a descriptor variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindBoolean
	KindString
	KindBytes
	KindPendingIntent
	KindArray
	KindObject
	KindReference
	KindAllOf
)

var kindNames = map[Kind]string{
	KindInt:           "int",
	KindLong:          "long",
	KindFloat:         "float",
	KindDouble:        "double",
	KindBoolean:       "boolean",
	KindString:        "string",
	KindBytes:         "bytes",
	KindPendingIntent: "pendingIntent",
	KindArray:         "array",
	KindObject:        "object",
	KindReference:     "reference",
	KindAllOf:         "allOf",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, n := range kindNames {
		if n == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// IsPrimitive reports whether values of this kind are stored inline as a
// single scalar.
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindInt, KindLong, KindFloat, KindDouble, KindBoolean, KindString, KindBytes:
		return true
	default:
		return false
	}
}

// DataType is implemented by every descriptor.
type DataType interface {
	Kind() Kind
	IsNullable() bool
	fmt.Stringer
}

// PrimitiveType describes a long, float, double, boolean, bytes or platform
// handle value. Int and String values use IntType and StringType.
type PrimitiveType struct {
	Type        Kind
	Nullable    bool
	Description string
}

func (p *PrimitiveType) Kind() Kind       { return p.Type }
func (p *PrimitiveType) IsNullable() bool { return p.Nullable }
func (p *PrimitiveType) String() string   { return p.Type.String() }

// IntType describes a 32-bit integer, optionally restricted to EnumValues.
type IntType struct {
	EnumValues  []int32
	Nullable    bool
	Description string
}

func (t *IntType) Kind() Kind       { return KindInt }
func (t *IntType) IsNullable() bool { return t.Nullable }
func (t *IntType) String() string {
	if len(t.EnumValues) > 0 {
		return fmt.Sprintf("int%v", t.EnumValues)
	}
	return "int"
}

// Allows reports whether v satisfies the enum constraint, if any.
func (t *IntType) Allows(v int32) bool {
	return len(t.EnumValues) == 0 || slices.Contains(t.EnumValues, v)
}

// StringType describes a string, optionally restricted to EnumValues.
type StringType struct {
	EnumValues  []string
	Nullable    bool
	Description string
}

func (t *StringType) Kind() Kind       { return KindString }
func (t *StringType) IsNullable() bool { return t.Nullable }
func (t *StringType) String() string {
	if len(t.EnumValues) > 0 {
		return fmt.Sprintf("string%q", t.EnumValues)
	}
	return "string"
}

// Allows reports whether v satisfies the enum constraint, if any.
func (t *StringType) Allows(v string) bool {
	return len(t.EnumValues) == 0 || slices.Contains(t.EnumValues, v)
}

// ArrayType describes a repeated value of Item.
type ArrayType struct {
	Item        DataType
	Nullable    bool
	Description string
}

func (a *ArrayType) Kind() Kind       { return KindArray }
func (a *ArrayType) IsNullable() bool { return a.Nullable }
func (a *ArrayType) String() string   { return fmt.Sprintf("array<%v>", a.Item) }

// Property is a named member of an ObjectType.
type Property struct {
	Name string
	Type DataType
}

// ObjectType describes a structured value. Properties are ordered.
type ObjectType struct {
	QualifiedName string
	Properties    []Property
	Required      []string
	Nullable      bool
	Description   string
}

func (o *ObjectType) Kind() Kind       { return KindObject }
func (o *ObjectType) IsNullable() bool { return o.Nullable }
func (o *ObjectType) String() string {
	if o.QualifiedName != "" {
		return "object<" + o.QualifiedName + ">"
	}
	return "object"
}

// Property returns the descriptor declared for name.
func (o *ObjectType) Property(name string) (DataType, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return p.Type, true
		}
	}
	return nil, false
}

// IsRequired reports whether name is listed in Required.
func (o *ObjectType) IsRequired(name string) bool {
	return slices.Contains(o.Required, name)
}

// ReferenceType points at an entry of a Components table.
type ReferenceType struct {
	Ref         string
	Nullable    bool
	Description string
}

func (r *ReferenceType) Kind() Kind       { return KindReference }
func (r *ReferenceType) IsNullable() bool { return r.Nullable }
func (r *ReferenceType) String() string   { return "ref<" + r.Ref + ">" }

// AllOfType composes several object shapes into one.
type AllOfType struct {
	MatchAll      []DataType
	QualifiedName string
	Nullable      bool
	Description   string
}

func (a *AllOfType) Kind() Kind       { return KindAllOf }
func (a *AllOfType) IsNullable() bool { return a.Nullable }
func (a *AllOfType) String() string {
	if a.QualifiedName != "" {
		return "allOf<" + a.QualifiedName + ">"
	}
	return "allOf"
}

// PseudoObject flattens the composed members into a single ObjectType. Members
// may be objects, references to objects, or nested allOf types. Properties keep
// first-declaration order; a later member redeclaring a property replaces its
// descriptor in place.
func (a *AllOfType) PseudoObject(components Components) (*ObjectType, error) {
	out := &ObjectType{QualifiedName: a.QualifiedName, Nullable: a.Nullable, Description: a.Description}
	if err := a.flattenInto(out, components, 0); err != nil {
		return nil, err
	}
	return out, nil
}

const maxCompositionDepth = 32

func (a *AllOfType) flattenInto(out *ObjectType, components Components, depth int) error {
	if depth > maxCompositionDepth {
		return fmt.Errorf("metadata: allOf %q nests too deeply", a.QualifiedName)
	}
	for _, member := range a.MatchAll {
		resolved, err := components.Dereference(member)
		if err != nil {
			return err
		}
		switch m := resolved.(type) {
		case *ObjectType:
			mergeObject(out, m)
		case *AllOfType:
			if err := m.flattenInto(out, components, depth+1); err != nil {
				return err
			}
		default:
			return fmt.Errorf("metadata: allOf %q member %v is not object shaped", a.QualifiedName, member)
		}
	}
	return nil
}

func mergeObject(out, in *ObjectType) {
	for _, p := range in.Properties {
		replaced := false
		for i := range out.Properties {
			if out.Properties[i].Name == p.Name {
				out.Properties[i].Type = p.Type
				replaced = true
				break
			}
		}
		if !replaced {
			out.Properties = append(out.Properties, p)
		}
	}
	for _, r := range in.Required {
		if !slices.Contains(out.Required, r) {
			out.Required = append(out.Required, r)
		}
	}
}

// Convenience constructors for the primitive kinds.

func Long() *PrimitiveType          { return &PrimitiveType{Type: KindLong} }
func Float() *PrimitiveType         { return &PrimitiveType{Type: KindFloat} }
func Double() *PrimitiveType        { return &PrimitiveType{Type: KindDouble} }
func Boolean() *PrimitiveType       { return &PrimitiveType{Type: KindBoolean} }
func Bytes() *PrimitiveType         { return &PrimitiveType{Type: KindBytes} }
func PendingIntent() *PrimitiveType { return &PrimitiveType{Type: KindPendingIntent} }
func Int() *IntType                 { return &IntType{} }
func String() *StringType           { return &StringType{} }

// ArrayOf returns an ArrayType with the given item descriptor.
func ArrayOf(item DataType) *ArrayType { return &ArrayType{Item: item} }

// Ref returns a ReferenceType pointing at name.
func Ref(name string) *ReferenceType { return &ReferenceType{Ref: name} }

var (
	_ DataType = (*PrimitiveType)(nil)
	_ DataType = (*IntType)(nil)
	_ DataType = (*StringType)(nil)
	_ DataType = (*ArrayType)(nil)
	_ DataType = (*ObjectType)(nil)
	_ DataType = (*ReferenceType)(nil)
	_ DataType = (*AllOfType)(nil)
)
