package metadata

import "slices"

// Equal reports whether a and b describe the same shape. Descriptions are
// ignored; nullability, enum sets, required sets and property order are not.
func Equal(a, b DataType) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || a.IsNullable() != b.IsNullable() {
		return false
	}
	switch x := a.(type) {
	case *PrimitiveType:
		_, ok := b.(*PrimitiveType)
		return ok
	case *IntType:
		y, ok := b.(*IntType)
		return ok && slices.Equal(x.EnumValues, y.EnumValues)
	case *StringType:
		y, ok := b.(*StringType)
		return ok && slices.Equal(x.EnumValues, y.EnumValues)
	case *ArrayType:
		y, ok := b.(*ArrayType)
		return ok && Equal(x.Item, y.Item)
	case *ObjectType:
		y, ok := b.(*ObjectType)
		return ok && objectsEqual(x, y)
	case *ReferenceType:
		y, ok := b.(*ReferenceType)
		return ok && x.Ref == y.Ref
	case *AllOfType:
		y, ok := b.(*AllOfType)
		if !ok || x.QualifiedName != y.QualifiedName || len(x.MatchAll) != len(y.MatchAll) {
			return false
		}
		for i := range x.MatchAll {
			if !Equal(x.MatchAll[i], y.MatchAll[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func objectsEqual(x, y *ObjectType) bool {
	if x.QualifiedName != y.QualifiedName || len(x.Properties) != len(y.Properties) {
		return false
	}
	for i := range x.Properties {
		if x.Properties[i].Name != y.Properties[i].Name || !Equal(x.Properties[i].Type, y.Properties[i].Type) {
			return false
		}
	}
	if len(x.Required) != len(y.Required) {
		return false
	}
	for _, r := range x.Required {
		if !slices.Contains(y.Required, r) {
			return false
		}
	}
	return true
}
