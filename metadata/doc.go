// Package metadata describes the shape of the values an app function accepts
// and returns. It is a small, declarative type system: primitives (int, long,
// float, double, boolean, string, bytes), opaque platform handles, arrays,
// objects, references into a shared components table, and allOf composition.
//
// Descriptors are immutable once constructed. They are usually produced ahead
// of time, either decoded from a published function document (see
// FunctionMetadata, which supports JSON and YAML) or reflected from a Go struct
// with ReflectObject.
//
// # Kinds
//
// Every descriptor reports a Kind. Primitive kinds other than Int and String
// are represented by PrimitiveType; Int and String have dedicated types because
// they may carry an enumerated-value constraint.
//
//	obj := &metadata.ObjectType{
//	    QualifiedName: "com.example.notes.Note",
//	    Properties: []metadata.Property{
//	        {Name: "title", Type: &metadata.StringType{}},
//	        {Name: "priority", Type: &metadata.IntType{EnumValues: []int32{0, 1, 2}}},
//	    },
//	    Required: []string{"title"},
//	}
//
// # References
//
// ReferenceType points at an entry of a Components table by name. Resolution
// happens lazily wherever the descriptor is consumed; a dangling reference is
// reported by the consumer.
//
// # Equality
//
// Equal compares two descriptor trees structurally. Two separately constructed
// descriptors describing the same shape are equal.
package metadata
