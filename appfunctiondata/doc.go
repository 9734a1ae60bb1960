// Package appfunctiondata implements the schema-validated container used to
// carry app function parameters and return values.
//
// A Data holds named values of a fixed set of kinds: boolean, long, double,
// string, int, float, bytes, their array forms, nested containers and
// platform handles. Validated containers are built against a DataSpec,
// derived from a metadata.ObjectType or a function's parameter list, and
// every read and write is checked against it:
//
//	b := appfunctiondata.NewBuilder(noteType, components)
//	if err := b.SetString("title", "Groceries"); err != nil {
//		return err
//	}
//	note := b.Build()
//	title, err := note.GetString("title")
//
// Containers built with NewLegacyBuilder skip validation and expose a
// synthetic "id" key.
//
// Scalar getters come in three forms: Get<Kind> returns the zero value for
// an unset optional slot, Get<Kind>Or substitutes a default, and
// Lookup<Kind> reports presence. Array getters distinguish an unset slot
// (nil) from an empty one.
//
// Failures are returned as errors: ErrInvalidArgument for caller mistakes,
// ErrIllegalState for broken invariants, ErrSerialization for Registry
// conversions. A failed builder call never changes the builder.
//
// Go types are converted to and from containers through a Registry of
// factories; see Register, Serialize and Deserialize.
package appfunctiondata
