package appfunctiondata

// validator is the behaviour that differs between validated containers
// (backed by a *DataSpec) and legacy containers (no schema). Accessors call
// it unconditionally.
type validator interface {
	validateRead(key string, k valueKind, collection bool, value any) error
	validateWrite(key string, k valueKind, collection bool, value any) error
	requires(key string) bool
	declares(key string) bool
	typeName() string
	// syntheticString returns values that do not live in either bag.
	syntheticString(key, docID string) (string, bool)
	// child returns the validator for a container nested at key. schemaType
	// is the nested document's own type name.
	child(key, schemaType string) (validator, error)
	checkNested(key string, nested validator) error
}

// legacyIDKey is the synthetic property every legacy container exposes.
const legacyIDKey = "id"

// legacy is the validator of containers built without a schema. It accepts
// every read and write.
type legacy struct {
	qualifiedName string
}

func (legacy) validateRead(string, valueKind, bool, any) error  { return nil }
func (legacy) validateWrite(string, valueKind, bool, any) error { return nil }
func (legacy) requires(string) bool                             { return false }
func (legacy) declares(string) bool                             { return true }
func (l legacy) typeName() string                               { return l.qualifiedName }
func (legacy) checkNested(string, validator) error              { return nil }

func (legacy) syntheticString(key, docID string) (string, bool) {
	if key == legacyIDKey {
		return docID, true
	}
	return "", false
}

func (legacy) child(_ string, schemaType string) (validator, error) {
	return legacy{qualifiedName: schemaType}, nil
}

var (
	_ validator = (*DataSpec)(nil)
	_ validator = legacy{}
)
