package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// ReturnValueKey is the property under which a function's return value is
// carried inside a result container.
const ReturnValueKey = "androidAppfunctionsReturnValue"

// SchemaMetadata identifies a well-known function schema an app function
// implements (for example category "notes", name "createNote", version 1).
type SchemaMetadata struct {
	Category string
	Name     string
	Version  int64
}

// ParameterMetadata describes one named function parameter.
type ParameterMetadata struct {
	Name        string
	IsRequired  bool
	DataType    DataType
	Description string
}

// ResponseMetadata describes a function's return value.
type ResponseMetadata struct {
	ValueType   DataType
	Description string
}

// FunctionMetadata is the published contract of a single app function.
type FunctionMetadata struct {
	ID               string
	PackageName      string
	Description      string
	EnabledByDefault bool
	Schema           *SchemaMetadata
	Parameters       []ParameterMetadata
	Response         ResponseMetadata
	Components       Components
}

// Parameter returns the parameter called name.
func (f *FunctionMetadata) Parameter(name string) (ParameterMetadata, bool) {
	for _, p := range f.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterMetadata{}, false
}

// ResponseObject returns a synthetic object describing the result container:
// a single property, ReturnValueKey, holding the declared return type.
func (f *FunctionMetadata) ResponseObject() *ObjectType {
	obj := &ObjectType{}
	if f.Response.ValueType != nil {
		obj.Properties = []Property{{Name: ReturnValueKey, Type: f.Response.ValueType}}
		if !f.Response.ValueType.IsNullable() {
			obj.Required = []string{ReturnValueKey}
		}
	}
	return obj
}

// Validate checks the document for structural problems: missing identifiers,
// duplicate parameter names, nil descriptors and references that do not
// resolve against Components.
func (f *FunctionMetadata) Validate() error {
	var errs []error
	if strings.TrimSpace(f.ID) == "" {
		errs = append(errs, errors.New("missing function id"))
	}
	if strings.TrimSpace(f.PackageName) == "" {
		errs = append(errs, errors.New("missing package name"))
	}
	seen := make(map[string]struct{}, len(f.Parameters))
	for _, p := range f.Parameters {
		if p.Name == "" {
			errs = append(errs, errors.New("parameter with empty name"))
			continue
		}
		if _, dup := seen[p.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate parameter %s", p.Name))
		}
		seen[p.Name] = struct{}{}
		if p.DataType == nil {
			errs = append(errs, fmt.Errorf("parameter %s has no type", p.Name))
			continue
		}
		if err := checkReferences(p.DataType, f.Components, 0); err != nil {
			errs = append(errs, fmt.Errorf("parameter %s: %w", p.Name, err))
		}
	}
	if f.Response.ValueType != nil {
		if err := checkReferences(f.Response.ValueType, f.Components, 0); err != nil {
			errs = append(errs, fmt.Errorf("response: %w", err))
		}
	}
	for name, dt := range f.Components.DataTypes {
		if err := checkReferences(dt, f.Components, 0); err != nil {
			errs = append(errs, fmt.Errorf("component %s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("metadata: invalid function %s/%s: %w", f.PackageName, f.ID, errors.Join(errs...))
	}
	return nil
}

func checkReferences(dt DataType, c Components, depth int) error {
	if depth > maxCompositionDepth {
		return nil
	}
	switch t := dt.(type) {
	case nil:
		return errors.New("nil descriptor")
	case *ReferenceType:
		if _, ok := c.Resolve(t.Ref); !ok {
			return fmt.Errorf("%w: %s", ErrUnresolvedReference, t.Ref)
		}
	case *ArrayType:
		return checkReferences(t.Item, c, depth+1)
	case *ObjectType:
		for _, p := range t.Properties {
			if err := checkReferences(p.Type, c, depth+1); err != nil {
				return fmt.Errorf("%s: %w", p.Name, err)
			}
		}
	case *AllOfType:
		for _, m := range t.MatchAll {
			if err := checkReferences(m, c, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
