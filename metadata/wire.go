package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// wireType is the document form of a DataType. Object properties use an
// ordered map so that declaration order survives a JSON or YAML round trip.
type wireType struct {
	Type          string                                    `json:"type" yaml:"type"`
	Nullable      bool                                      `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Description   string                                    `json:"description,omitempty" yaml:"description,omitempty"`
	Enum          []any                                     `json:"enum,omitempty" yaml:"enum,omitempty"`
	Items         *wireType                                 `json:"items,omitempty" yaml:"items,omitempty"`
	QualifiedName string                                    `json:"qualifiedName,omitempty" yaml:"qualifiedName,omitempty"`
	Properties    *orderedmap.OrderedMap[string, *wireType] `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required      []string                                  `json:"required,omitempty" yaml:"required,omitempty"`
	Ref           string                                    `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	AllOf         []*wireType                               `json:"allOf,omitempty" yaml:"allOf,omitempty"`
}

func toWire(dt DataType) *wireType {
	switch t := dt.(type) {
	case nil:
		return nil
	case *PrimitiveType:
		return &wireType{Type: t.Type.String(), Nullable: t.Nullable, Description: t.Description}
	case *IntType:
		w := &wireType{Type: KindInt.String(), Nullable: t.Nullable, Description: t.Description}
		for _, v := range t.EnumValues {
			w.Enum = append(w.Enum, v)
		}
		return w
	case *StringType:
		w := &wireType{Type: KindString.String(), Nullable: t.Nullable, Description: t.Description}
		for _, v := range t.EnumValues {
			w.Enum = append(w.Enum, v)
		}
		return w
	case *ArrayType:
		return &wireType{Type: KindArray.String(), Nullable: t.Nullable, Description: t.Description, Items: toWire(t.Item)}
	case *ObjectType:
		w := &wireType{
			Type:          KindObject.String(),
			Nullable:      t.Nullable,
			Description:   t.Description,
			QualifiedName: t.QualifiedName,
			Required:      append([]string(nil), t.Required...),
			Properties:    orderedmap.New[string, *wireType](),
		}
		for _, p := range t.Properties {
			w.Properties.Set(p.Name, toWire(p.Type))
		}
		return w
	case *ReferenceType:
		return &wireType{Type: KindReference.String(), Nullable: t.Nullable, Description: t.Description, Ref: t.Ref}
	case *AllOfType:
		w := &wireType{Type: KindAllOf.String(), Nullable: t.Nullable, Description: t.Description, QualifiedName: t.QualifiedName}
		for _, m := range t.MatchAll {
			w.AllOf = append(w.AllOf, toWire(m))
		}
		return w
	default:
		return nil
	}
}

func fromWire(w *wireType) (DataType, error) {
	if w == nil {
		return nil, errors.New("metadata: missing type")
	}
	kind, ok := ParseKind(w.Type)
	if !ok {
		return nil, fmt.Errorf("metadata: unknown type %q", w.Type)
	}
	switch kind {
	case KindInt:
		t := &IntType{Nullable: w.Nullable, Description: w.Description}
		for _, ev := range w.Enum {
			v, err := toInt32(ev)
			if err != nil {
				return nil, err
			}
			t.EnumValues = append(t.EnumValues, v)
		}
		return t, nil
	case KindString:
		t := &StringType{Nullable: w.Nullable, Description: w.Description}
		for _, ev := range w.Enum {
			s, ok := ev.(string)
			if !ok {
				return nil, fmt.Errorf("metadata: string enum value %v is %T", ev, ev)
			}
			t.EnumValues = append(t.EnumValues, s)
		}
		return t, nil
	case KindArray:
		item, err := fromWire(w.Items)
		if err != nil {
			return nil, fmt.Errorf("metadata: array items: %w", err)
		}
		return &ArrayType{Item: item, Nullable: w.Nullable, Description: w.Description}, nil
	case KindObject:
		t := &ObjectType{
			QualifiedName: w.QualifiedName,
			Required:      append([]string(nil), w.Required...),
			Nullable:      w.Nullable,
			Description:   w.Description,
		}
		if w.Properties != nil {
			for pair := w.Properties.Oldest(); pair != nil; pair = pair.Next() {
				pt, err := fromWire(pair.Value)
				if err != nil {
					return nil, fmt.Errorf("metadata: property %s: %w", pair.Key, err)
				}
				t.Properties = append(t.Properties, Property{Name: pair.Key, Type: pt})
			}
		}
		return t, nil
	case KindReference:
		if w.Ref == "" {
			return nil, errors.New("metadata: reference without $ref")
		}
		return &ReferenceType{Ref: w.Ref, Nullable: w.Nullable, Description: w.Description}, nil
	case KindAllOf:
		t := &AllOfType{QualifiedName: w.QualifiedName, Nullable: w.Nullable, Description: w.Description}
		for i, m := range w.AllOf {
			mt, err := fromWire(m)
			if err != nil {
				return nil, fmt.Errorf("metadata: allOf[%d]: %w", i, err)
			}
			t.MatchAll = append(t.MatchAll, mt)
		}
		return t, nil
	default:
		return &PrimitiveType{Type: kind, Nullable: w.Nullable, Description: w.Description}, nil
	}
}

// toInt32 accepts the numeric shapes produced by encoding/json (float64,
// json.Number) and yaml.v3 (int).
func toInt32(v any) (int32, error) {
	var i int64
	switch n := v.(type) {
	case int:
		i = int64(n)
	case int32:
		return n, nil
	case int64:
		i = n
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("metadata: int enum value %v is not integral", n)
		}
		i = int64(n)
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("metadata: int enum value %s: %w", n, err)
		}
		i = parsed
	default:
		return 0, fmt.Errorf("metadata: int enum value %v is %T", v, v)
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, fmt.Errorf("metadata: int enum value %d out of range", i)
	}
	return int32(i), nil
}

// MarshalDataType encodes a single descriptor as JSON.
func MarshalDataType(dt DataType) ([]byte, error) {
	if dt == nil {
		return nil, errors.New("metadata: nil descriptor")
	}
	return json.Marshal(toWire(dt))
}

// UnmarshalDataType decodes a single JSON descriptor.
func UnmarshalDataType(b []byte) (DataType, error) {
	var w wireType
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("metadata: decode type: %w", err)
	}
	return fromWire(&w)
}

type wireSchema struct {
	Category string `json:"category" yaml:"category"`
	Name     string `json:"name" yaml:"name"`
	Version  int64  `json:"version" yaml:"version"`
}

type wireParameter struct {
	Name        string    `json:"name" yaml:"name"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Type        *wireType `json:"type" yaml:"type"`
}

type wireResponse struct {
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Type        *wireType `json:"type" yaml:"type"`
}

type wireFunction struct {
	ID               string                                    `json:"id" yaml:"id"`
	PackageName      string                                    `json:"packageName" yaml:"packageName"`
	Description      string                                    `json:"description,omitempty" yaml:"description,omitempty"`
	EnabledByDefault *bool                                     `json:"enabledByDefault,omitempty" yaml:"enabledByDefault,omitempty"`
	Schema           *wireSchema                               `json:"schema,omitempty" yaml:"schema,omitempty"`
	Parameters       []wireParameter                           `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Response         *wireResponse                             `json:"response,omitempty" yaml:"response,omitempty"`
	Components       *orderedmap.OrderedMap[string, *wireType] `json:"components,omitempty" yaml:"components,omitempty"`
}

func (f *FunctionMetadata) toWire() *wireFunction {
	enabled := f.EnabledByDefault
	w := &wireFunction{
		ID:               f.ID,
		PackageName:      f.PackageName,
		Description:      f.Description,
		EnabledByDefault: &enabled,
	}
	if f.Schema != nil {
		w.Schema = &wireSchema{Category: f.Schema.Category, Name: f.Schema.Name, Version: f.Schema.Version}
	}
	for _, p := range f.Parameters {
		w.Parameters = append(w.Parameters, wireParameter{Name: p.Name, Required: p.IsRequired, Description: p.Description, Type: toWire(p.DataType)})
	}
	if f.Response.ValueType != nil {
		w.Response = &wireResponse{Description: f.Response.Description, Type: toWire(f.Response.ValueType)}
	}
	if len(f.Components.DataTypes) > 0 {
		names := make([]string, 0, len(f.Components.DataTypes))
		for name := range f.Components.DataTypes {
			names = append(names, name)
		}
		sort.Strings(names)
		w.Components = orderedmap.New[string, *wireType]()
		for _, name := range names {
			w.Components.Set(name, toWire(f.Components.DataTypes[name]))
		}
	}
	return w
}

func (w *wireFunction) toMetadata() (FunctionMetadata, error) {
	f := FunctionMetadata{
		ID:               w.ID,
		PackageName:      w.PackageName,
		Description:      w.Description,
		EnabledByDefault: w.EnabledByDefault == nil || *w.EnabledByDefault,
	}
	if w.Schema != nil {
		f.Schema = &SchemaMetadata{Category: w.Schema.Category, Name: w.Schema.Name, Version: w.Schema.Version}
	}
	for _, p := range w.Parameters {
		dt, err := fromWire(p.Type)
		if err != nil {
			return FunctionMetadata{}, fmt.Errorf("metadata: parameter %s: %w", p.Name, err)
		}
		f.Parameters = append(f.Parameters, ParameterMetadata{Name: p.Name, IsRequired: p.Required, Description: p.Description, DataType: dt})
	}
	if w.Response != nil {
		dt, err := fromWire(w.Response.Type)
		if err != nil {
			return FunctionMetadata{}, fmt.Errorf("metadata: response: %w", err)
		}
		f.Response = ResponseMetadata{ValueType: dt, Description: w.Response.Description}
	}
	if w.Components != nil && w.Components.Len() > 0 {
		f.Components.DataTypes = make(map[string]DataType, w.Components.Len())
		for pair := w.Components.Oldest(); pair != nil; pair = pair.Next() {
			dt, err := fromWire(pair.Value)
			if err != nil {
				return FunctionMetadata{}, fmt.Errorf("metadata: component %s: %w", pair.Key, err)
			}
			f.Components.DataTypes[pair.Key] = dt
		}
	}
	return f, nil
}

// MarshalJSON implements json.Marshaler.
func (f FunctionMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.toWire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FunctionMetadata) UnmarshalJSON(b []byte) error {
	var w wireFunction
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	decoded, err := w.toMetadata()
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (f FunctionMetadata) MarshalYAML() (any, error) {
	return f.toWire(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FunctionMetadata) UnmarshalYAML(node *yaml.Node) error {
	var w wireFunction
	if err := node.Decode(&w); err != nil {
		return err
	}
	decoded, err := w.toMetadata()
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}
