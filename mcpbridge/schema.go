package mcpbridge

import (
	"fmt"
	"math"

	"github.com/ggoodman/appfunctions-go/mcp"
	"github.com/ggoodman/appfunctions-go/metadata"
)

// maxSchemaDepth bounds reference inlining. Self-referencing components are
// rendered as an open object once the bound is reached.
const maxSchemaDepth = 16

// InputSchema renders the parameters of meta as a tool input schema.
// Platform handle parameters are left out: agents cannot supply them.
func InputSchema(meta *metadata.FunctionMetadata) (mcp.ToolInputSchema, error) {
	props := mcp.NewSchemaProperties()
	var required []string
	for _, p := range meta.Parameters {
		sp, ok, err := schemaFor(p.DataType, meta.Components, 0)
		if err != nil {
			return mcp.ToolInputSchema{}, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		if !ok {
			continue
		}
		if p.Description != "" {
			sp.Description = p.Description
		}
		props.Set(p.Name, sp)
		if p.IsRequired {
			required = append(required, p.Name)
		}
	}
	closed := false
	return mcp.ToolInputSchema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: &closed,
	}, nil
}

// OutputSchema renders the result container of meta: an object whose only
// property, metadata.ReturnValueKey, holds the return value. It returns nil
// when the function declares no return value.
func OutputSchema(meta *metadata.FunctionMetadata) (*mcp.ToolOutputSchema, error) {
	vt := meta.Response.ValueType
	if vt == nil {
		return nil, nil
	}
	sp, ok, err := schemaFor(vt, meta.Components, 0)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	if !ok {
		return nil, nil
	}
	if meta.Response.Description != "" {
		sp.Description = meta.Response.Description
	}
	props := mcp.NewSchemaProperties()
	props.Set(metadata.ReturnValueKey, sp)
	out := &mcp.ToolOutputSchema{Type: "object", Properties: props}
	if !vt.IsNullable() {
		out.Required = []string{metadata.ReturnValueKey}
	}
	return out, nil
}

// schemaFor converts one descriptor. ok is false for values that have no JSON
// form.
func schemaFor(dt metadata.DataType, c metadata.Components, depth int) (mcp.SchemaProperty, bool, error) {
	sp, ok, err := baseSchema(dt, c, depth)
	if err != nil || !ok {
		return sp, ok, err
	}
	if dt.IsNullable() {
		desc := sp.Description
		sp.Description = ""
		return mcp.SchemaProperty{
			Description: desc,
			AnyOf:       []mcp.SchemaProperty{sp, {Type: "null"}},
		}, true, nil
	}
	return sp, true, nil
}

func baseSchema(dt metadata.DataType, c metadata.Components, depth int) (mcp.SchemaProperty, bool, error) {
	switch t := dt.(type) {
	case nil:
		return mcp.SchemaProperty{}, false, fmt.Errorf("nil descriptor")
	case *metadata.IntType:
		lo, hi := float64(math.MinInt32), float64(math.MaxInt32)
		sp := mcp.SchemaProperty{Type: "integer", Format: "int32", Minimum: &lo, Maximum: &hi, Description: t.Description}
		for _, v := range t.EnumValues {
			sp.Enum = append(sp.Enum, v)
		}
		return sp, true, nil
	case *metadata.StringType:
		sp := mcp.SchemaProperty{Type: "string", Description: t.Description}
		for _, v := range t.EnumValues {
			sp.Enum = append(sp.Enum, v)
		}
		return sp, true, nil
	case *metadata.PrimitiveType:
		sp := mcp.SchemaProperty{Description: t.Description}
		switch t.Type {
		case metadata.KindLong:
			sp.Type, sp.Format = "integer", "int64"
		case metadata.KindFloat:
			sp.Type, sp.Format = "number", "float"
		case metadata.KindDouble:
			sp.Type, sp.Format = "number", "double"
		case metadata.KindBoolean:
			sp.Type = "boolean"
		case metadata.KindBytes:
			sp.Type, sp.ContentEncoding = "string", "base64"
		case metadata.KindPendingIntent:
			return mcp.SchemaProperty{}, false, nil
		default:
			return mcp.SchemaProperty{}, false, fmt.Errorf("unexpected primitive %s", t.Type)
		}
		return sp, true, nil
	case *metadata.ArrayType:
		item, ok, err := schemaFor(t.Item, c, depth+1)
		if err != nil || !ok {
			return mcp.SchemaProperty{}, false, err
		}
		return mcp.SchemaProperty{Type: "array", Items: &item, Description: t.Description}, true, nil
	case *metadata.ObjectType:
		return objectSchema(t, c, depth)
	case *metadata.ReferenceType:
		if depth >= maxSchemaDepth {
			return mcp.SchemaProperty{Type: "object", Description: t.Description}, true, nil
		}
		target, err := c.Dereference(t)
		if err != nil {
			return mcp.SchemaProperty{}, false, err
		}
		sp, ok, err := baseSchema(target, c, depth+1)
		if ok && t.Description != "" {
			sp.Description = t.Description
		}
		return sp, ok, err
	case *metadata.AllOfType:
		obj, err := t.PseudoObject(c)
		if err != nil {
			return mcp.SchemaProperty{}, false, err
		}
		if t.Description != "" {
			obj.Description = t.Description
		}
		return objectSchema(obj, c, depth)
	default:
		return mcp.SchemaProperty{}, false, fmt.Errorf("unsupported descriptor %T", dt)
	}
}

func objectSchema(o *metadata.ObjectType, c metadata.Components, depth int) (mcp.SchemaProperty, bool, error) {
	if depth >= maxSchemaDepth {
		return mcp.SchemaProperty{Type: "object", Description: o.Description}, true, nil
	}
	props := mcp.NewSchemaProperties()
	var required []string
	for _, p := range o.Properties {
		sp, ok, err := schemaFor(p.Type, c, depth+1)
		if err != nil {
			return mcp.SchemaProperty{}, false, fmt.Errorf("%s: %w", p.Name, err)
		}
		if !ok {
			continue
		}
		props.Set(p.Name, sp)
		if o.IsRequired(p.Name) {
			required = append(required, p.Name)
		}
	}
	closed := false
	return mcp.SchemaProperty{
		Type:                 "object",
		Title:                o.QualifiedName,
		Description:          o.Description,
		Properties:           props,
		Required:             required,
		AdditionalProperties: &closed,
	}, true, nil
}
