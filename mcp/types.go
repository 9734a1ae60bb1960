package mcp

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Basic types
// Role indicates the role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Capabilities
// ClientCapabilities advertises client features.
type ClientCapabilities struct {
	Roots *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"roots,omitempty"`
	Sampling    *struct{} `json:"sampling,omitempty"`
	Elicitation *struct{} `json:"elicitation,omitempty"`
}

// ServerCapabilities advertises server features. Only tools are served.
type ServerCapabilities struct {
	Tools *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"tools,omitempty"`
}

// ImplementationInfo describes the implementation name and version.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitzero"`
}

// Content types
const (
	ContentTypeText = "text"
)

// ContentBlock is a typed content part of a message.
type ContentBlock struct {
	Type string `json:"type"`
	// For TextContent
	Text string `json:"text,omitzero"`
	// For ImageContent and AudioContent
	Data     string `json:"data,omitzero"`
	MimeType string `json:"mimeType,omitzero"`
}

// Tools
// Tool describes a callable tool and its input schema.
type Tool struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitzero"`
	Description string          `json:"description,omitempty"`
	InputSchema ToolInputSchema `json:"inputSchema"`
	// OutputSchema optionally declares the structure of structuredContent
	// in CallToolResult for this tool.
	OutputSchema *ToolOutputSchema `json:"outputSchema,omitempty"`
	Annotations  *ToolAnnotations  `json:"annotations,omitempty"`
	Meta         map[string]any    `json:"_meta,omitempty"`
}

// SchemaProperties keeps properties in declaration order on the wire.
type SchemaProperties struct {
	m *orderedmap.OrderedMap[string, SchemaProperty]
}

// NewSchemaProperties returns an empty ordered property map.
func NewSchemaProperties() *SchemaProperties {
	return &SchemaProperties{m: orderedmap.New[string, SchemaProperty]()}
}

func (p *SchemaProperties) init() {
	if p.m == nil {
		p.m = orderedmap.New[string, SchemaProperty]()
	}
}

// Set adds or replaces a property. A new property goes last.
func (p *SchemaProperties) Set(name string, prop SchemaProperty) {
	p.init()
	p.m.Set(name, prop)
}

func (p *SchemaProperties) Get(name string) (SchemaProperty, bool) {
	if p == nil || p.m == nil {
		return SchemaProperty{}, false
	}
	return p.m.Get(name)
}

func (p *SchemaProperties) Len() int {
	if p == nil || p.m == nil {
		return 0
	}
	return p.m.Len()
}

// Names returns the property names in order.
func (p *SchemaProperties) Names() []string {
	if p == nil || p.m == nil {
		return nil
	}
	names := make([]string, 0, p.m.Len())
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

func (p *SchemaProperties) MarshalJSON() ([]byte, error) {
	p.init()
	return p.m.MarshalJSON()
}

func (p *SchemaProperties) UnmarshalJSON(b []byte) error {
	p.m = orderedmap.New[string, SchemaProperty]()
	return p.m.UnmarshalJSON(b)
}

// ToolInputSchema is a JSON-schema-like description of tool input.
type ToolInputSchema struct {
	Type                 string            `json:"type"`
	Properties           *SchemaProperties `json:"properties,omitempty"`
	Required             []string          `json:"required,omitempty"`
	AdditionalProperties *bool             `json:"additionalProperties,omitempty"`
}

// ToolOutputSchema mirrors ToolInputSchema but omits additionalProperties.
// The schema must be an object shape.
type ToolOutputSchema struct {
	Type       string            `json:"type"`
	Properties *SchemaProperties `json:"properties,omitempty"`
	Required   []string          `json:"required,omitempty"`
}

// SchemaProperty is a simplified schema node used in tool schemas. Nullable
// values are expressed as AnyOf with a "null" branch.
type SchemaProperty struct {
	Type                 string            `json:"type,omitempty"`
	Title                string            `json:"title,omitzero"`
	Description          string            `json:"description,omitzero"`
	Format               string            `json:"format,omitzero"`
	ContentEncoding      string            `json:"contentEncoding,omitzero"`
	Minimum              *float64          `json:"minimum,omitempty"`
	Maximum              *float64          `json:"maximum,omitempty"`
	Items                *SchemaProperty   `json:"items,omitempty"`
	Properties           *SchemaProperties `json:"properties,omitempty"`
	Required             []string          `json:"required,omitempty"`
	AdditionalProperties *bool             `json:"additionalProperties,omitempty"`
	Enum                 []any             `json:"enum,omitempty"`
	AnyOf                []SchemaProperty  `json:"anyOf,omitempty"`
}

// ToolAnnotations carry hints about tool behavior.
type ToolAnnotations struct {
	Title          string `json:"title,omitzero"`
	ReadOnlyHint   *bool  `json:"readOnlyHint,omitempty"`
	IdempotentHint *bool  `json:"idempotentHint,omitempty"`
}

// LatestProtocolVersion is the latest version of the protocol.
const LatestProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists the versions the server accepts, newest
// first.
var SupportedProtocolVersions = []string{LatestProtocolVersion, "2025-03-26", "2024-11-05"}
