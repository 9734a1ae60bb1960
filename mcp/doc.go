// Package mcp contains the Model Context Protocol data types used to expose
// app functions as tools: the initialize handshake, tools/list and
// tools/call envelopes and the tool schema shapes. It mirrors the wire
// representation while keeping the surface Go-friendly (exported structs with
// json tags, string constants for method names).
//
// The package is free of transport logic. The stdio package frames these
// types as JSON-RPC, and mcpbridge builds them from function metadata.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod).
//
// # Schemas
//
// Tool schemas keep their properties in declaration order on the wire, using
// an ordered map (SchemaProperties), so agents see parameters in the order
// the function declares them.
//
// Example (tool result construction):
//
//	res := &mcp.CallToolResult{
//	    Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: "hello"}},
//	}
//
// # Compatibility
//
// LatestProtocolVersion reflects the most recent protocol date the library
// targets; SupportedProtocolVersions lists the versions it negotiates.
package mcp
