// Package mcpbridge exposes a functions.Service to agents as MCP tools.
//
// Every enabled function becomes one tool. Its input schema is derived from
// the function's parameters and its output schema from the result container,
// whose single property is metadata.ReturnValueKey. Calls flow through
// jsondata: arguments are decoded against the parameters spec, the function
// is executed, and the result container is encoded as structuredContent.
//
// Execution failures come back as tool results with isError set and the
// function error code in _meta, so agents can tell a bad argument from a
// disabled function. Unknown tools and cancellation are protocol errors.
//
//	b := mcpbridge.New(svc)
//	h := stdio.NewHandler(b, stdio.WithServerInfo(info))
//	_ = h.Serve(ctx)
package mcpbridge
