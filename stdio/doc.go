// Package stdio implements a minimal single-connection MCP transport over
// stdin/stdout. It is intended for embedding servers as subprocesses, local
// development, and environments where spawning a child process and piping JSON
// is simpler than running an HTTP server.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Capabilities     : tools (list, call, list_changed)
//	Transport        : newline-delimited JSON-RPC
//
// Options allow supplying alternate io.Reader / io.Writer, server info or a
// custom logger.
//
// Example:
//
//	bridge := mcpbridge.New(svc)
//	h := stdio.NewHandler(bridge,
//	    stdio.WithServerInfo(mcp.ImplementationInfo{Name: "notes", Version: "0.1.0"}),
//	)
//	if err := h.Serve(context.Background()); err != nil { log.Fatal(err) }
//
// Requests other than initialize and ping are rejected until the client has
// sent initialize. Tool calls run concurrently; a notifications/cancelled
// message cancels the matching call and suppresses its response.
package stdio
