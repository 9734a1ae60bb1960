package mcp

import "errors"

// ErrInvalidParams marks errors caused by request parameters the server
// cannot act on. Transports report them as JSON-RPC invalid params.
var ErrInvalidParams = errors.New("mcp: invalid params")
