package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ggoodman/appfunctions-go/functions"
	"github.com/ggoodman/appfunctions-go/internal/logctx"
	"github.com/ggoodman/appfunctions-go/jsondata"
	"github.com/ggoodman/appfunctions-go/mcp"
	"github.com/ggoodman/appfunctions-go/metadata"
)

var (
	// ErrUnknownTool is returned by CallTool when no enabled function carries
	// the requested tool name.
	ErrUnknownTool = fmt.Errorf("mcpbridge: unknown tool: %w", mcp.ErrInvalidParams)
	// ErrInvalidCursor is returned by ListTools for cursors it did not issue.
	ErrInvalidCursor = fmt.Errorf("mcpbridge: invalid cursor: %w", mcp.ErrInvalidParams)
)

// Bridge exposes the functions of a functions.Service as MCP tools.
type Bridge struct {
	svc      *functions.Service
	log      *slog.Logger
	name     func(metadata.FunctionMetadata) string
	pageSize int
}

// Option customizes a Bridge.
type Option func(*Bridge)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

// WithToolNamer overrides how tool names are derived from function metadata.
// Names must be unique across the service.
func WithToolNamer(fn func(metadata.FunctionMetadata) string) Option {
	return func(b *Bridge) {
		if fn != nil {
			b.name = fn
		}
	}
}

// WithPageSize paginates tools/list. Zero or less lists every tool at once.
func WithPageSize(n int) Option {
	return func(b *Bridge) { b.pageSize = n }
}

// New returns a Bridge over svc.
func New(svc *functions.Service, opts ...Option) *Bridge {
	b := &Bridge{svc: svc, log: slog.Default(), name: ToolName}
	for _, o := range opts {
		o(b)
	}
	b.log = logctx.Wrap(b.log)
	return b
}

// ToolName is the default tool naming: package and function id joined by a
// double underscore, with characters outside [A-Za-z0-9_-] replaced by '_'.
func ToolName(meta metadata.FunctionMetadata) string {
	return sanitize(meta.PackageName) + "__" + sanitize(meta.ID)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

// Subscriber signals whenever the tool list may have changed.
func (b *Bridge) Subscriber() <-chan struct{} { return b.svc.Subscriber() }

// Tool renders one function as a tool.
func (b *Bridge) Tool(meta metadata.FunctionMetadata) (mcp.Tool, error) {
	in, err := InputSchema(&meta)
	if err != nil {
		return mcp.Tool{}, err
	}
	out, err := OutputSchema(&meta)
	if err != nil {
		return mcp.Tool{}, err
	}
	tool := mcp.Tool{
		Name:         b.name(meta),
		Description:  meta.Description,
		InputSchema:  in,
		OutputSchema: out,
		Meta: map[string]any{
			"packageName": meta.PackageName,
			"functionId":  meta.ID,
		},
	}
	if s := meta.Schema; s != nil {
		tool.Title = s.Name
		tool.Meta["schema"] = map[string]any{"category": s.Category, "name": s.Name, "version": s.Version}
	}
	return tool, nil
}

// ListTools returns the enabled functions as tools, starting after cursor.
// The returned cursor is empty on the last page. Functions whose metadata
// cannot be rendered are logged and skipped.
func (b *Bridge) ListTools(ctx context.Context, cursor string) ([]mcp.Tool, string, error) {
	metas, err := b.enabled(ctx)
	if err != nil {
		return nil, "", err
	}
	start := 0
	if cursor != "" {
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 || start > len(metas) {
			return nil, "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
		}
	}
	end := len(metas)
	next := ""
	if b.pageSize > 0 && start+b.pageSize < end {
		end = start + b.pageSize
		next = strconv.Itoa(end)
	}

	tools := make([]mcp.Tool, 0, end-start)
	for _, meta := range metas[start:end] {
		tool, err := b.Tool(meta)
		if err != nil {
			b.log.WarnContext(ctx, "mcpbridge.tool.skip", slog.String("package", meta.PackageName), slog.String("function", meta.ID), slog.String("err", err.Error()))
			continue
		}
		tools = append(tools, tool)
	}
	return tools, next, nil
}

func (b *Bridge) enabled(ctx context.Context) ([]metadata.FunctionMetadata, error) {
	var out []metadata.FunctionMetadata
	for _, meta := range b.svc.List("") {
		ok, err := b.svc.IsEnabled(ctx, meta.PackageName, meta.ID)
		if err != nil {
			return nil, fmt.Errorf("enabled state of %s/%s: %w", meta.PackageName, meta.ID, err)
		}
		if ok {
			out = append(out, meta)
		}
	}
	return out, nil
}

// resolve finds the function carrying name. Disabled functions resolve too,
// so that calling one reports a disabled error result.
func (b *Bridge) resolve(name string) (metadata.FunctionMetadata, error) {
	for _, meta := range b.svc.List("") {
		if b.name(meta) == name {
			return meta, nil
		}
	}
	return metadata.FunctionMetadata{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

// CallTool decodes the arguments against the function's parameters, executes
// it and encodes the result container as structured content. Execution
// failures are reported in the result with IsError set; the returned error
// is reserved for unknown tools, cancellation and storage failures.
func (b *Bridge) CallTool(ctx context.Context, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
	meta, err := b.resolve(req.Name)
	if err != nil {
		return nil, err
	}
	spec, err := b.svc.ParametersSpec(meta.PackageName, meta.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, req.Name)
	}

	params, err := jsondata.Decode(spec, req.Arguments)
	if err != nil {
		return errorResult(functions.AsError(err, functions.CodeInvalidArgument)), nil
	}

	resp, err := b.svc.Execute(ctx, functions.ExecuteRequest{
		TargetPackage: meta.PackageName,
		FunctionID:    meta.ID,
		Parameters:    params,
	})
	if err != nil {
		fe := functions.AsError(err, functions.CodeSystemError)
		if fe.Code == functions.CodeCancelled && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return errorResult(fe), nil
	}

	structured, err := jsondata.Encode(resp.Result)
	if err != nil {
		b.log.ErrorContext(ctx, "mcpbridge.encode.fail", slog.String("execution_id", resp.ExecutionID), slog.String("err", err.Error()))
		return errorResult(&functions.Error{Code: functions.CodeAppUnknownError, Err: err}), nil
	}
	text, err := json.Marshal(structured)
	if err != nil {
		return errorResult(&functions.Error{Code: functions.CodeAppUnknownError, Err: err}), nil
	}
	return &mcp.CallToolResult{
		Content:           []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: string(text)}},
		StructuredContent: structured,
		BaseMetadata:      mcp.BaseMetadata{Meta: map[string]any{"executionId": resp.ExecutionID}},
	}, nil
}

func errorResult(fe *functions.Error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: fe.Error()}},
		IsError: true,
		BaseMetadata: mcp.BaseMetadata{Meta: map[string]any{
			"errorCode":     int(fe.Code),
			"errorType":     fe.Code.String(),
			"errorCategory": fe.Category().String(),
		}},
	}
}
