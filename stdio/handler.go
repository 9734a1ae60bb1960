package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/ggoodman/appfunctions-go/internal/jsonrpc"
	"github.com/ggoodman/appfunctions-go/internal/logctx"
	"github.com/ggoodman/appfunctions-go/mcp"
)

// defaultMaxMessageSize bounds a single newline-delimited message.
const defaultMaxMessageSize = 16 << 20

// errClientCancelled is the cancel cause for requests the client cancelled.
var errClientCancelled = errors.New("cancelled by client")

// ToolsProvider supplies the tools served over the connection.
type ToolsProvider interface {
	ListTools(ctx context.Context, cursor string) ([]mcp.Tool, string, error)
	CallTool(ctx context.Context, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error)
}

// changeSubscriber is implemented by providers whose tool list can change.
type changeSubscriber interface {
	Subscriber() <-chan struct{}
}

// Handler is a single-connection stdio transport that reads JSON-RPC messages
// from an io.Reader and writes responses to an io.Writer. By default, it uses
// os.Stdin and os.Stdout.
//
// The handler speaks the tools subset of MCP: initialize, ping, tools/list
// and tools/call, plus cancellation and tools list_changed notifications
// when the provider exposes change signals.
type Handler struct {
	r            io.Reader
	w            io.Writer
	l            *slog.Logger
	tools        ToolsProvider
	info         mcp.ImplementationInfo
	instructions string
	maxMessage   int

	writeMu sync.Mutex

	// background is canceled when Serve returns; it scopes the list_changed
	// emitter.
	background context.Context

	mu          sync.Mutex
	initialized bool
	emitting    bool
	inflight    map[string]context.CancelCauseFunc
	wg          sync.WaitGroup
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(tools ToolsProvider, opts ...Option) *Handler {
	h := &Handler{
		r:          os.Stdin,
		w:          os.Stdout,
		l:          slog.Default(),
		tools:      tools,
		info:       mcp.ImplementationInfo{Name: "appfunctions", Version: "dev"},
		maxMessage: defaultMaxMessageSize,
		inflight:   make(map[string]context.CancelCauseFunc),
	}
	for _, o := range opts {
		o(h)
	}
	h.l = logctx.Wrap(h.l)
	return h
}

// Serve runs the stdio event loop until EOF on the reader or the context is
// canceled. It is safe to call at most once per Handler. Tool calls run
// concurrently so that cancellation notifications can reach them; Serve waits
// for them before returning.
func (h *Handler) Serve(ctx context.Context) error {
	bg, stop := context.WithCancel(ctx)
	h.background = bg
	defer h.wg.Wait()
	defer stop()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(h.r)
		sc.Buffer(make([]byte, 0, min(64*1024, h.maxMessage)), h.maxMessage)
		for sc.Scan() {
			line := slices.Clone(sc.Bytes())
			select {
			case lines <- line:
			case <-bg.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			return nil
		case line := <-lines:
			if len(line) == 0 {
				continue
			}
			h.handleLine(ctx, line)
		}
	}
}

func (h *Handler) handleLine(ctx context.Context, line []byte) {
	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		h.l.InfoContext(ctx, "stdio.message.invalid", slog.String("err", err.Error()))
		h.respond(ctx, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "parse error", nil))
		return
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, ID: msg.ID.String(), Type: msg.Kind().String()})

	switch msg.Kind() {
	case jsonrpc.KindNotification:
		h.handleNotification(ctx, msg.AsRequest())
	case jsonrpc.KindRequest:
		req := msg.AsRequest()
		if req.Method == string(mcp.ToolsCallMethod) && h.isInitialized() {
			h.startToolCall(ctx, req)
			return
		}
		h.respond(ctx, h.handleRequest(ctx, req))
	default:
		// The server issues no requests of its own.
		h.l.DebugContext(ctx, "stdio.response.ignored")
	}
}

func (h *Handler) isInitialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initialized
}

func (h *Handler) handleRequest(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	switch req.Method {
	case string(mcp.InitializeMethod):
		return h.handleInitialize(ctx, req)
	case string(mcp.PingMethod):
		return mustResult(req.ID, &mcp.EmptyResult{})
	}
	if !h.isInitialized() {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, "server not initialized", nil)
	}
	switch req.Method {
	case string(mcp.ToolsListMethod):
		return h.handleToolsList(ctx, req)
	case string(mcp.ToolsCallMethod):
		return h.handleToolCall(ctx, req)
	}
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "method not found", nil)
}

func (h *Handler) handleInitialize(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	var params mcp.InitializeRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.l.InfoContext(ctx, "stdio.handle_request.invalid", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
	}

	version := mcp.LatestProtocolVersion
	if slices.Contains(mcp.SupportedProtocolVersions, params.ProtocolVersion) {
		version = params.ProtocolVersion
	}

	res := &mcp.InitializeResult{
		ProtocolVersion: version,
		ServerInfo:      h.info,
		Instructions:    h.instructions,
	}
	res.Capabilities.Tools = &struct {
		ListChanged bool `json:"listChanged"`
	}{}
	if _, ok := h.tools.(changeSubscriber); ok {
		res.Capabilities.Tools.ListChanged = true
	}

	h.mu.Lock()
	h.initialized = true
	h.mu.Unlock()

	h.l.InfoContext(ctx, "stdio.initialize.ok",
		slog.String("client", params.ClientInfo.Name),
		slog.String("client_version", params.ClientInfo.Version),
		slog.String("protocol_version", version))
	return mustResult(req.ID, res)
}

func (h *Handler) handleToolsList(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()
	var params mcp.ListToolsRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			h.l.InfoContext(ctx, "stdio.handle_request.invalid", slog.String("err", err.Error()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
		}
	}

	tools, next, err := h.tools.ListTools(ctx, params.Cursor)
	if err != nil {
		return h.errorResponse(ctx, req, err, start)
	}
	if tools == nil {
		tools = []mcp.Tool{}
	}

	h.l.InfoContext(ctx, "stdio.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("tool_count", len(tools)))
	return mustResult(req.ID, &mcp.ListToolsResult{Tools: tools, PaginatedResult: mcp.PaginatedResult{NextCursor: next}})
}

func (h *Handler) startToolCall(ctx context.Context, req *jsonrpc.Request) {
	reqID := req.ID.Key()
	callCtx, cancel := context.WithCancelCause(ctx)

	h.mu.Lock()
	if _, dup := h.inflight[reqID]; dup {
		h.mu.Unlock()
		cancel(nil)
		h.respond(ctx, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, "duplicate request id", nil))
		return
	}
	h.inflight[reqID] = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			delete(h.inflight, reqID)
			h.mu.Unlock()
			cancel(nil)
		}()

		res := h.handleToolCall(callCtx, req)
		if errors.Is(context.Cause(callCtx), errClientCancelled) {
			// The client no longer expects a response.
			h.l.InfoContext(ctx, "stdio.handle_request.cancelled")
			return
		}
		h.respond(ctx, res)
	}()
}

func (h *Handler) handleToolCall(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	start := time.Now()
	var params mcp.CallToolRequestReceived
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		h.l.InfoContext(ctx, "stdio.handle_request.invalid", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
	}

	res, err := h.tools.CallTool(ctx, &params)
	if err != nil {
		return h.errorResponse(ctx, req, err, start)
	}
	if res.Content == nil {
		res.Content = []mcp.ContentBlock{}
	}

	h.l.InfoContext(ctx, "stdio.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Bool("is_error", res.IsError))
	return mustResult(req.ID, res)
}

func (h *Handler) errorResponse(ctx context.Context, req *jsonrpc.Request, err error, start time.Time) *jsonrpc.Response {
	dur := slog.Int64("dur_ms", time.Since(start).Milliseconds())
	switch {
	case errors.Is(err, mcp.ErrInvalidParams):
		h.l.InfoContext(ctx, "stdio.handle_request.invalid", slog.String("err", err.Error()), dur)
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.l.InfoContext(ctx, "stdio.handle_request.cancelled", dur)
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "cancelled", nil)
	default:
		h.l.ErrorContext(ctx, "stdio.handle_request.fail", slog.String("err", err.Error()), dur)
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
}

func (h *Handler) handleNotification(ctx context.Context, note *jsonrpc.Request) {
	switch note.Method {
	case string(mcp.InitializedNotificationMethod):
		h.l.InfoContext(ctx, "stdio.session.initialized")
		cs, ok := h.tools.(changeSubscriber)
		if !ok {
			return
		}
		h.mu.Lock()
		start := !h.emitting
		h.emitting = true
		h.mu.Unlock()
		if start {
			h.wg.Add(1)
			go h.emitListChanged(h.background, cs.Subscriber())
		}
	case string(mcp.CancelledNotificationMethod):
		var params mcp.CancelledNotification
		if err := json.Unmarshal(note.Params, &params); err != nil {
			h.l.InfoContext(ctx, "stdio.notification.invalid", slog.String("err", err.Error()))
			return
		}
		var id jsonrpc.RequestID
		if err := json.Unmarshal(params.RequestID, &id); err != nil {
			h.l.InfoContext(ctx, "stdio.notification.invalid", slog.String("err", err.Error()))
			return
		}
		h.mu.Lock()
		cancel, ok := h.inflight[id.Key()]
		h.mu.Unlock()
		if ok {
			cancel(errClientCancelled)
		}
		h.l.InfoContext(ctx, "stdio.request.cancel", slog.String("request_id", id.String()), slog.Bool("found", ok), slog.String("reason", params.Reason))
	default:
		h.l.DebugContext(ctx, "stdio.notification.ignored")
	}
}

func (h *Handler) emitListChanged(ctx context.Context, sub <-chan struct{}) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub:
			if !ok {
				return
			}
			note, err := jsonrpc.NewNotification(string(mcp.ToolsListChangedNotificationMethod), nil)
			if err != nil {
				continue
			}
			if err := h.writeJSONRPC(note); err != nil {
				h.l.ErrorContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
				return
			}
		}
	}
}

func (h *Handler) respond(ctx context.Context, res *jsonrpc.Response) {
	if res.Error != nil {
		h.l.DebugContext(ctx, "stdio.handle_request.error", slog.String("code", res.Error.Code.String()), slog.String("message", res.Error.Message))
	}
	if err := h.writeJSONRPC(res); err != nil {
		h.l.ErrorContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
	}
}

// writeJSONRPC writes one message followed by a newline.
func (h *Handler) writeJSONRPC(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_, err = h.w.Write(append(b, '\n'))
	return err
}

func mustResult(id *jsonrpc.RequestID, result any) *jsonrpc.Response {
	res, err := jsonrpc.NewResultResponse(id, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	return res
}
