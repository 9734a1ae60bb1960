package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates records with the request and function call data carried
// by the context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if msg, ok := ctx.Value(rpcMsg{}).(*RPCMessage); ok {
		r.AddAttrs(slog.Group("rpc",
			slog.String("method", msg.Method),
			slog.String("id", msg.ID),
			slog.String("type", msg.Type),
		))
	}

	if fd, ok := ctx.Value(functionCallDataKey{}).(*FunctionCallData); ok {
		r.AddAttrs(slog.Group("fn",
			slog.String("package", fd.Package),
			slog.String("id", fd.FunctionID),
			slog.String("execution_id", fd.ExecutionID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{h.Handler.WithGroup(name)}
}

// Wrap returns a logger whose handler is decorated by Handler.
func Wrap(l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	if _, ok := l.Handler().(Handler); ok {
		return l
	}
	return slog.New(Handler{l.Handler()})
}

type rpcMsg struct{}

type RPCMessage struct {
	Method string
	ID     string
	Type   string
}

func WithRPCMessage(ctx context.Context, msg *RPCMessage) context.Context {
	return context.WithValue(ctx, rpcMsg{}, msg)
}

type functionCallDataKey struct{}

type FunctionCallData struct {
	Package     string
	FunctionID  string
	ExecutionID string
}

func WithFunctionCallData(ctx context.Context, data *FunctionCallData) context.Context {
	return context.WithValue(ctx, functionCallDataKey{}, data)
}

// FunctionCall returns the function call data stored in ctx, if any.
func FunctionCall(ctx context.Context) (*FunctionCallData, bool) {
	fd, ok := ctx.Value(functionCallDataKey{}).(*FunctionCallData)
	return fd, ok
}
