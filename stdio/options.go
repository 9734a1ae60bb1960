package stdio

import (
	"io"
	"log/slog"

	"github.com/ggoodman/appfunctions-go/mcp"
)

// Option customizes a Handler.
type Option func(*Handler)

// WithIO replaces os.Stdin and os.Stdout. A nil argument keeps the default.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
		if w != nil {
			h.w = w
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.l = l
		}
	}
}

// WithMaxMessageSize bounds a single line of input. Serve fails once a
// client sends a longer one. The default is 16 MiB.
func WithMaxMessageSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxMessage = n
		}
	}
}

// WithServerInfo sets the serverInfo reported by initialize. An empty name
// keeps the default.
func WithServerInfo(info mcp.ImplementationInfo) Option {
	return func(h *Handler) {
		if info.Name != "" {
			h.info = info
		}
	}
}

// WithInstructions sets the instructions returned from initialize, typically
// a sentence on what the served functions are for.
func WithInstructions(s string) Option {
	return func(h *Handler) { h.instructions = s }
}
