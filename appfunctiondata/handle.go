package appfunctiondata

// PlatformHandle is an opaque reference to a host-managed resource, such as
// a deferred action token. A container carries handles but never owns the
// resources behind them. Handles cannot be written to the portable document
// and travel in the side bag.
type PlatformHandle interface {
	HandleID() string
}

type handle string

func (h handle) HandleID() string { return string(h) }
func (h handle) String() string   { return "handle(" + string(h) + ")" }

// NewHandle returns a comparable PlatformHandle identified by id.
func NewHandle(id string) PlatformHandle { return handle(id) }
