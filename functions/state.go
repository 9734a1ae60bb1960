package functions

import (
	"context"
	"fmt"

	"github.com/ggoodman/appfunctions-go/storage"
)

// EnabledState is the persisted enabled-state override of a function.
type EnabledState int

const (
	// StateDefault defers to the function's EnabledByDefault flag.
	StateDefault EnabledState = iota
	StateEnabled
	StateDisabled
)

func (s EnabledState) String() string {
	switch s {
	case StateDefault:
		return "default"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("EnabledState(%d)", int(s))
	}
}

// ParseEnabledState parses the String form of an EnabledState.
func ParseEnabledState(s string) (EnabledState, error) {
	switch s {
	case "default":
		return StateDefault, nil
	case "enabled":
		return StateEnabled, nil
	case "disabled":
		return StateDisabled, nil
	default:
		return StateDefault, fmt.Errorf("unknown enabled state %q", s)
	}
}

const enabledStateKey = "enabled_state"

func loadState(ctx context.Context, store storage.Storage, pkg, id string) (EnabledState, error) {
	item, err := store.Get(ctx, enabledStateKey, storage.WithFunction(pkg, id))
	if err != nil {
		return StateDefault, fmt.Errorf("load enabled state: %w", err)
	}
	if item == nil {
		return StateDefault, nil
	}
	return ParseEnabledState(string(item.Data))
}

func saveState(ctx context.Context, store storage.Storage, pkg, id string, state EnabledState) error {
	ns := storage.WithFunction(pkg, id)
	var err error
	if state == StateDefault {
		err = store.Delete(ctx, ns, storage.WithKey(enabledStateKey))
	} else {
		err = store.Set(ctx, enabledStateKey, []byte(state.String()), ns)
	}
	if err != nil {
		return fmt.Errorf("save enabled state: %w", err)
	}
	return nil
}
