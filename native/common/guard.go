package common

import (
	"errors"
	"fmt"
)

// ErrModulePaused rejects mutating operations while a module is paused.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the persisted pause switches consulted before any
// mutating entry point.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns an error wrapping ErrModulePaused, carrying the module name,
// when the named module is paused. A nil view or empty module name admits the
// call.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}
