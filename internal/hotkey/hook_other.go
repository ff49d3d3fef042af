//go:build !windows

package hotkey

import "log/slog"

// NewHookListener reports ErrHookUnsupported outside Windows; callers fall back
// to a SignalListener driven by compositor keybinds.
func NewHookListener(Definition, *slog.Logger) (Listener, error) {
	return nil, ErrHookUnsupported
}
