// Package hotkey detects a global modifier+key combination and reports press/release edges.
package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifier is a bitset of modifier keys.
type Modifier uint32

const (
	ModAlt     Modifier = 0x0001
	ModControl Modifier = 0x0002
	ModShift   Modifier = 0x0004
	ModWin     Modifier = 0x0008
)

// Key is a Windows virtual-key code.
type Key uint32

const (
	KeySpace Key = 0x20
	KeyEnter Key = 0x0D
	KeyTab   Key = 0x09
	KeyEsc   Key = 0x1B
	KeyF1    Key = 0x70
)

// Definition is an immutable hotkey value. Equality is by value.
type Definition struct {
	Modifiers Modifier
	Key       Key
}

// Default is Ctrl+Alt+Space.
var Default = Definition{Modifiers: ModControl | ModAlt, Key: KeySpace}

var namedKeys = map[string]Key{
	"space":     KeySpace,
	"enter":     KeyEnter,
	"return":    KeyEnter,
	"tab":       KeyTab,
	"esc":       KeyEsc,
	"escape":    KeyEsc,
	"backspace": 0x08,
	"insert":    0x2D,
	"delete":    0x2E,
	"home":      0x24,
	"end":       0x23,
	"pageup":    0x21,
	"pagedown":  0x22,
	"pause":     0x13,
	"capslock":  0x14,
	"scroll":    0x91,
}

// Parse reads strings like "ctrl+alt+space" or "shift+F9".
func Parse(raw string) (Definition, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Definition{}, fmt.Errorf("hotkey must not be empty")
	}

	parts := strings.Split(raw, "+")
	var def Definition
	for i, part := range parts {
		token := strings.ToLower(strings.TrimSpace(part))
		if token == "" {
			return Definition{}, fmt.Errorf("hotkey %q has an empty component", raw)
		}
		if i < len(parts)-1 {
			mod, ok := parseModifier(token)
			if !ok {
				return Definition{}, fmt.Errorf("hotkey %q: unknown modifier %q", raw, token)
			}
			def.Modifiers |= mod
			continue
		}
		key, err := parseKey(token)
		if err != nil {
			return Definition{}, fmt.Errorf("hotkey %q: %w", raw, err)
		}
		def.Key = key
	}
	return def, nil
}

func parseModifier(token string) (Modifier, bool) {
	switch token {
	case "alt", "menu":
		return ModAlt, true
	case "ctrl", "control":
		return ModControl, true
	case "shift":
		return ModShift, true
	case "win", "super", "meta":
		return ModWin, true
	default:
		return 0, false
	}
}

func parseKey(token string) (Key, error) {
	if len(token) == 1 {
		ch := token[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return Key(ch - 'a' + 'A'), nil
		case ch >= '0' && ch <= '9':
			return Key(ch), nil
		}
	}
	if key, ok := namedKeys[token]; ok {
		return key, nil
	}
	if strings.HasPrefix(token, "f") {
		if n, err := strconv.Atoi(token[1:]); err == nil && n >= 1 && n <= 24 {
			return KeyF1 + Key(n-1), nil
		}
	}
	if _, ok := parseModifier(token); ok {
		return 0, fmt.Errorf("missing non-modifier key")
	}
	return 0, fmt.Errorf("unsupported key %q", token)
}

// String renders the display form, e.g. "Ctrl+Alt+Space".
func (d Definition) String() string {
	parts := make([]string, 0, 5)
	if d.Modifiers&ModControl != 0 {
		parts = append(parts, "Ctrl")
	}
	if d.Modifiers&ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	if d.Modifiers&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	if d.Modifiers&ModWin != 0 {
		parts = append(parts, "Win")
	}
	parts = append(parts, d.Key.String())
	return strings.Join(parts, "+")
}

func (k Key) String() string {
	switch {
	case k >= 'A' && k <= 'Z', k >= '0' && k <= '9':
		return string(rune(k))
	case k >= KeyF1 && k < KeyF1+24:
		return "F" + strconv.Itoa(int(k-KeyF1)+1)
	}
	for name, key := range namedKeys {
		if key == k && name != "return" && name != "escape" {
			return strings.ToUpper(name[:1]) + name[1:]
		}
	}
	return fmt.Sprintf("VK_0x%02X", uint32(k))
}
