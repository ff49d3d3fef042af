package indicator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/rbright/oto/internal/config"
	"github.com/rbright/oto/internal/hypr"
)

type noticeKind int

const (
	noticeRecording noticeKind = iota + 1
	noticeWorking
	noticeOK
	noticeError
)

type notice struct {
	kind      noticeKind
	text      string
	timeoutMS int
}

// surface shows at most one notice at a time.
type surface interface {
	show(ctx context.Context, n notice) error
	dismiss(ctx context.Context) error
}

func newSurface(cfg config.IndicatorConfig) surface {
	appName := strings.TrimSpace(cfg.DesktopAppName)
	if appName == "" {
		appName = "oto"
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "desktop":
		return &desktopSurface{appName: appName}
	case "system":
		return systemSurface{appName: appName}
	default:
		return hyprSurface{}
	}
}

type hyprSurface struct{}

func (hyprSurface) show(ctx context.Context, n notice) error {
	icon, color := hypr.IconInfo, hypr.ColorInfo
	switch n.kind {
	case noticeWorking:
		color = hypr.ColorWorking
	case noticeOK:
		icon, color = hypr.IconOK, hypr.ColorOK
	case noticeError:
		icon, color = hypr.IconError, hypr.ColorError
	}
	return hypr.Notify(ctx, icon, n.timeoutMS, color, n.text)
}

func (hyprSurface) dismiss(ctx context.Context) error {
	return hypr.DismissNotify(ctx)
}

// desktopSurface talks to org.freedesktop.Notifications through busctl so
// each notice replaces the previous one in place.
type desktopSurface struct {
	appName string

	mu sync.Mutex
	id uint32
}

func (d *desktopSurface) show(ctx context.Context, n notice) error {
	d.mu.Lock()
	replaceID := d.id
	d.mu.Unlock()

	out, err := busctl(ctx, "Notify", "susssasa{sv}i",
		d.appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"",
		n.text,
		"",
		"0", // actions
		"0", // hints
		strconv.Itoa(n.timeoutMS),
	)
	if err != nil {
		return fmt.Errorf("desktop notify failed: %w", err)
	}

	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return fmt.Errorf("desktop notify invalid response: %q", out)
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}

	d.mu.Lock()
	d.id = uint32(id)
	d.mu.Unlock()
	return nil
}

func (d *desktopSurface) dismiss(ctx context.Context) error {
	d.mu.Lock()
	id := d.id
	d.id = 0
	d.mu.Unlock()
	if id == 0 {
		return nil
	}
	if _, err := busctl(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("desktop dismiss failed: %w", err)
	}
	return nil
}

func busctl(ctx context.Context, method string, args ...string) (string, error) {
	argv := append([]string{
		"--user", "call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		method,
	}, args...)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "busctl", argv...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return "", err
		}
		return "", fmt.Errorf("%w (%s)", err, detail)
	}
	return strings.TrimSpace(string(out)), nil
}

// systemSurface uses the platform notifier (toast, NSUserNotification,
// notify-send). Notices cannot be withdrawn, so only outcomes are shown.
type systemSurface struct {
	appName string
}

func (s systemSurface) show(_ context.Context, n notice) error {
	if n.kind != noticeOK && n.kind != noticeError {
		return nil
	}
	return beeep.Notify(s.appName, n.text, "")
}

func (systemSurface) dismiss(context.Context) error { return nil }
