//go:build windows

package hotkey

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	whKeyboardLL  = 13
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmQuit        = 0x0012
	llkhfInjected = 0x10

	vkShift   = 0x10
	vkControl = 0x11
	vkMenu    = 0x12
	vkLWin    = 0x5B
	vkRWin    = 0x5C
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procGetAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type winMsg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	ptX     int32
	ptY     int32
}

// HookListener observes the keyboard through a WH_KEYBOARD_LL hook. Every
// event is passed on to CallNextHookEx; nothing is swallowed.
type HookListener struct {
	emitter

	mu       sync.Mutex
	tracker  *Tracker
	threadID uint32
	done     chan struct{}

	callbackOnce sync.Once
	callback     uintptr
}

// NewHookListener returns an inert hook listener. Start installs the hook.
func NewHookListener(def Definition, logger *slog.Logger) (Listener, error) {
	return &HookListener{
		emitter: newEmitter(logger),
		tracker: NewTracker(def),
	}, nil
}

func (l *HookListener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.done != nil {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	l.callbackOnce.Do(func() {
		l.callback = windows.NewCallback(l.hookProc)
	})

	errCh := make(chan error, 1)
	done := make(chan struct{})
	go l.pump(errCh, done)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-time.After(2 * time.Second):
		go abandonInstall(errCh, l.quitPump)
		return &HookInstallationError{Err: errors.New("timed out waiting for hook thread")}
	case <-ctx.Done():
		go abandonInstall(errCh, l.quitPump)
		return ctx.Err()
	}

	l.mu.Lock()
	l.done = done
	l.mu.Unlock()
	return nil
}

// pump installs the hook and runs the message loop on one locked OS thread.
func (l *HookListener) pump(errCh chan<- error, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	hook, _, callErr := procSetWindowsHookExW.Call(whKeyboardLL, l.callback, 0, 0)
	if hook == 0 {
		errCh <- hookError(callErr)
		return
	}

	l.mu.Lock()
	l.threadID = windows.GetCurrentThreadId()
	l.mu.Unlock()
	errCh <- nil

	var msg winMsg
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
	}
	_, _, _ = procUnhookWindowsHookEx.Call(hook)
}

func (l *HookListener) hookProc(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) >= 0 {
		info := (*kbdllhookstruct)(unsafe.Pointer(lParam))
		// injected events include our own paste chord
		if info.flags&llkhfInjected == 0 {
			l.handle(uint32(wParam), Key(info.vkCode))
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return ret
}

func (l *HookListener) handle(message uint32, key Key) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch message {
	case wmKeyDown, wmSysKeyDown:
		if key != l.tracker.Definition().Key {
			return
		}
		if ev, ok := l.tracker.KeyDown(key, sampleModifiers()); ok {
			l.emit(ev)
		}
	case wmKeyUp, wmSysKeyUp:
		if ev, ok := l.tracker.KeyUp(key); ok {
			l.emit(ev)
		}
	}
}

// quitPump ends the message loop of an installed hook that Start gave up on.
func (l *HookListener) quitPump() {
	l.mu.Lock()
	threadID := l.threadID
	l.mu.Unlock()
	_, _, _ = procPostThreadMessageW.Call(uintptr(threadID), wmQuit, 0, 0)
}

// Stop synthesizes a pending release and removes the hook.
func (l *HookListener) Stop() error {
	l.mu.Lock()
	done := l.done
	if done == nil {
		l.mu.Unlock()
		return nil
	}
	l.done = nil
	if ev, ok := l.tracker.Reset(); ok {
		l.emit(ev)
	}
	threadID := l.threadID
	l.mu.Unlock()

	r, _, callErr := procPostThreadMessageW.Call(uintptr(threadID), wmQuit, 0, 0)
	if r == 0 {
		return hookError(callErr)
	}
	<-done
	return nil
}

func (l *HookListener) Events() <-chan Event {
	return l.ch
}

func (l *HookListener) SetDefinition(def Definition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev, ok := l.tracker.Replace(def); ok {
		l.emit(ev)
	}
}

func (l *HookListener) Definition() Definition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracker.Definition()
}

func sampleModifiers() Modifier {
	var mods Modifier
	if keyDown(vkControl) {
		mods |= ModControl
	}
	if keyDown(vkMenu) {
		mods |= ModAlt
	}
	if keyDown(vkShift) {
		mods |= ModShift
	}
	if keyDown(vkLWin) || keyDown(vkRWin) {
		mods |= ModWin
	}
	return mods
}

func keyDown(vk uintptr) bool {
	state, _, _ := procGetAsyncKeyState.Call(vk)
	return state&0x8000 != 0
}

func hookError(err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &HookInstallationError{Code: uint32(errno), Err: err}
	}
	return &HookInstallationError{Err: err}
}
