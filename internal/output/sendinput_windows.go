//go:build windows

package output

import (
	"context"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	inputKeyboard  = 1
	keyeventfKeyUp = 0x0002
	vkControl      = 0x11
	vkV            = 0x56
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

// keyboardInput mirrors INPUT with the KEYBDINPUT arm; padding covers the
// larger MOUSEINPUT arm of the union.
type keyboardInput struct {
	inputType uint32
	ki        keybdInput
	padding   uint64
}

type keybdInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

// SendInputSender injects the chord with one SendInput call.
type SendInputSender struct{}

func NewSendInputSender() (ChordSender, error) {
	if err := procSendInput.Find(); err != nil {
		return nil, err
	}
	return SendInputSender{}, nil
}

func (SendInputSender) SendPasteChord(context.Context) (int, error) {
	inputs := []keyboardInput{
		keyEvent(vkControl, 0),
		keyEvent(vkV, 0),
		keyEvent(vkV, keyeventfKeyUp),
		keyEvent(vkControl, keyeventfKeyUp),
	}
	sent, _, callErr := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(sent) == len(inputs) {
		return int(sent), nil
	}

	var code uint32
	if errno, ok := callErr.(syscall.Errno); ok {
		code = uint32(errno)
	}
	return int(sent), &DeliveryError{Sent: int(sent), Total: chordInputs, Code: code}
}

func keyEvent(vk uint16, flags uint32) keyboardInput {
	return keyboardInput{
		inputType: inputKeyboard,
		ki:        keybdInput{wVk: vk, dwFlags: flags},
	}
}
