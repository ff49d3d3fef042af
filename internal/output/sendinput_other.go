//go:build !windows

package output

import "errors"

// NewSendInputSender is only available on Windows.
func NewSendInputSender() (ChordSender, error) {
	return nil, errors.New("paste backend \"sendinput\" requires windows")
}
