package ipc

import "github.com/rbright/oto/internal/history"

// Commands understood by the daemon.
const (
	CommandStatus       = "status"
	CommandPress        = "press"
	CommandRelease      = "release"
	CommandHistory      = "history"
	CommandClearHistory = "clear-history"
	CommandCopy         = "copy"
	CommandReload       = "reload"
	CommandStop         = "stop"
)

type Request struct {
	Command string `json:"command"`
	Index   int    `json:"index,omitempty"`
}

type Response struct {
	OK      bool            `json:"ok"`
	State   string          `json:"state,omitempty"`
	Status  string          `json:"status,omitempty"`
	Level   float32         `json:"level,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	History []history.Entry `json:"history,omitempty"`
}
