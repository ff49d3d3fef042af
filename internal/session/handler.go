package session

import (
	"context"
	"fmt"

	"github.com/rbright/oto/internal/ipc"
)

// Handle serves the read-side IPC commands: status, history, clear-history
// and copy.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	snap := c.Snapshot()
	resp := ipc.Response{State: string(snap.State), Status: snap.Status, Level: snap.Level}

	switch req.Command {
	case ipc.CommandStatus:
		resp.OK = true
	case ipc.CommandHistory:
		resp.OK = true
		resp.History = snap.History
	case ipc.CommandClearHistory:
		c.history.Clear()
		resp.OK = true
		resp.Message = "History cleared"
	case ipc.CommandCopy:
		res := c.Copy(ctx, req.Index)
		resp.OK = res.Success
		resp.Message = res.Message
		resp.Error = res.Error
	default:
		resp.Error = fmt.Sprintf("unknown command: %s", req.Command)
	}
	return resp
}
