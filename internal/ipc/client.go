package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// DefaultTimeout bounds a single control roundtrip.
const DefaultTimeout = 2 * time.Second

// Client talks to a running daemon over its control socket.
type Client struct {
	Path    string
	Timeout time.Duration
}

// Do sends one request and reads one newline-delimited response.
func (c Client) Do(ctx context.Context, req Request) (Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.Path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Command sends a bare command and turns a rejected response into an error.
func (c Client) Command(ctx context.Context, command string) (Response, error) {
	resp, err := c.Do(ctx, Request{Command: command})
	if err != nil {
		return resp, err
	}
	if !resp.OK {
		return resp, &CommandError{Command: command, Message: resp.Error}
	}
	return resp, nil
}

// Probe reports whether a responsive owner is listening. A missing socket or
// refused connection is a clean "not running".
func (c Client) Probe(ctx context.Context) (bool, error) {
	_, err := c.Do(ctx, Request{Command: CommandStatus})
	if err == nil {
		return true, nil
	}
	if isSocketMissing(err) || isConnectionRefused(err) {
		return false, nil
	}
	return false, fmt.Errorf("probe socket: %w", err)
}

// CommandError is a request the daemon answered with ok=false.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s rejected", e.Command)
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// NotRunning reports whether err means no daemon owns the socket.
func NotRunning(err error) bool {
	return isSocketMissing(err) || isConnectionRefused(err)
}

func isSocketMissing(err error) bool {
	return err != nil && errors.Is(err, os.ErrNotExist)
}

func isConnectionRefused(err error) bool {
	return err != nil && errors.Is(err, syscall.ECONNREFUSED)
}
