// Package app dispatches parsed commands to the daemon or to a running one.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/oto/internal/audio"
	"github.com/rbright/oto/internal/cli"
	"github.com/rbright/oto/internal/config"
	"github.com/rbright/oto/internal/doctor"
	"github.com/rbright/oto/internal/history"
	"github.com/rbright/oto/internal/ipc"
	"github.com/rbright/oto/internal/logging"
	"github.com/rbright/oto/internal/version"
)

const forwardTimeout = 500 * time.Millisecond

var errNoSession = errors.New("no active oto session")

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args, version.String(), r.Stdout, r.Stderr)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText())
		return 2
	}

	switch parsed.Command {
	case cli.CommandHelp:
		if !parsed.Printed {
			fmt.Fprint(r.Stdout, cli.HelpText())
		}
		return 0
	case cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	case cli.CommandKeySet:
		if err := config.StoreAPIKey(parsed.KeyValue); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, "API key stored in the system keychain")
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Log.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", string(parsed.Command),
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
		"key_source", cfgLoaded.KeySource,
	)

	switch parsed.Command {
	case cli.CommandRun:
		return r.commandRun(ctx, parsed.ConfigPath, cfgLoaded, logRuntime, logger)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded, doctor.Options{})
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandHistory:
		return r.commandHistory(ctx, parsed)
	case cli.CommandPress:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandPress})
	case cli.CommandRelease:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandRelease})
	case cli.CommandReload:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandReload})
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandStop})
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	resp, err := tryForward(ctx, ipc.RuntimeSocketPath(), ipc.Request{Command: ipc.CommandStatus})
	if errors.Is(err, errNoSession) {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	state := resp.State
	if state == "" {
		state = "idle"
	}
	if resp.Status != "" {
		fmt.Fprintf(r.Stdout, "%s: %s\n", state, resp.Status)
		return 0
	}
	fmt.Fprintln(r.Stdout, state)
	return 0
}

func (r Runner) commandHistory(ctx context.Context, parsed cli.Parsed) int {
	switch {
	case parsed.HistoryClear:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandClearHistory})
	case parsed.HistoryCopy != cli.NoIndex:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandCopy, Index: parsed.HistoryCopy})
	}

	resp, err := tryForward(ctx, ipc.RuntimeSocketPath(), ipc.Request{Command: ipc.CommandHistory})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(resp.History) == 0 {
		fmt.Fprintln(r.Stdout, "no history")
		return 0
	}
	for i, entry := range resp.History {
		fmt.Fprintln(r.Stdout, formatEntry(i, entry))
	}
	return 0
}

func formatEntry(i int, entry history.Entry) string {
	stamp := entry.Timestamp.Local().Format("2006-01-02 15:04:05")
	seconds := entry.Duration.Seconds()
	if entry.Success {
		return fmt.Sprintf("%2d  %s  %4.1fs  %s", i, stamp, seconds, entry.Text)
	}
	return fmt.Sprintf("%2d  %s  %4.1fs  failed: %s", i, stamp, seconds, entry.Error)
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	resp, err := tryForward(ctx, ipc.RuntimeSocketPath(), req)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// tryForward sends req to a running daemon. A missing or refused socket
// yields errNoSession; the socket file is left untouched.
func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, error) {
	client := ipc.Client{Path: socketPath, Timeout: forwardTimeout}
	resp, err := client.Do(ctx, req)
	switch {
	case err == nil && resp.OK:
		return resp, nil
	case err == nil:
		return resp, &ipc.CommandError{Command: req.Command, Message: resp.Error}
	case ipc.NotRunning(err):
		return ipc.Response{}, errNoSession
	default:
		return ipc.Response{}, fmt.Errorf("forward command %q: %w", req.Command, err)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
