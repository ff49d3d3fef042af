package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/rbright/oto/internal/audio"
	"github.com/rbright/oto/internal/config"
	"github.com/rbright/oto/internal/hotkey"
	"github.com/rbright/oto/internal/indicator"
	"github.com/rbright/oto/internal/ipc"
	"github.com/rbright/oto/internal/logging"
	"github.com/rbright/oto/internal/output"
	"github.com/rbright/oto/internal/session"
	"github.com/rbright/oto/internal/transcribe"
)

const (
	acquireProbeTimeout = 200 * time.Millisecond
	acquireRetries      = 8
)

// daemon owns the long-running session and answers control requests.
type daemon struct {
	logger     *slog.Logger
	logs       logging.Runtime
	configPath string
	cancel     context.CancelFunc

	settings   atomic.Pointer[session.Settings]
	signal     *hotkey.SignalListener
	listeners  []hotkey.Listener
	controller *session.Controller

	closers []func()
}

func (r Runner) commandRun(
	ctx context.Context,
	configPath string,
	loaded config.Loaded,
	logs logging.Runtime,
	logger *slog.Logger,
) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	socketPath := ipc.RuntimeSocketPath()
	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{
		ProbeTimeout: acquireProbeTimeout,
		Retries:      acquireRetries,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	d, err := newDaemon(ctx, cancel, configPath, loaded, logs, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("daemon startup failed", "error", err.Error())
		return 1
	}
	defer d.close()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(ctx, listener, d)
	}()

	fmt.Fprintf(r.Stdout, "oto ready: hold %s to dictate (socket %s)\n", d.signal.Definition(), socketPath)
	logger.Info("daemon started", "socket", socketPath, "hotkey", d.signal.Definition().String())

	runErr := d.controller.Run(ctx)
	cancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	if runErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		return 1
	}
	logger.Info("daemon stopped")
	return 0
}

func newDaemon(
	ctx context.Context,
	cancel context.CancelFunc,
	configPath string,
	loaded config.Loaded,
	logs logging.Runtime,
	logger *slog.Logger,
) (*daemon, error) {
	cfg := loaded.Config
	d := &daemon{logger: logger, logs: logs, configPath: configPath, cancel: cancel}
	settings := sessionSettings(cfg)
	d.settings.Store(&settings)

	def, err := hotkey.Parse(cfg.Hotkey.Combo)
	if err != nil {
		return nil, err
	}
	listeners, err := startListeners(ctx, cfg.Hotkey.Backend, def, logger)
	if err != nil {
		return nil, err
	}
	d.signal = listeners[0].(*hotkey.SignalListener)
	d.listeners = listeners

	source, err := audio.NewSource(cfg.Audio.Backend, cfg.Audio.Input)
	if err != nil {
		d.stopListeners()
		return nil, err
	}
	recorder := audio.NewRecorder(source, logger, nil)

	httpClient, err := transcribe.NewHTTPClient(time.Duration(cfg.Transcription.TimeoutMS)*time.Millisecond, cfg.Transcription.HTTP2)
	if err != nil {
		d.stopListeners()
		return nil, err
	}
	transcriber := transcribe.New(cfg.Transcription.Endpoint, httpClient, logger)

	injector, err := newInjector(cfg, logger)
	if err != nil {
		d.stopListeners()
		return nil, err
	}
	d.closers = append(d.closers, injector.Close)

	sink := indicator.New(cfg.Indicator, logger)
	d.closers = append(d.closers, sink.Close)

	d.controller = session.New(session.Deps{
		Listener:    newMergedListener(listeners...),
		Recorder:    recorder,
		Transcriber: transcriber,
		Injector:    injector,
		Sink:        sink,
		Settings:    d.currentSettings,
		Logger:      logger,
	})
	return d, nil
}

// startListeners always starts a SignalListener first so compositor binds
// work over IPC. The OS hook is added when the backend allows it.
func startListeners(ctx context.Context, backend string, def hotkey.Definition, logger *slog.Logger) ([]hotkey.Listener, error) {
	signal := hotkey.NewSignalListener(def, logger)
	if err := signal.Start(ctx); err != nil {
		return nil, err
	}
	listeners := []hotkey.Listener{signal}
	if backend == "signal" {
		return listeners, nil
	}

	hook, err := hotkey.NewHookListener(def, logger)
	if err == nil {
		err = hook.Start(ctx)
	}
	if err != nil {
		if backend == "hook" {
			_ = signal.Stop()
			return nil, fmt.Errorf("hotkey backend hook: %w", err)
		}
		logger.Info("keyboard hook unavailable; listening for press/release signals", "error", err.Error())
		return listeners, nil
	}
	return append(listeners, hook), nil
}

func newInjector(cfg config.Config, logger *slog.Logger) (*output.Injector, error) {
	clip, err := output.NewClipboard(cfg.Clipboard.Backend, cfg.ClipboardCmd.Argv)
	if err != nil {
		return nil, err
	}
	chord, err := output.NewChordSender(cfg.Paste.Backend, cfg.PasteCmd.Argv, logger)
	if err != nil {
		return nil, err
	}
	return output.NewInjector(clip, chord, nil, logger), nil
}

// sessionSettings converts the per-cycle parts of cfg.
func sessionSettings(cfg config.Config) session.Settings {
	return session.Settings{
		MaxRecording: time.Duration(cfg.Audio.MaxRecordingSeconds) * time.Second,
		IdleDelay:    session.DefaultIdleDelay,
		SoundCues:    cfg.Indicator.SoundEnable,
		Transcription: transcribe.Options{
			APIKey:           cfg.Transcription.APIKey,
			Model:            cfg.Transcription.Model,
			Language:         cfg.Transcription.Language,
			AddPunctuation:   cfg.Transcription.AddPunctuation,
			PreserveNewlines: cfg.Transcription.PreserveNewlines,
		},
		Injection: output.Options{
			PasteDelay:       time.Duration(cfg.Paste.DelayMS) * time.Millisecond,
			RestoreClipboard: cfg.Paste.RestoreClipboard,
			RestoreDelay:     time.Duration(cfg.Paste.RestoreDelayMS) * time.Millisecond,
		},
	}
}

func (d *daemon) currentSettings() session.Settings {
	return *d.settings.Load()
}

// Handle routes hotkey signals, reload and stop here; everything else is
// answered by the controller.
func (d *daemon) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandPress:
		return d.signalEdge(d.signal.Press, "pressed", "already held")
	case ipc.CommandRelease:
		return d.signalEdge(d.signal.Release, "released", "not held")
	case ipc.CommandReload:
		return d.withState(d.reload())
	case ipc.CommandStop:
		d.logger.Info("stop requested over ipc")
		d.cancel()
		return d.withState(ipc.Response{OK: true, Message: "stopping"})
	default:
		return d.controller.Handle(ctx, req)
	}
}

func (d *daemon) signalEdge(edge func() (bool, error), fired, ignored string) ipc.Response {
	ok, err := edge()
	if err != nil {
		return d.withState(ipc.Response{Error: err.Error()})
	}
	if !ok {
		return d.withState(ipc.Response{OK: true, Message: ignored})
	}
	return d.withState(ipc.Response{OK: true, Message: fired})
}

// reload re-reads config. Per-cycle settings, the log level, and the hotkey
// apply immediately; backend and endpoint changes need a restart.
func (d *daemon) reload() ipc.Response {
	loaded, err := config.Load(d.configPath)
	if err != nil {
		d.logger.Error("config reload failed", "error", err.Error())
		return ipc.Response{Error: err.Error()}
	}
	def, err := hotkey.Parse(loaded.Config.Hotkey.Combo)
	if err != nil {
		return ipc.Response{Error: err.Error()}
	}

	settings := sessionSettings(loaded.Config)
	d.settings.Store(&settings)
	if err := d.logs.SetLevel(loaded.Config.Log.Level); err != nil {
		d.logger.Warn("log level not applied", "error", err.Error())
	}
	for _, l := range d.listeners {
		l.SetDefinition(def)
	}

	for _, w := range loaded.Warnings {
		d.logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	d.logger.Info("config reloaded", "path", loaded.Path, "hotkey", def.String(), "key_source", loaded.KeySource)
	return ipc.Response{OK: true, Message: "Configuration reloaded"}
}

func (d *daemon) withState(resp ipc.Response) ipc.Response {
	snap := d.controller.Snapshot()
	resp.State = string(snap.State)
	resp.Status = snap.Status
	return resp
}

func (d *daemon) stopListeners() {
	var errs []error
	for _, l := range d.listeners {
		errs = append(errs, l.Stop())
	}
	if err := errors.Join(errs...); err != nil {
		d.logger.Warn("hotkey listener stop failed", "error", err.Error())
	}
}

func (d *daemon) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
