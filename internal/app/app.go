package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/intervue/internal/api"
	"github.com/rbright/intervue/internal/audio"
	"github.com/rbright/intervue/internal/cli"
	"github.com/rbright/intervue/internal/config"
	"github.com/rbright/intervue/internal/doctor"
	"github.com/rbright/intervue/internal/health"
	"github.com/rbright/intervue/internal/ipc"
	"github.com/rbright/intervue/internal/logging"
	"github.com/rbright/intervue/internal/version"
)

const forwardTimeout = 220 * time.Millisecond

// forwardTimeouts covers commands that wait on the model gateway or the audio store.
var forwardTimeouts = map[string]time.Duration{
	"submit": 90 * time.Second,
	"replay": 15 * time.Second,
}

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
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("intervue"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("intervue"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	level, levelErr := logging.LevelFromEnv(slog.LevelInfo)
	if levelErr != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", levelErr)
	}
	logOpts := logging.Options{Level: level}
	if parsed.Command == cli.CommandServe {
		logOpts.Mirror = r.Stderr
	}
	logRuntime, err := logging.New(logOpts)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
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
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"env_files", cfgLoaded.EnvFiles,
		"log", logRuntime.Path,
	)

	switch {
	case parsed.Command == cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case parsed.Command == cli.CommandDevices:
		return r.commandDevices(ctx)
	case parsed.Command == cli.CommandProbe:
		return r.commandProbe(ctx, parsed, cfgLoaded.Config)
	case parsed.Command == cli.CommandStatus:
		return r.commandStatus(ctx)
	case parsed.Command == cli.CommandRun:
		return r.commandRun(ctx, parsed, cfgLoaded.Config, logger)
	case parsed.Command == cli.CommandServe:
		return r.commandServe(ctx, parsed, cfgLoaded.Config, logger)
	case parsed.Command.Forwarded():
		req, err := buildRequest(parsed)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		return r.forwardOrFail(ctx, req)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// buildRequest maps a control command onto its ipc request, reading any code file.
func buildRequest(parsed cli.Parsed) (ipc.Request, error) {
	req := ipc.Request{Command: string(parsed.Command), Text: parsed.Text, Language: parsed.Language}
	if parsed.CodePath == "" {
		return req, nil
	}

	data, err := os.ReadFile(parsed.CodePath)
	if err != nil {
		return ipc.Request{}, fmt.Errorf("read code file: %w", err)
	}
	req.Code = string(data)
	if req.Language == "" {
		req.Language = strings.TrimPrefix(filepath.Ext(parsed.CodePath), ".")
	}
	return req, nil
}

func (r Runner) commandDevices(ctx context.Context) int {
	sources, err := audio.ListSources(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	sinks, err := audio.ListSinks(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	devices := append(sources, sinks...)
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s %s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.Kind,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandProbe(ctx context.Context, parsed cli.Parsed, cfg config.Config) int {
	addr := parsed.Addr
	if addr == "" {
		addr = cfg.Server.HealthListen
	}

	status, err := health.Probe(ctx, addr, api.ServiceName, health.DefaultDialTimeout)
	if status != "" {
		fmt.Fprintln(r.Stdout, status)
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"})
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			fmt.Fprintln(r.Stdout, "idle")
			return 0
		}
		fmt.Fprintf(r.Stdout, "%s question=%d budget=%d\n", resp.State, resp.QuestionIndex+1, resp.Budget)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active intervue session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// tryForward reports handled=false only when no session owns the socket.
func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	timeout, ok := forwardTimeouts[req.Command]
	if !ok {
		timeout = forwardTimeout
	}
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
