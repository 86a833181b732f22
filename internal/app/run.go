package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rbright/intervue/internal/audio"
	"github.com/rbright/intervue/internal/cli"
	"github.com/rbright/intervue/internal/config"
	"github.com/rbright/intervue/internal/conversation"
	"github.com/rbright/intervue/internal/ipc"
	"github.com/rbright/intervue/internal/session"
)

// commandRun owns one local interview: it holds the control socket, plays audio through
// Pulse, and returns once the session finishes or is stopped.
func (r Runner) commandRun(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	set, err := loadQuestionSet(questionsPath(parsed.QuestionsPath, cfg))
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	acquireOpts := ipc.DefaultAcquireOptions()
	acquireOpts.OnStale = func(path string) {
		logger.Warn("removed stale session socket", "path", path)
	}
	listener, err := ipc.Acquire(ctx, socketPath, acquireOpts)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: an intervue session is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer deps.Close()

	observer := newConsoleObserver(r.Stdout, r.Stderr)
	opts := deps.sessionOptions(cfg, logger)
	mic := audio.NewMic(logger, cfg.Audio.Input, cfg.Audio.Fallback)
	if cfg.Playback.Cues {
		mic.OnCue(func(cue audio.Cue) {
			if err := audio.PlayCue(ctx, cue, cfg.Playback.Sink); err != nil {
				logger.Debug("play cue failed", "cue", cue.String(), "error", err)
			}
		})
	}
	opts.Capture = mic
	opts.Player = audio.NewPulsePlayer(logger, cfg.Playback.Sink, time.Duration(cfg.Playback.LatencyMS)*time.Millisecond)
	opts.Observer = observer
	controller := session.New(opts)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	if err := controller.Start(ctx, set.Questions, set.Meta); err != nil {
		serverCancel()
		<-serverErrCh
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	select {
	case <-observer.Done():
	case <-ctx.Done():
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := controller.Close(closeCtx); err != nil {
		logger.Warn("close session failed", "error", err)
	}

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	snap := controller.Snapshot()
	logger.Info("session complete",
		"session_id", snap.SessionID,
		"finished", snap.Finished,
		"questions", snap.QuestionCount,
		"turns", snap.Turns,
	)
	if snap.Finished {
		fmt.Fprintln(r.Stdout, "interview complete")
	} else {
		fmt.Fprintln(r.Stdout, "stopped")
	}
	return 0
}

// consoleObserver prints turns as they happen and signals once the session is over.
// A finished session is over only after its last clip has played out.
type consoleObserver struct {
	stdout io.Writer
	stderr io.Writer

	mu   sync.Mutex
	once sync.Once
	done chan struct{}
}

func newConsoleObserver(stdout, stderr io.Writer) *consoleObserver {
	return &consoleObserver{stdout: stdout, stderr: stderr, done: make(chan struct{})}
}

func (o *consoleObserver) Done() <-chan struct{} { return o.done }

func (o *consoleObserver) StateChanged(s session.Snapshot) {
	if s.Closed || (s.Finished && !s.Playing && !s.Busy) {
		o.once.Do(func() { close(o.done) })
	}
}

func (o *consoleObserver) TurnAppended(t conversation.Turn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.stdout, "%s: %s\n", t.Speaker, t.Text)
}

func (o *consoleObserver) Failed(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.stderr, "error: %s: %v\n", op, err)
}
