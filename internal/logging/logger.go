// Package logging configures runtime JSONL logging output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// EnvLevel overrides the default log level, e.g. INTERVUE_LOG_LEVEL=debug.
const EnvLevel = "INTERVUE_LOG_LEVEL"

// DefaultMaxBytes is the log size at which New rotates log.jsonl to log.jsonl.1.
const DefaultMaxBytes = 8 << 20

// Runtime bundles the configured logger and its open file handle lifecycle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Options tunes the runtime logger.
type Options struct {
	Level slog.Level
	// Mirror also receives every record, e.g. stderr for the server process.
	Mirror io.Writer
	// MaxBytes rotates an existing log at open time; zero means DefaultMaxBytes.
	MaxBytes int64
}

// New opens the JSONL log under the state dir, rotating it first when it has grown
// past MaxBytes. One previous generation is kept.
func New(opts Options) (Runtime, error) {
	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := rotate(path, maxBytes); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, err
	}

	var out io.Writer = f
	if opts.Mirror != nil {
		out = io.MultiWriter(f, opts.Mirror)
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level}))
	return Runtime{Logger: logger, Path: path, closer: f}, nil
}

// LevelFromEnv reads EnvLevel, falling back to def when unset.
func LevelFromEnv(def slog.Level) (slog.Level, error) {
	raw := strings.TrimSpace(os.Getenv(EnvLevel))
	if raw == "" {
		return def, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return def, fmt.Errorf("%s: %w", EnvLevel, err)
	}
	return level, nil
}

func rotate(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() < maxBytes {
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}
	return nil
}

// resolveLogPath selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func resolveLogPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "intervue", "log.jsonl"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "intervue", "log.jsonl"), nil
}
