package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrAlreadyRunning = errors.New("intervue session already running")

// RuntimeSocketPath returns the owner socket under XDG_RUNTIME_DIR.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, "intervue.sock"), nil
}

// AcquireOptions tunes how a new owner claims the session socket.
type AcquireOptions struct {
	// ProbeTimeout bounds the status roundtrip used to tell a live owner from a stale file.
	ProbeTimeout time.Duration
	// Retries is how many extra listen attempts follow a stale-socket removal.
	Retries int
	// OnStale runs after a socket left by a dead owner has been removed.
	OnStale func(path string)
}

// DefaultAcquireOptions suits an interactive `intervue run`.
func DefaultAcquireOptions() AcquireOptions {
	return AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8}
}

// Acquire listens on path. An existing socket is probed: a live owner yields
// ErrAlreadyRunning, a dead one is unlinked and the listen retried with backoff.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}
		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, opts.ProbeTimeout)
		switch {
		case alive:
			return nil, ErrAlreadyRunning
		case probeErr != nil:
			// Something accepted but never answered; leave it for the user to inspect.
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
		if opts.OnStale != nil {
			opts.OnStale(path)
		}

		if attempt == opts.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
		}
	}

	return nil, fmt.Errorf("acquire socket %s: gave up after %d retries", path, opts.Retries)
}

func isAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "address already in use")
}
