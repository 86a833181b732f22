package audio

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Mic is the local capture service: it checks that a usable Pulse source exists and
// tracks the capture and captions toggles driven by playback.
type Mic struct {
	logger   *slog.Logger
	input    string
	fallback string
	selector func(ctx context.Context, input, fallback string) (Selection, error)

	capture  atomic.Bool
	captions atomic.Bool
	cue      func(Cue)
}

// NewMic constructs a microphone readiness check for the configured source.
func NewMic(logger *slog.Logger, input, fallback string) *Mic {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mic{logger: logger, input: input, fallback: fallback, selector: SelectSource}
}

// Available reports whether a usable, unmuted source can be selected.
func (m *Mic) Available(ctx context.Context) bool {
	selection, err := m.selector(ctx, m.input, m.fallback)
	if err != nil {
		m.logger.Warn("microphone unavailable", "error", err)
		return false
	}
	if selection.Warning != "" {
		m.logger.Warn(selection.Warning)
	}
	m.logger.Debug("microphone selected", "device", selection.Device.ID)
	return true
}

// OnCue registers fn to run, on its own goroutine, whenever capture flips. Call it
// before the mic is shared.
func (m *Mic) OnCue(fn func(Cue)) {
	m.cue = fn
}

func (m *Mic) SetCapture(enabled bool) {
	if m.capture.Swap(enabled) == enabled {
		return
	}
	m.logger.Debug("capture toggled", "enabled", enabled)
	if m.cue == nil {
		return
	}
	cue := CueMuted
	if enabled {
		cue = CueListening
	}
	go m.cue(cue)
}

func (m *Mic) SetCaptions(enabled bool) {
	m.captions.Store(enabled)
}

// CaptureEnabled reports the last capture toggle.
func (m *Mic) CaptureEnabled() bool { return m.capture.Load() }

// CaptionsEnabled reports the last captions toggle.
func (m *Mic) CaptionsEnabled() bool { return m.captions.Load() }
