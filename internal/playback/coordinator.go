// Package playback serializes interviewer audio with candidate capture.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPlaybackConflict is returned when Play is called while a clip is already playing.
var ErrPlaybackConflict = errors.New("playback conflict: a clip is already playing")

// ErrRetiredClip is returned when a clip's epoch was retired before it reached the queue.
var ErrRetiredClip = errors.New("clip belongs to a retired epoch")

// Clip is one unit of interviewer audio. Exactly one of URL or Audio is set.
type Clip struct {
	ID    string
	URL   string
	Audio []byte
	MIME  string
	Label string
	// Epoch ties the clip to the question that produced it; see Coordinator.Retire.
	Epoch uint64
}

// Player renders clips. done must be called at most once per Start, when the clip
// finishes or fails; a nil error means natural completion.
type Player interface {
	Start(ctx context.Context, clip Clip, done func(error)) error
	Stop(ctx context.Context) error
}

// Toggles is the capture and captions surface that playback drives. Implementations
// must not call back into the Coordinator.
type Toggles interface {
	SetCapture(enabled bool)
	SetCaptions(enabled bool)
}

// Ended is the single completion notification for one started clip.
type Ended struct {
	Clip    Clip
	Stopped bool
	Err     error
}

// State is a point-in-time view of the coordinator.
type State struct {
	Playing  bool
	ClipID   string
	Capture  bool
	Captions bool
	Pending  int
}

type noopToggles struct{}

func (noopToggles) SetCapture(bool)  {}
func (noopToggles) SetCaptions(bool) {}

type active struct {
	clip Clip
	gen  uint64
}

// Coordinator owns the single audio output of one session.
type Coordinator struct {
	logger  *slog.Logger
	player  Player
	toggles Toggles
	onEnded func(Ended)

	mu        sync.Mutex
	gen       uint64
	stoppedAt uint64
	playing   *active
	pending   []Clip
	floor     uint64
	capture   bool
	captions  bool
}

// NewCoordinator constructs a coordinator. onEnded is invoked outside internal locks.
func NewCoordinator(logger *slog.Logger, player Player, toggles Toggles, onEnded func(Ended)) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if toggles == nil {
		toggles = noopToggles{}
	}
	if onEnded == nil {
		onEnded = func(Ended) {}
	}
	return &Coordinator{
		logger:  logger,
		player:  player,
		toggles: toggles,
		onEnded: onEnded,
	}
}

// Play starts clip immediately or fails with ErrPlaybackConflict.
func (c *Coordinator) Play(ctx context.Context, clip Clip) error {
	c.mu.Lock()
	if clip.Epoch < c.floor {
		c.mu.Unlock()
		return ErrRetiredClip
	}
	if c.playing != nil {
		c.mu.Unlock()
		return ErrPlaybackConflict
	}
	gen := c.beginLocked(clip)
	c.mu.Unlock()

	return c.start(ctx, clip, gen)
}

// Enqueue plays clip now when idle, otherwise holds it until the current clip ends.
func (c *Coordinator) Enqueue(ctx context.Context, clip Clip) error {
	c.mu.Lock()
	if clip.Epoch < c.floor {
		c.mu.Unlock()
		return ErrRetiredClip
	}
	if c.playing != nil {
		c.pending = append(c.pending, clip)
		c.mu.Unlock()
		c.logger.Debug("clip queued", "clip_id", clip.ID)
		return nil
	}
	gen := c.beginLocked(clip)
	c.mu.Unlock()

	return c.start(ctx, clip, gen)
}

// Stop releases the audio resource, drops queued clips, and disables capture.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	c.stoppedAt = c.gen
	current := c.playing
	c.playing = nil
	c.pending = nil
	c.setCaptureLocked(false)
	c.mu.Unlock()

	if current == nil {
		return nil
	}

	err := c.player.Stop(ctx)
	c.onEnded(Ended{Clip: current.clip, Stopped: true})
	return err
}

// Retire drops queued clips whose epoch is below epoch and refuses any that arrive
// later. The clip already playing is left to finish. It returns the number dropped.
func (c *Coordinator) Retire(epoch uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch <= c.floor {
		return 0
	}
	c.floor = epoch

	kept := c.pending[:0]
	for _, clip := range c.pending {
		if clip.Epoch >= epoch {
			kept = append(kept, clip)
		}
	}
	dropped := len(c.pending) - len(kept)
	clear(c.pending[len(kept):])
	c.pending = kept
	if dropped > 0 {
		c.logger.Debug("retired queued clips", "epoch", epoch, "dropped", dropped)
	}
	return dropped
}

// EnableCapture opens capture when no clip is playing and reports whether it did.
func (c *Coordinator) EnableCapture() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing != nil {
		return false
	}
	c.setCaptureLocked(true)
	c.setCaptionsLocked(true)
	return true
}

// DisableCapture closes capture regardless of playback.
func (c *Coordinator) DisableCapture() {
	c.mu.Lock()
	c.setCaptureLocked(false)
	c.mu.Unlock()
}

// Playing reports whether a clip is mid-playback.
func (c *Coordinator) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing != nil
}

// CaptureEnabled reports whether capture is open.
func (c *Coordinator) CaptureEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture
}

// State returns a snapshot of playback and capture flags.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Playing:  c.playing != nil,
		Capture:  c.capture,
		Captions: c.captions,
		Pending:  len(c.pending),
	}
	if c.playing != nil {
		s.ClipID = c.playing.clip.ID
	}
	return s
}

func (c *Coordinator) beginLocked(clip Clip) uint64 {
	c.gen++
	c.playing = &active{clip: clip, gen: c.gen}
	c.setCaptureLocked(false)
	c.setCaptionsLocked(false)
	return c.gen
}

func (c *Coordinator) start(ctx context.Context, clip Clip, gen uint64) error {
	c.logger.Debug("clip started", "clip_id", clip.ID, "label", clip.Label)

	err := c.player.Start(ctx, clip, func(err error) { c.finish(ctx, gen, err) })
	if err != nil {
		c.abort(ctx, clip, gen, err)
		return err
	}

	c.mu.Lock()
	stale := c.stoppedAt > gen && c.playing == nil
	c.mu.Unlock()
	if stale {
		// Stop raced with Start; the player may have begun a clip nobody owns.
		_ = c.player.Stop(ctx)
	}
	return nil
}

// finish handles the player's completion callback for generation gen.
func (c *Coordinator) finish(ctx context.Context, gen uint64, playErr error) {
	c.mu.Lock()
	if c.playing == nil || c.playing.gen != gen {
		c.mu.Unlock()
		c.logger.Debug("stale clip completion ignored")
		return
	}
	ended := c.playing.clip
	c.playing = nil
	next, nextGen := c.advanceLocked()
	c.mu.Unlock()

	if playErr != nil {
		c.logger.Warn("clip playback failed", "clip_id", ended.ID, "error", playErr)
	}
	c.onEnded(Ended{Clip: ended, Err: playErr})
	c.startNext(ctx, next, nextGen)
}

// abort ends a clip whose Start failed. A clip already released by Stop has had its
// Ended and gets no second one.
func (c *Coordinator) abort(ctx context.Context, clip Clip, gen uint64, err error) {
	c.mu.Lock()
	if c.playing == nil || c.playing.gen != gen {
		c.mu.Unlock()
		return
	}
	c.playing = nil
	next, nextGen := c.advanceLocked()
	c.mu.Unlock()

	c.logger.Error("clip failed to start", "clip_id", clip.ID, "error", err)
	c.onEnded(Ended{Clip: clip, Err: err})
	c.startNext(ctx, next, nextGen)
}

// advanceLocked begins the next queued clip, or reopens capture when none is left.
func (c *Coordinator) advanceLocked() (*Clip, uint64) {
	if len(c.pending) == 0 {
		c.setCaptureLocked(true)
		c.setCaptionsLocked(true)
		return nil, 0
	}
	clip := c.pending[0]
	c.pending = c.pending[1:]
	return &clip, c.beginLocked(clip)
}

func (c *Coordinator) startNext(ctx context.Context, next *Clip, gen uint64) {
	if next == nil {
		return
	}
	// Start failures are reported through Ended by abort.
	_ = c.start(ctx, *next, gen)
}

func (c *Coordinator) setCaptureLocked(enabled bool) {
	if c.capture == enabled {
		return
	}
	c.capture = enabled
	c.toggles.SetCapture(enabled)
}

func (c *Coordinator) setCaptionsLocked(enabled bool) {
	if c.captions == enabled {
		return
	}
	c.captions = enabled
	c.toggles.SetCaptions(enabled)
}
