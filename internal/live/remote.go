package live

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rbright/intervue/internal/conversation"
	"github.com/rbright/intervue/internal/playback"
	"github.com/rbright/intervue/internal/session"
)

// errClientPlayback is reported when the browser could not play a clip.
var errClientPlayback = errors.New("client playback failed")

// errClipTimeout completes a clip the browser never reported as ended.
var errClipTimeout = errors.New("no playback_ended from client")

// defaultClipTimeout bounds one clip; prompts and replies run well under a minute.
const defaultClipTimeout = 3 * time.Minute

type sender interface {
	send(ctx context.Context, frame any) bool
}

// remotePlayer renders clips in the browser. Completion arrives as a playback_ended
// frame carrying the clip id.
type remotePlayer struct {
	ctx     context.Context
	out     sender
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]remoteClip
}

type remoteClip struct {
	done     func(error)
	watchdog *time.Timer
}

func newRemotePlayer(ctx context.Context, out sender, timeout time.Duration) *remotePlayer {
	if timeout <= 0 {
		timeout = defaultClipTimeout
	}
	return &remotePlayer{ctx: ctx, out: out, timeout: timeout, pending: make(map[string]remoteClip)}
}

func (p *remotePlayer) Start(_ context.Context, clip playback.Clip, done func(error)) error {
	frame := ServerPlay{Type: "play", ClipID: clip.ID, URL: clip.URL, MIME: clip.MIME, Label: clip.Label}
	if clip.URL == "" {
		frame.AudioB64 = base64.StdEncoding.EncodeToString(clip.Audio)
	}

	p.mu.Lock()
	p.pending[clip.ID] = remoteClip{
		done:     done,
		watchdog: time.AfterFunc(p.timeout, func() { p.expire(clip.ID) }),
	}
	p.mu.Unlock()

	if !p.out.send(p.ctx, frame) {
		p.mu.Lock()
		if rc, ok := p.pending[clip.ID]; ok {
			rc.watchdog.Stop()
			delete(p.pending, clip.ID)
		}
		p.mu.Unlock()
		return p.ctx.Err()
	}
	return nil
}

func (p *remotePlayer) Stop(_ context.Context) error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.pending))
	for id, rc := range p.pending {
		rc.watchdog.Stop()
		ids = append(ids, id)
	}
	clear(p.pending)
	p.mu.Unlock()

	for _, id := range ids {
		p.out.send(p.ctx, ServerStopAudio{Type: "stop_audio", ClipID: id})
	}
	return nil
}

// ended completes a clip. Unknown ids are ignored and reported false.
func (p *remotePlayer) ended(clipID, failure string) bool {
	var err error
	if failure != "" {
		err = errors.Join(errClientPlayback, errors.New(failure))
	}
	return p.complete(clipID, err)
}

// expire ends a clip the browser went silent on and tells it to stop the audio.
func (p *remotePlayer) expire(clipID string) {
	err := fmt.Errorf("%w: clip %s after %s", errClipTimeout, clipID, p.timeout)
	if p.complete(clipID, errors.Join(errClientPlayback, err)) {
		p.out.send(p.ctx, ServerStopAudio{Type: "stop_audio", ClipID: clipID})
	}
}

func (p *remotePlayer) complete(clipID string, err error) bool {
	p.mu.Lock()
	rc, ok := p.pending[clipID]
	delete(p.pending, clipID)
	p.mu.Unlock()
	if !ok {
		return false
	}
	rc.watchdog.Stop()
	rc.done(err)
	return true
}

// remoteCapture mirrors capture and captions toggles to the browser.
type remoteCapture struct {
	ctx       context.Context
	out       sender
	available bool
}

func (c remoteCapture) Available(context.Context) bool { return c.available }

func (c remoteCapture) SetCapture(enabled bool) {
	c.out.send(c.ctx, ServerToggle{Type: "capture", Enabled: enabled})
}

func (c remoteCapture) SetCaptions(enabled bool) {
	c.out.send(c.ctx, ServerToggle{Type: "captions", Enabled: enabled})
}

// frameObserver publishes session events as server frames.
type frameObserver struct {
	ctx context.Context
	out sender
}

func (o frameObserver) StateChanged(s session.Snapshot) {
	o.out.send(o.ctx, ServerState{Type: "state", State: s})
}

func (o frameObserver) TurnAppended(t conversation.Turn) {
	o.out.send(o.ctx, ServerTurn{Type: "turn", Speaker: t.Speaker, Text: t.Text, At: t.At})
}

func (o frameObserver) Failed(op string, err error) {
	o.out.send(o.ctx, ServerError{Type: "error", Code: errorCode(err), Message: err.Error(), Op: op, Retry: session.IsRecoverable(err)})
}

func errorCode(err error) string {
	var decodeErr *DecodeError
	switch {
	case errors.As(err, &decodeErr):
		return decodeErr.Code
	case errors.Is(err, session.ErrSessionFinished):
		return "session_finished"
	case errors.Is(err, session.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, session.ErrEmptyAnswer):
		return "empty_answer"
	case errors.Is(err, session.ErrGenerationFailed):
		return "generation_failed"
	case errors.Is(err, session.ErrAudioFetchFailed):
		return "audio_fetch_failed"
	case errors.Is(err, session.ErrStaleResult):
		return "stale_result"
	case errors.Is(err, playback.ErrPlaybackConflict):
		return "playback_conflict"
	default:
		return "internal"
	}
}
