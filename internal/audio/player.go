package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/intervue/internal/playback"
)

const maxClipBytes = 32 << 20

// PulsePlayer plays clips on a local Pulse sink, one at a time.
type PulsePlayer struct {
	logger  *slog.Logger
	sink    string
	latency time.Duration
	http    *http.Client

	mu     sync.Mutex
	active *activeStream
}

type activeStream struct {
	client  *pulse.Client
	stream  *pulse.PlaybackStream
	stopped atomic.Bool
}

// NewPulsePlayer constructs a player for sink ("" or "default" uses the server default).
func NewPulsePlayer(logger *slog.Logger, sink string, latency time.Duration) *PulsePlayer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if latency <= 0 {
		latency = 50 * time.Millisecond
	}
	return &PulsePlayer{
		logger:  logger,
		sink:    sink,
		latency: latency,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Start decodes the clip and begins playback. done runs once the stream drains.
func (p *PulsePlayer) Start(ctx context.Context, clip playback.Clip, done func(error)) error {
	data, mimeType := clip.Audio, clip.MIME
	if len(data) == 0 && clip.URL != "" {
		var err error
		data, mimeType, err = p.fetch(ctx, clip.URL)
		if err != nil {
			return err
		}
	}

	pcm, err := Decode(data, mimeType)
	if err != nil {
		return fmt.Errorf("decode clip %s: %w", clip.ID, err)
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	active := &activeStream{client: client}
	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if active.stopped.Load() || cursor >= len(pcm.Samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, pcm.Samples[cursor:])
		cursor += n
		if cursor >= len(pcm.Samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	opts := []pulse.PlaybackOption{
		pulse.PlaybackSampleRate(pcm.SampleRate),
		pulse.PlaybackLatency(p.latency.Seconds()),
		pulse.PlaybackMediaName("intervue " + clip.Label),
	}
	if pcm.Channels == 2 {
		opts = append(opts, pulse.PlaybackStereo)
	} else {
		opts = append(opts, pulse.PlaybackMono)
	}
	if p.sink != "" && p.sink != "default" {
		sink, err := client.SinkByID(p.sink)
		if err != nil {
			client.Close()
			return fmt.Errorf("resolve sink %q: %w", p.sink, err)
		}
		opts = append(opts, pulse.PlaybackSink(sink))
	}

	stream, err := client.NewPlayback(reader, opts...)
	if err != nil {
		client.Close()
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	active.stream = stream

	p.mu.Lock()
	previous := p.active
	p.active = active
	p.mu.Unlock()
	if previous != nil {
		previous.stopped.Store(true)
	}

	stream.Start()
	go func() {
		stream.Drain()
		playErr := stream.Error()
		p.release(active)
		if playErr != nil {
			playErr = fmt.Errorf("play clip %s: %w", clip.ID, playErr)
		}
		done(playErr)
	}()
	return nil
}

// Stop ends the current clip at the next buffer boundary.
func (p *PulsePlayer) Stop(context.Context) error {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	if active != nil {
		active.stopped.Store(true)
	}
	return nil
}

func (p *PulsePlayer) release(active *activeStream) {
	p.mu.Lock()
	if p.active == active {
		p.active = nil
	}
	p.mu.Unlock()

	active.stream.Close()
	active.client.Close()
}

func (p *PulsePlayer) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build clip request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch clip: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read clip: %w", err)
	}
	if len(data) > maxClipBytes {
		return nil, "", errors.New("clip exceeds size limit")
	}
	return data, resp.Header.Get("Content-Type"), nil
}
