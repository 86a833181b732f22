package audio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jfreymuth/pulse"
)

// Cue marks a capture transition for the candidate.
type Cue int

const (
	// CueListening plays when the microphone opens.
	CueListening Cue = iota + 1
	// CueMuted plays when the microphone closes.
	CueMuted
)

func (c Cue) String() string {
	switch c {
	case CueListening:
		return "listening"
	case CueMuted:
		return "muted"
	default:
		return "unknown"
	}
}

const cueSampleRate = 16000

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var (
	listeningCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 660, duration: 60 * time.Millisecond, volume: 0.16},
		{frequencyHz: 990, duration: 80 * time.Millisecond, volume: 0.16},
	})
	mutedCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 520, duration: 90 * time.Millisecond, volume: 0.14},
	})
)

// CueSamples returns the mono 16kHz PCM for c.
func CueSamples(c Cue) []int16 {
	switch c {
	case CueListening:
		return listeningCuePCM
	case CueMuted:
		return mutedCuePCM
	default:
		return nil
	}
}

// PlayCue plays c on sink and blocks until it drains.
func PlayCue(ctx context.Context, c Cue, sink string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := CueSamples(c)
	if len(samples) == 0 {
		return nil
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) || ctx.Err() != nil {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	opts := []pulse.PlaybackOption{
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("intervue " + c.String() + " cue"),
	}
	if sink != "" && !isDefaultTerm(sink) {
		s, err := client.SinkByID(sink)
		if err != nil {
			return fmt.Errorf("resolve sink %q: %w", sink, err)
		}
		opts = append(opts, pulse.PlaybackSink(s))
	}

	stream, err := client.NewPlayback(reader, opts...)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %s cue: %w", c, err)
	}
	return nil
}

func synthesizeCue(parts []toneSpec) []int16 {
	gap := samplesForDuration(22 * time.Millisecond)
	var pcm []int16
	for i, part := range parts {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, synthesizeTone(part)...)
	}
	return pcm
}

// synthesizeTone renders a sine with a short linear ramp at each end to avoid clicks.
func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	ramp := min(n/10, cueSampleRate/200)
	ramp = max(ramp, 1)

	pcm := make([]int16, n)
	for i := range n {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = math.Min(envelope, float64(tail)/float64(ramp))
		}
		t := float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(2*math.Pi*spec.frequencyHz*t) * spec.volume * envelope * 32767))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
