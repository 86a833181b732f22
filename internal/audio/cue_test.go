package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCueSamplesPresent(t *testing.T) {
	require.NotEmpty(t, CueSamples(CueListening))
	require.NotEmpty(t, CueSamples(CueMuted))
	require.Empty(t, CueSamples(Cue(0)))
	require.Greater(t, len(CueSamples(CueListening)), len(CueSamples(CueMuted)))
}

func TestSynthesizeToneDurationAndRamp(t *testing.T) {
	got := synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0.2})
	require.Len(t, got, samplesForDuration(100*time.Millisecond))
	require.Equal(t, int16(0), got[0])
	require.Equal(t, int16(0), got[len(got)-1])
}

func TestSynthesizeToneInvalidSpecReturnsEmpty(t *testing.T) {
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 0, duration: 100 * time.Millisecond, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 0, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0}))
}

func TestPlayCueRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, PlayCue(ctx, CueListening, ""), context.Canceled)
}

func TestPlayCueFailsWithoutPulse(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	require.Error(t, PlayCue(context.Background(), CueMuted, "default"))
}

func TestMicEmitsCueOnCaptureFlip(t *testing.T) {
	m := NewMic(nil, "default", "default")
	cues := make(chan Cue, 4)
	m.OnCue(func(c Cue) { cues <- c })

	m.SetCapture(true)
	require.Equal(t, CueListening, <-cues)

	m.SetCapture(true)
	m.SetCapture(false)
	require.Equal(t, CueMuted, <-cues)

	select {
	case c := <-cues:
		t.Fatalf("unexpected cue %s", c)
	case <-time.After(20 * time.Millisecond):
	}
}
