package audio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/intervue/internal/playback"
)

func TestPulsePlayerRejectsUndecodableClip(t *testing.T) {
	p := NewPulsePlayer(nil, "", 0)
	err := p.Start(context.Background(), playback.Clip{ID: "c1", Audio: []byte{1, 2, 3}, MIME: "audio/mpeg"}, func(error) {
		t.Fatal("done must not run when Start fails")
	})
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPulsePlayerFetchesURLClips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.wav" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xff, 0xfb})
	}))
	t.Cleanup(srv.Close)

	p := NewPulsePlayer(nil, "", 20*time.Millisecond)

	err := p.Start(context.Background(), playback.Clip{ID: "c1", URL: srv.URL + "/missing.wav"}, func(error) {})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status")

	err = p.Start(context.Background(), playback.Clip{ID: "c2", URL: srv.URL + "/prompt.mp3"}, func(error) {})
	require.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestPulsePlayerFailsWithoutPulse(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	p := NewPulsePlayer(nil, "", 0)
	err := p.Start(context.Background(), playback.Clip{ID: "c1", Audio: []byte{0, 0}, MIME: "audio/L16;rate=24000"}, func(error) {})
	require.Error(t, err)
	require.NoError(t, p.Stop(context.Background()))
}

func TestMicAvailability(t *testing.T) {
	m := NewMic(nil, "default", "default")
	m.selector = func(context.Context, string, string) (Selection, error) {
		return Selection{Device: Device{ID: "mic"}, Warning: "fallback used"}, nil
	}
	require.True(t, m.Available(context.Background()))

	m.selector = func(context.Context, string, string) (Selection, error) {
		return Selection{}, errors.New("muted")
	}
	require.False(t, m.Available(context.Background()))

	m.SetCapture(true)
	m.SetCaptions(true)
	require.True(t, m.CaptureEnabled())
	require.True(t, m.CaptionsEnabled())
	m.SetCapture(false)
	require.False(t, m.CaptureEnabled())
}
