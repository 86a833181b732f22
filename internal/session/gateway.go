package session

import (
	"context"
	"errors"
)

// Generator produces interviewer text. All calls are network-bound and may fail.
type Generator interface {
	Respond(ctx context.Context, questionTranscript, candidateText string) (string, error)
	Explain(ctx context.Context, questionBody, code, candidateText string) (string, error)
	Followup(ctx context.Context, questionBody, code string) (string, error)
}

// Synthesizer turns interviewer text into audio bytes and their MIME type.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

// PromptAudio resolves a question's prerecorded prompt to a signed URL.
type PromptAudio interface {
	FetchPromptAudio(ctx context.Context, questionID string) (string, error)
}

// Capture is the external microphone and captions service.
type Capture interface {
	Available(ctx context.Context) bool
	SetCapture(enabled bool)
	SetCaptions(enabled bool)
}

// SynthesizeFunc adapts a function to the Synthesizer interface.
type SynthesizeFunc func(context.Context, string) ([]byte, string, error)

func (f SynthesizeFunc) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	return f(ctx, text)
}

// PromptAudioFunc adapts a function to the PromptAudio interface.
type PromptAudioFunc func(context.Context, string) (string, error)

func (f PromptAudioFunc) FetchPromptAudio(ctx context.Context, questionID string) (string, error) {
	return f(ctx, questionID)
}

// PlaceholderGenerator fails every call; used when no model is configured.
type PlaceholderGenerator struct{}

func (PlaceholderGenerator) Respond(context.Context, string, string) (string, error) {
	return "", ErrGatewayUnavailable
}

func (PlaceholderGenerator) Explain(context.Context, string, string, string) (string, error) {
	return "", ErrGatewayUnavailable
}

func (PlaceholderGenerator) Followup(context.Context, string, string) (string, error) {
	return "", ErrGatewayUnavailable
}

// errNoPromptAudio is returned when no audio store is wired.
var errNoPromptAudio = errors.New("no prompt audio store configured")

// alwaysAvailable is the capture fallback for sessions without an external capture service.
type alwaysAvailable struct{}

func (alwaysAvailable) Available(context.Context) bool { return true }
func (alwaysAvailable) SetCapture(bool)                {}
func (alwaysAvailable) SetCaptions(bool)               {}
