// Package gemini implements interviewer text generation and speech synthesis on the
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultModel    = "gemini-2.5-flash"
	DefaultTTSModel = "gemini-2.5-flash-preview-tts"
	DefaultVoice    = "Kore"
	DefaultTimeout  = 30 * time.Second

	// pcmMIME is what the TTS model returns when no MIME type is reported.
	pcmMIME = "audio/L16;rate=24000"
)

// ErrEmptyResponse is returned when the model produced no usable content.
var ErrEmptyResponse = errors.New("gemini returned an empty response")

// Config controls gateway models and limits.
type Config struct {
	APIKey   string
	Model    string
	TTSModel string
	Voice    string
	Timeout  time.Duration
}

// contentGenerator is the subset of genai.Models the gateway calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gateway serves session generation and synthesis calls.
type Gateway struct {
	logger *slog.Logger
	models contentGenerator
	cfg    Config
}

// New dials the Gemini API.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGateway(client.Models, cfg, logger), nil
}

func newGateway(models contentGenerator, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = DefaultTTSModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Gateway{logger: logger, models: models, cfg: cfg}
}

// Respond reacts to the candidate's answer to the spoken question.
func (g *Gateway) Respond(ctx context.Context, questionTranscript, candidateText string) (string, error) {
	return g.text(ctx, "respond", respondPrompt(questionTranscript, candidateText))
}

// Explain answers a clarifying question asked alongside the candidate's code.
func (g *Gateway) Explain(ctx context.Context, questionBody, code, candidateText string) (string, error) {
	return g.text(ctx, "explain", explainPrompt(questionBody, code, candidateText))
}

// Followup asks about the candidate's current code.
func (g *Gateway) Followup(ctx context.Context, questionBody, code string) (string, error) {
	return g.text(ctx, "followup", followupPrompt(questionBody, code))
}

// Synthesize renders text as speech. The returned MIME type describes the audio bytes.
func (g *Gateway) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	started := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.cfg.TTSModel, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.cfg.Voice},
			},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("synthesize: %w", err)
	}

	data, mime := inlineAudio(resp)
	if len(data) == 0 {
		return nil, "", fmt.Errorf("synthesize: %w", ErrEmptyResponse)
	}
	g.logger.Debug("speech synthesized", "bytes", len(data), "mime", mime, "latency_ms", time.Since(started).Milliseconds())
	return data, mime, nil
}

func (g *Gateway) text(ctx context.Context, op, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	started := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(interviewerInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.6),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	g.logger.Debug("text generated", "op", op, "chars", len(text), "latency_ms", time.Since(started).Milliseconds())
	return text, nil
}

// inlineAudio returns the first inline audio part of resp.
func inlineAudio(resp *genai.GenerateContentResponse) ([]byte, string) {
	if resp == nil {
		return nil, ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = pcmMIME
			}
			return part.InlineData.Data, mime
		}
	}
	return nil, ""
}
