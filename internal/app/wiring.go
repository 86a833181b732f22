package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/rbright/intervue/internal/config"
	"github.com/rbright/intervue/internal/gemini"
	"github.com/rbright/intervue/internal/question"
	"github.com/rbright/intervue/internal/session"
	"github.com/rbright/intervue/internal/storage"
	"github.com/rbright/intervue/internal/telemetry"
	"github.com/rbright/intervue/internal/transcript"
)

// dependencies are the process-wide collaborators shared by every session.
type dependencies struct {
	generator   session.Generator
	synthesizer session.Synthesizer
	prompts     session.PromptAudio
	metrics     session.Metrics
	closers     []io.Closer
}

func (d dependencies) Close() {
	for _, c := range d.closers {
		_ = c.Close()
	}
}

// sessionOptions is the template every controller in this process starts from.
func (d dependencies) sessionOptions(cfg config.Config, logger *slog.Logger) session.Options {
	return session.Options{
		Logger:           logger,
		Generator:        d.generator,
		Synthesizer:      d.synthesizer,
		PromptAudio:      d.prompts,
		Metrics:          d.metrics,
		SettleDelay:      time.Duration(cfg.Interview.SettleDelayMS) * time.Millisecond,
		InactivityWindow: time.Duration(cfg.Interview.InactivityWindowMS) * time.Millisecond,
		Transcript:       transcript.Options{CapitalizeFirst: cfg.Interview.CapitalizeTranscript},
	}
}

// buildDependencies wires the model gateway, prompt audio store and metrics. A missing
// API key leaves generation on the session's placeholder, which fails every call.
func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (dependencies, error) {
	var deps dependencies

	if key := cfg.Gemini.APIKey(); key != "" {
		gw, err := gemini.New(ctx, gemini.Config{
			APIKey:   key,
			Model:    cfg.Gemini.Model,
			TTSModel: cfg.Gemini.TTSModel,
			Voice:    cfg.Gemini.Voice,
			Timeout:  cfg.Gemini.Timeout(),
		}, logger)
		if err != nil {
			return dependencies{}, fmt.Errorf("build gemini gateway: %w", err)
		}
		deps.generator = gw
		deps.synthesizer = gw
	} else {
		logger.Warn("generation disabled", "api_key_env", cfg.Gemini.APIKeyEnv)
		deps.generator = session.PlaceholderGenerator{}
	}

	store, err := storage.New(ctx, storage.Config{
		Backend:   storage.Backend(strings.ToLower(cfg.AudioStore.Backend)),
		Bucket:    cfg.AudioStore.Bucket,
		Region:    cfg.AudioStore.Region,
		Endpoint:  cfg.AudioStore.Endpoint,
		Prefix:    cfg.AudioStore.Prefix,
		Extension: cfg.AudioStore.Extension,
		URLTTL:    time.Duration(cfg.AudioStore.URLTTLSeconds) * time.Second,
	})
	if err != nil {
		return dependencies{}, fmt.Errorf("build audio store: %w", err)
	}
	if store != nil {
		deps.prompts = store
		if closer, ok := store.(io.Closer); ok {
			deps.closers = append(deps.closers, closer)
		}
	}

	metrics, err := telemetry.New(otel.GetMeterProvider())
	if err != nil {
		deps.Close()
		return dependencies{}, fmt.Errorf("register metrics: %w", err)
	}
	deps.metrics = metrics

	return deps, nil
}

// questionsPath prefers the command-line override over interview.questions_file.
func questionsPath(override string, cfg config.Config) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return cfg.Interview.QuestionsFile
}

func loadQuestionSet(path string) (question.Set, error) {
	if strings.TrimSpace(path) == "" {
		return question.Set{}, fmt.Errorf("no questions file configured; set interview.questions_file or pass --questions")
	}
	return question.Load(path)
}
