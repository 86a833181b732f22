// Package doctor runs readiness diagnostics for config, secrets, questions, audio, and
// prompt storage.
package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rbright/intervue/internal/audio"
	"github.com/rbright/intervue/internal/config"
	"github.com/rbright/intervue/internal/question"
	"github.com/rbright/intervue/internal/storage"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	keyEnv := cfg.Config.Gemini.APIKeyEnv
	checks = append(checks, checkEnv(keyEnv, func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "gemini api key present", keyEnv+" is empty"))

	checks = append(checks, checkQuestions(cfg.Config.Interview.QuestionsFile))
	checks = append(checks, checkListen("server.listen", cfg.Config.Server.Listen))
	checks = append(checks, checkListen("server.health_listen", cfg.Config.Server.HealthListen))
	checks = append(checks, checkAudioStore(ctx, cfg.Config.AudioStore))
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkSink(ctx, cfg.Config.Playback.Sink, audio.ListSinks))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkQuestions loads the default question set when one is configured.
func checkQuestions(path string) Check {
	if strings.TrimSpace(path) == "" {
		return Check{Name: "questions", Pass: true, Message: "no questions_file; sessions supply their own"}
	}
	set, err := question.Load(path)
	if err != nil {
		return Check{Name: "questions", Pass: false, Message: err.Error()}
	}
	return Check{Name: "questions", Pass: true, Message: fmt.Sprintf("%d questions in %q", len(set.Questions), set.Meta.Title)}
}

func checkListen(name, addr string) Check {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{Name: name, Pass: true, Message: addr}
}

// checkAudioStore builds the configured store client without touching any object.
func checkAudioStore(ctx context.Context, cfg config.AudioStoreConfig) Check {
	backend := storage.Backend(cfg.Backend)
	if backend == storage.BackendNone || backend == "" {
		return Check{Name: "audio_store", Pass: true, Message: "disabled"}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store, err := storage.New(ctx, storage.Config{
		Backend:  backend,
		Bucket:   cfg.Bucket,
		Region:   cfg.Region,
		Endpoint: cfg.Endpoint,
		Prefix:   cfg.Prefix,
	})
	if err != nil {
		return Check{Name: "audio_store", Pass: false, Message: err.Error()}
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	return Check{Name: "audio_store", Pass: true, Message: fmt.Sprintf("%s bucket %q", backend, cfg.Bucket)}
}

// checkAudioSelection runs live source selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectSource(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.source", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.source", Pass: true, Message: message}
}

// checkSink confirms the configured playback sink exists, or that a default sink does.
func checkSink(ctx context.Context, sink string, list func(context.Context) ([]audio.Device, error)) Check {
	sinks, err := list(ctx)
	if err != nil {
		return Check{Name: "audio.sink", Pass: false, Message: err.Error()}
	}
	sink = strings.TrimSpace(sink)
	for _, d := range sinks {
		if sink == "" && d.Default {
			return Check{Name: "audio.sink", Pass: true, Message: fmt.Sprintf("default %q", d.ID)}
		}
		if sink != "" && d.ID == sink {
			return Check{Name: "audio.sink", Pass: true, Message: fmt.Sprintf("configured %q", d.ID)}
		}
	}
	if sink == "" {
		return Check{Name: "audio.sink", Pass: false, Message: "no default sink"}
	}
	return Check{Name: "audio.sink", Pass: false, Message: fmt.Sprintf("sink %q not found", sink)}
}
