package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/intervue/internal/api"
	"github.com/rbright/intervue/internal/cli"
	"github.com/rbright/intervue/internal/config"
	"github.com/rbright/intervue/internal/live"
	"github.com/rbright/intervue/internal/question"
)

// commandServe hosts the chat endpoint, live sessions, and gRPC health until ctx ends.
func (r Runner) commandServe(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	var defaultSet *question.Set
	if path := questionsPath(parsed.QuestionsPath, cfg); strings.TrimSpace(path) != "" {
		set, err := loadQuestionSet(path)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		defaultSet = &set
	}

	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer deps.Close()

	liveHandler := live.Handler{
		Logger:         logger,
		Session:        deps.sessionOptions(cfg, logger),
		Default:        defaultSet,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	chat := api.ChatHandler{Logger: logger, Generator: deps.generator}

	srv := api.NewServer(api.Config{
		Listen:          cfg.Server.Listen,
		HealthListen:    cfg.Server.HealthListen,
		RateRPS:         cfg.Server.RateRPS,
		RateBurst:       cfg.Server.RateBurst,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutMS) * time.Millisecond,
	}, logger, chat, liveHandler)

	if err := srv.Serve(ctx); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
