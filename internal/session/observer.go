package session

import (
	"context"

	"github.com/rbright/intervue/internal/conversation"
	"github.com/rbright/intervue/internal/turn"
)

// Observer receives session events. Calls happen outside the controller lock and must
// not block for long.
type Observer interface {
	StateChanged(Snapshot)
	TurnAppended(conversation.Turn)
	Failed(op string, err error)
}

// Metrics is the session-facing subset of telemetry.
type Metrics interface {
	Submission(ctx context.Context, state turn.State)
	GenerationFailure(ctx context.Context, op string)
	FollowupFired(ctx context.Context)
	QuestionAdvanced(ctx context.Context)
	ClipPlayed(ctx context.Context)
}

type noopObserver struct{}

func (noopObserver) StateChanged(Snapshot)          {}
func (noopObserver) TurnAppended(conversation.Turn) {}
func (noopObserver) Failed(string, error)           {}

type noopMetrics struct{}

func (noopMetrics) Submission(context.Context, turn.State)    {}
func (noopMetrics) GenerationFailure(context.Context, string) {}
func (noopMetrics) FollowupFired(context.Context)             {}
func (noopMetrics) QuestionAdvanced(context.Context)          {}
func (noopMetrics) ClipPlayed(context.Context)                {}
