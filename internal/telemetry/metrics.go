// Package telemetry records session counters through OpenTelemetry.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rbright/intervue/internal/turn"
	"github.com/rbright/intervue/internal/version"
)

const instrumentationName = "github.com/rbright/intervue"

// Metrics holds the session counters.
type Metrics struct {
	submissions        metric.Int64Counter
	generationFailures metric.Int64Counter
	followupsFired     metric.Int64Counter
	questionsAdvanced  metric.Int64Counter
	clipsPlayed        metric.Int64Counter
}

// New registers counters on provider. A nil provider uses the global one, which is a
// no-op unless the process configured an SDK.
func New(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName, metric.WithInstrumentationVersion(version.Version))

	var (
		m   Metrics
		err error
	)
	if m.submissions, err = meter.Int64Counter("intervue.submissions",
		metric.WithDescription("Accepted candidate submissions"),
		metric.WithUnit("{submission}"),
	); err != nil {
		return nil, fmt.Errorf("create submissions counter: %w", err)
	}
	if m.generationFailures, err = meter.Int64Counter("intervue.generation.failures",
		metric.WithDescription("Failed generation or synthesis calls"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("create generation failures counter: %w", err)
	}
	if m.followupsFired, err = meter.Int64Counter("intervue.followups.fired",
		metric.WithDescription("Unsolicited follow-ups issued after inactivity"),
		metric.WithUnit("{followup}"),
	); err != nil {
		return nil, fmt.Errorf("create followups counter: %w", err)
	}
	if m.questionsAdvanced, err = meter.Int64Counter("intervue.questions.advanced",
		metric.WithDescription("Question pointer advances"),
		metric.WithUnit("{question}"),
	); err != nil {
		return nil, fmt.Errorf("create questions counter: %w", err)
	}
	if m.clipsPlayed, err = meter.Int64Counter("intervue.clips.played",
		metric.WithDescription("Clips played to natural completion"),
		metric.WithUnit("{clip}"),
	); err != nil {
		return nil, fmt.Errorf("create clips counter: %w", err)
	}
	return &m, nil
}

func (m *Metrics) Submission(ctx context.Context, state turn.State) {
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("submit_state", string(state))))
}

func (m *Metrics) GenerationFailure(ctx context.Context, op string) {
	m.generationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) FollowupFired(ctx context.Context) {
	m.followupsFired.Add(ctx, 1)
}

func (m *Metrics) QuestionAdvanced(ctx context.Context) {
	m.questionsAdvanced.Add(ctx, 1)
}

func (m *Metrics) ClipPlayed(ctx context.Context) {
	m.clipsPlayed.Add(ctx, 1)
}
