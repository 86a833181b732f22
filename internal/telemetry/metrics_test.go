package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/rbright/intervue/internal/turn"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Sum[int64])
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				out[m.Name] = sum
			}
		}
	}
	return out
}

func total(sum metricdata.Sum[int64]) int64 {
	var n int64
	for _, dp := range sum.DataPoints {
		n += dp.Value
	}
	return n
}

func TestCountersRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := New(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.Submission(ctx, turn.StateStart)
	m.Submission(ctx, turn.StateFollowup)
	m.Submission(ctx, turn.StateFollowup)
	m.GenerationFailure(ctx, "respond")
	m.FollowupFired(ctx)
	m.QuestionAdvanced(ctx)
	m.QuestionAdvanced(ctx)
	m.ClipPlayed(ctx)

	sums := collect(t, reader)
	require.EqualValues(t, 3, total(sums["intervue.submissions"]))
	require.EqualValues(t, 1, total(sums["intervue.generation.failures"]))
	require.EqualValues(t, 1, total(sums["intervue.followups.fired"]))
	require.EqualValues(t, 2, total(sums["intervue.questions.advanced"]))
	require.EqualValues(t, 1, total(sums["intervue.clips.played"]))

	var followupPoints int64
	for _, dp := range sums["intervue.submissions"].DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("submit_state")); ok && v.AsString() == "followup" {
			followupPoints = dp.Value
		}
	}
	require.EqualValues(t, 2, followupPoints)
}

func TestNewWithGlobalProvider(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	m.ClipPlayed(context.Background())
}
