package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggerFallbacks(t *testing.T) {
	t.Parallel()

	require.NotNil(t, Logger(context.Background()))

	fallback := zap.NewExample()
	require.Same(t, fallback, LoggerOr(context.Background(), fallback))

	attached := zap.NewExample()
	ctx := WithLogger(context.Background(), attached)
	require.Same(t, attached, Logger(ctx))
	require.Same(t, attached, LoggerOr(ctx, fallback))
	require.Same(t, fallback, LoggerOr(WithLogger(ctx, nil), fallback))
}

func TestScopeValuesSurviveLaterWrites(t *testing.T) {
	t.Parallel()

	logger := zap.NewExample()
	ctx := WithTrace(context.Background(), TraceInfo{TraceID: "abc", SpanID: "def"})
	ctx = WithLogger(ctx, logger)
	ctx = TrackSubject(ctx)

	require.Equal(t, "abc", TraceID(ctx))
	require.Same(t, logger, Logger(ctx))

	_, ok := Trace(context.Background())
	require.False(t, ok)
	require.Empty(t, TraceID(context.Background()))
}

func TestSubjectVisibleUpstream(t *testing.T) {
	t.Parallel()

	SetSubject(context.Background(), "ignored")
	require.Empty(t, Subject(context.Background()))

	outer := TrackSubject(context.Background())
	inner := WithLogger(outer, zap.NewExample())
	SetSubject(inner, "user_123")
	require.Equal(t, "user_123", Subject(outer))
}

func TestTraceLogResource(t *testing.T) {
	t.Parallel()

	require.Empty(t, TraceInfo{TraceID: "abc"}.LogResource())
	require.Equal(t, "projects/agentforge-dev/traces/abc", TraceInfo{TraceID: "abc", ProjectID: "agentforge-dev"}.LogResource())
}
