// Package requestctx carries the per-request logger, trace and signed-in
// user id between the router middleware and the handlers.
package requestctx

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type scopeKey struct{}

// scope is copied on every With* call. subject is shared so that a value set
// deep in the handler chain is visible to the request logger that installed
// it.
type scope struct {
	logger  *zap.Logger
	trace   *TraceInfo
	subject *string
}

var nop = zap.NewNop()

func load(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func store(ctx context.Context, update func(*scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := load(ctx)
	update(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// TraceInfo is the Cloud Trace position of the current request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// LogResource is the value Cloud Logging expects in
// logging.googleapis.com/trace, or empty without a project.
func (t TraceInfo) LogResource() string {
	if t.ProjectID == "" || t.TraceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", t.ProjectID, t.TraceID)
}

// WithLogger attaches logger; nil detaches any logger already present.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return store(ctx, func(s *scope) { s.logger = logger })
}

// Logger returns the attached logger or a no-op one.
func Logger(ctx context.Context) *zap.Logger {
	return LoggerOr(ctx, nop)
}

// LoggerOr returns the attached logger or fallback.
func LoggerOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger := load(ctx).logger; logger != nil {
		return logger
	}
	if fallback == nil {
		return nop
	}
	return fallback
}

// WithTrace attaches the trace position.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return store(ctx, func(s *scope) { s.trace = &info })
}

// Trace returns the trace position if the trace middleware ran.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if t := load(ctx).trace; t != nil {
		return *t, true
	}
	return TraceInfo{}, false
}

// TraceID is Trace(ctx).TraceID.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// TrackSubject prepares ctx to record the signed-in user id.
func TrackSubject(ctx context.Context) context.Context {
	return store(ctx, func(s *scope) { s.subject = new(string) })
}

// SetSubject records id. It is a no-op unless TrackSubject ran upstream.
func SetSubject(ctx context.Context, id string) {
	if p := load(ctx).subject; p != nil {
		*p = id
	}
}

// Subject is the user id recorded by SetSubject.
func Subject(ctx context.Context) string {
	if p := load(ctx).subject; p != nil {
		return *p
	}
	return ""
}
