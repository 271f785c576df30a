package core

import (
	"context"
	"time"
)

// MetricsRecorder receives one observation per phase, request and state
// operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer opens spans around the same operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, Span)
}

// Span is ended exactly once with the operation's error, if any.
type Span interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// observe wraps fn with a span and a metrics observation.
func observe(ctx context.Context, m MetricsRecorder, t Tracer, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := t.Start(ctx, operation)
	err := fn(ctx)
	span.End(err)
	m.Observe(ctx, operation, err == nil, time.Since(start))
	return err
}
