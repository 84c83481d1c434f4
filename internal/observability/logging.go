// Package observability provides structured logging context and Prometheus
// metrics for the flattening pipeline.
package observability

import (
	"context"

	"git.home.luguber.info/inful/mdxflatten/internal/logfields"
)

// LogContext holds the structured fields attached to a resolution's context.
type LogContext struct {
	RunID    string
	Document string
	Platform string
	Stage    string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithRunID attaches a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	lc := extractLogContext(ctx)
	lc.RunID = runID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithDocument attaches the current document path to the context.
func WithDocument(ctx context.Context, path string) context.Context {
	lc := extractLogContext(ctx)
	lc.Document = path
	return context.WithValue(ctx, logContextKey, lc)
}

// WithPlatform attaches the current platform to the context.
func WithPlatform(ctx context.Context, platform string) context.Context {
	lc := extractLogContext(ctx)
	lc.Platform = platform
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStage attaches the current pipeline stage to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := extractLogContext(ctx)
	lc.Stage = stage
	return context.WithValue(ctx, logContextKey, lc)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// Attrs returns the context's log fields as slog attributes.
func Attrs(ctx context.Context) []any {
	lc := extractLogContext(ctx)
	attrs := make([]any, 0, 8)
	if lc.RunID != "" {
		attrs = append(attrs, logfields.RunID(lc.RunID))
	}
	if lc.Document != "" {
		attrs = append(attrs, logfields.Document(lc.Document))
	}
	if lc.Platform != "" {
		attrs = append(attrs, logfields.Platform(lc.Platform))
	}
	if lc.Stage != "" {
		attrs = append(attrs, logfields.Stage(lc.Stage))
	}
	return attrs
}
