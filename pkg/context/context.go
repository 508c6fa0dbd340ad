package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type contextKey int

// Context keys for build tracing and correlation. Each key must compare
// unequal to every other one.
const (
	buildIDKey contextKey = iota
	correlationIDKey
	projectKey
	stageKey
	startTimeKey
)

// WithBuildID adds a build ID to the context
func WithBuildID(parent context.Context, buildID string) context.Context {
	if buildID == "" {
		buildID = GenerateBuildID()
	}
	return context.WithValue(parent, buildIDKey, buildID)
}

// GetBuildID retrieves the build ID from context
func GetBuildID(ctx context.Context) string {
	if id, ok := ctx.Value(buildIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown-build"
}

// WithCorrelationID adds a correlation ID shared by builds of one invocation
func WithCorrelationID(parent context.Context, correlationID string) context.Context {
	if correlationID == "" {
		correlationID = GenerateCorrelationID()
	}
	return context.WithValue(parent, correlationIDKey, correlationID)
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown-correlation"
}

// WithProject adds the project name to the context
func WithProject(parent context.Context, project string) context.Context {
	return context.WithValue(parent, projectKey, project)
}

// GetProject retrieves the project name from context
func GetProject(ctx context.Context) string {
	if p, ok := ctx.Value(projectKey).(string); ok && p != "" {
		return p
	}
	return "unknown-project"
}

// WithStage adds the current pipeline stage to the context
func WithStage(parent context.Context, stage string) context.Context {
	return context.WithValue(parent, stageKey, stage)
}

// GetStage retrieves the current pipeline stage from context
func GetStage(ctx context.Context) string {
	if s, ok := ctx.Value(stageKey).(string); ok && s != "" {
		return s
	}
	return "unknown-stage"
}

// WithStartTime adds the build start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the build start time from context
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// GetDuration calculates the duration since the start time in context
func GetDuration(ctx context.Context) time.Duration {
	return time.Since(GetStartTime(ctx))
}

// GenerateBuildID creates a new unique build ID
func GenerateBuildID() string {
	return "bld_" + uuid.New().String()
}

// GenerateCorrelationID creates a new unique correlation ID
func GenerateCorrelationID() string {
	return "cor_" + uuid.New().String()
}

// EnrichContext adds build tracing information to a context
func EnrichContext(parent context.Context, project string) context.Context {
	ctx := parent

	if GetBuildID(ctx) == "unknown-build" {
		ctx = WithBuildID(ctx, GenerateBuildID())
	}

	if GetCorrelationID(ctx) == "unknown-correlation" {
		ctx = WithCorrelationID(ctx, GenerateCorrelationID())
	}

	if project != "" {
		ctx = WithProject(ctx, project)
	}

	return WithStartTime(ctx, time.Now())
}

// TracingFields returns common tracing fields for structured logging
func TracingFields(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"build_id":       GetBuildID(ctx),
		"correlation_id": GetCorrelationID(ctx),
		"project":        GetProject(ctx),
		"stage":          GetStage(ctx),
		"duration_ms":    GetDuration(ctx).Milliseconds(),
	}
}
