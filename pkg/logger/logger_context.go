package logger

import (
	"context"

	pcontext "github.com/apkforge/apkforge/pkg/context"
)

// extractContextFields returns the build id, correlation id and stage
// carried by ctx, skipping the ones never set
func extractContextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field

	if buildID := pcontext.GetBuildID(ctx); buildID != "unknown-build" {
		fields = append(fields, WithField("build_id", buildID))
	}

	if correlationID := pcontext.GetCorrelationID(ctx); correlationID != "unknown-correlation" {
		fields = append(fields, WithField("correlation_id", correlationID))
	}

	if stage := pcontext.GetStage(ctx); stage != "unknown-stage" {
		fields = append(fields, WithField("stage", stage))
	}

	return fields
}

// WithContext creates a logger that automatically includes build tracing fields
func WithContext(ctx context.Context, logger Logger) Logger {
	if ctx == nil {
		return logger
	}
	return &contextualLogger{
		ctx:    ctx,
		logger: logger,
	}
}

type contextualLogger struct {
	ctx    context.Context
	logger Logger
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	cl.logger.Info(message, append(extractContextFields(cl.ctx), fields...)...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	cl.logger.Error(message, append(extractContextFields(cl.ctx), fields...)...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	cl.logger.Warn(message, append(extractContextFields(cl.ctx), fields...)...)
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	cl.logger.Debug(message, append(extractContextFields(cl.ctx), fields...)...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	cl.logger.Success(message, append(extractContextFields(cl.ctx), fields...)...)
}

func (cl *contextualLogger) WithTarget(target string) Logger {
	return &contextualLogger{
		ctx:    cl.ctx,
		logger: cl.logger.WithTarget(target),
	}
}
