package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	cloudTraceKey        = "logging.googleapis.com/trace"
	cloudSpanIDKey       = "logging.googleapis.com/spanId"
	cloudTraceSampledKey = "logging.googleapis.com/trace_sampled"
)

// cloudTraceHandler links log records to the active span in Cloud Trace.
// https://docs.cloud.google.com/logging/docs/agent/logging/configuration#special-fields
//
// NOTE: Only the *Context slog methods carry the span
type cloudTraceHandler struct {
	next      slog.Handler
	tracePath string
}

// NewCloudTraceHandler wraps next. With an empty project next is returned unchanged.
func NewCloudTraceHandler(next slog.Handler, project string) slog.Handler {
	if project == "" {
		return next
	}
	return &cloudTraceHandler{next: next, tracePath: "projects/" + project + "/traces/"}
}

func (h *cloudTraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *cloudTraceHandler) Handle(ctx context.Context, r slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return h.next.Handle(ctx, r)
	}

	r = r.Clone()
	r.AddAttrs(
		slog.String(cloudTraceKey, h.tracePath+sc.TraceID().String()),
		slog.String(cloudSpanIDKey, sc.SpanID().String()),
		slog.Bool(cloudTraceSampledKey, sc.IsSampled()),
	)
	return h.next.Handle(ctx, r)
}

func (h *cloudTraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &cloudTraceHandler{next: h.next.WithAttrs(attrs), tracePath: h.tracePath}
}

func (h *cloudTraceHandler) WithGroup(name string) slog.Handler {
	return &cloudTraceHandler{next: h.next.WithGroup(name), tracePath: h.tracePath}
}

var _ slog.Handler = (*cloudTraceHandler)(nil)
