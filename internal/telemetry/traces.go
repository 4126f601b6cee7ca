package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// Span represents a single timed step of an evaluation.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration_ms,omitempty"`
	Status    string            `json:"status"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Tracer creates and manages trace spans.
type Tracer struct {
	// Exporter receives completed spans. If nil, spans are discarded.
	Exporter SpanExporter
}

// SpanExporter receives completed spans.
type SpanExporter interface {
	ExportSpan(span Span)
}

// SpanExporterFunc is a function adapter for SpanExporter.
type SpanExporterFunc func(span Span)

// ExportSpan calls the function.
func (f SpanExporterFunc) ExportSpan(span Span) { f(span) }

// NewTracer creates a new tracer with an optional exporter.
func NewTracer(exporter SpanExporter) *Tracer {
	return &Tracer{Exporter: exporter}
}

// LogExporter writes each finished span as a debug record.
func LogExporter(logger *slog.Logger) SpanExporter {
	return SpanExporterFunc(func(span Span) {
		attrs := []any{
			slog.String("trace_id", span.TraceID),
			slog.String("span_id", span.SpanID),
			slog.String("status", span.Status),
			slog.Duration("duration", span.Duration),
		}
		if span.ParentID != "" {
			attrs = append(attrs, slog.String("parent_id", span.ParentID))
		}
		for k, v := range span.Tags {
			attrs = append(attrs, slog.String(k, v))
		}
		logger.Debug(span.Operation, attrs...)
	})
}

type traceContextKey struct{}

// StartSpan creates a new span and adds it to the context. A nil tracer
// still returns a usable span.
func (t *Tracer) StartSpan(ctx context.Context, operation string, tags map[string]string) (context.Context, *Span) {
	span := &Span{
		TraceID:   NewSessionID(),
		SpanID:    NewSessionID(),
		Operation: operation,
		StartTime: time.Now(),
		Status:    "ok",
		Tags:      tags,
	}

	if parent, ok := ctx.Value(traceContextKey{}).(*Span); ok {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	}

	return context.WithValue(ctx, traceContextKey{}, span), span
}

// EndSpan completes a span and exports it.
func (t *Tracer) EndSpan(span *Span, status string) {
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if status != "" {
		span.Status = status
	}
	if t != nil && t.Exporter != nil {
		t.Exporter.ExportSpan(*span)
	}
}
