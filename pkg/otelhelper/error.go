package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks a dispatch span failed and records err on it. Extra
// attributes (workflow, webhook, event identifiers) land on the recorded
// error event so traces stay searchable by the dispatch that failed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}
