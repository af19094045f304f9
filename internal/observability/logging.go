package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// listingIDKey is the context key for the listing being matched.
// The orchestrator and worker set it; the TraceContextHandler adds it to log records.
type listingIDKey struct{}

// WithListingID returns a context carrying the listing id for log correlation.
func WithListingID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, listingIDKey{}, id)
}

// ListingIDFromContext returns the listing id stored by WithListingID.
func ListingIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(listingIDKey{}).(uuid.UUID)

	return id, ok && id != uuid.Nil
}

// TraceContextHandler wraps a slog.Handler and injects trace_id, span_id, and listing_id
// from the context into each log record when present.
type TraceContextHandler struct {
	inner slog.Handler
}

// NewTraceContextHandler returns a handler that adds trace context and listing_id to records.
func NewTraceContextHandler(inner slog.Handler) *TraceContextHandler {
	return &TraceContextHandler{inner: inner}
}

// NewLogger returns a JSON logger on stderr at level, wrapped in a TraceContextHandler.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(NewTraceContextHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// Enabled reports whether the inner handler is enabled for the given level.
func (h *TraceContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds trace_id, span_id, and listing_id from context to the record, then forwards to the inner handler.
func (h *TraceContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	if id, ok := ListingIDFromContext(ctx); ok {
		r.AddAttrs(slog.String("listing_id", id.String()))
	}

	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("inner handler: %w", err)
	}

	return nil
}

// WithAttrs returns a handler whose attributes are the concatenation of the inner's and attrs.
func (h *TraceContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceContextHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a handler for the given group.
func (h *TraceContextHandler) WithGroup(name string) slog.Handler {
	return &TraceContextHandler{inner: h.inner.WithGroup(name)}
}
