package workers

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/findback/matcher/internal/observability"
)

// ErrorHandler logs job errors and panics. metrics may be nil.
type ErrorHandler struct {
	Metrics observability.MatchingMetrics
}

var _ river.ErrorHandler = (*ErrorHandler)(nil)

// HandleError is called when a job returns an error.
func (h *ErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	slog.ErrorContext(ctx, "job failed",
		"job_kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
		"error", err,
	)

	// nil keeps River's default retry schedule.
	return nil
}

// HandlePanic is called when a job panics. The job is retried like any failure.
func (h *ErrorHandler) HandlePanic(
	ctx context.Context, job *rivertype.JobRow, panicVal any, trace string,
) *river.ErrorHandlerResult {
	slog.ErrorContext(ctx, "job panicked",
		"job_kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"panic_value", panicVal,
		"stack_trace", trace,
	)

	if h.Metrics != nil {
		h.Metrics.RecordScoringFailure(ctx, "job_panic")
	}

	return nil
}
