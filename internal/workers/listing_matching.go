// Package workers provides River job workers for background matching.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/findback/matcher/internal/huberrors"
	"github.com/findback/matcher/internal/observability"
	"github.com/findback/matcher/internal/service"
)

const listingMatchingTimeout = 60 * time.Second

// listingMatcher is the minimal interface needed by the worker.
type listingMatcher interface {
	ProcessListing(ctx context.Context, id uuid.UUID) (service.ProcessSummary, error)
}

// ListingMatchingWorker runs ProcessListing for newly created listings.
type ListingMatchingWorker struct {
	river.WorkerDefaults[service.ListingMatchingArgs]

	matcher listingMatcher
	metrics observability.MatchingMetrics
}

// NewListingMatchingWorker creates a worker. metrics may be nil when metrics are disabled.
func NewListingMatchingWorker(matcher listingMatcher, metrics observability.MatchingMetrics) *ListingMatchingWorker {
	return &ListingMatchingWorker{matcher: matcher, metrics: metrics}
}

// Timeout limits how long a single matching job can run.
func (w *ListingMatchingWorker) Timeout(*river.Job[service.ListingMatchingArgs]) time.Duration {
	return listingMatchingTimeout
}

// Work matches the listing. Deleted listings are not retried; store outages are retried until the last attempt.
func (w *ListingMatchingWorker) Work(ctx context.Context, job *river.Job[service.ListingMatchingArgs]) error {
	listingID := job.Args.ListingID
	ctx = observability.WithListingID(ctx, listingID)

	summary, err := w.matcher.ProcessListing(ctx, listingID)
	if err == nil {
		slog.InfoContext(ctx, "matching job: done",
			"created", summary.Created,
			"existing", summary.Existing,
			"failed", summary.Failed,
		)

		return nil
	}

	if errors.Is(err, huberrors.ErrNotFound) {
		slog.WarnContext(ctx, "matching job: listing no longer exists", "error", err)

		return nil
	}

	if w.metrics != nil {
		w.metrics.RecordScoringFailure(ctx, "job_failed")
	}

	if job.Attempt >= job.MaxAttempts && errors.Is(err, huberrors.ErrUnavailable) {
		slog.ErrorContext(ctx, "matching job: store unavailable (final attempt)",
			"attempt", job.Attempt,
			"error", err,
		)

		return nil
	}

	return fmt.Errorf("process listing %s: %w", listingID, err)
}
