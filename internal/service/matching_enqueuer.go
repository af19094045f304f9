package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/findback/matcher/internal/observability"
)

// MatchingEnqueuer enqueues one listing_matching job per created listing.
type MatchingEnqueuer struct {
	inserter    JobInserter
	queueName   string
	maxAttempts int
	metrics     observability.MatchingMetrics
}

// NewMatchingEnqueuer creates an enqueuer. metrics may be nil when metrics are disabled.
func NewMatchingEnqueuer(
	inserter JobInserter, queueName string, maxAttempts int, metrics observability.MatchingMetrics,
) *MatchingEnqueuer {
	return &MatchingEnqueuer{
		inserter:    inserter,
		queueName:   queueName,
		maxAttempts: maxAttempts,
		metrics:     metrics,
	}
}

// Enqueue inserts a matching job for listingID. A job already pending, scheduled or running for the
// same listing is reused; duplicate reports whether that happened.
func (e *MatchingEnqueuer) Enqueue(ctx context.Context, listingID uuid.UUID) (duplicate bool, err error) {
	opts := &river.InsertOpts{
		Queue:       e.queueName,
		MaxAttempts: e.maxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			// Completed jobs are not listed so a listing can be rematched later.
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRetryable,
				rivertype.JobStateRunning,
				rivertype.JobStateScheduled,
			},
		},
	}

	res, err := e.inserter.Insert(ctx, ListingMatchingArgs{ListingID: listingID}, opts)
	if err != nil {
		return false, fmt.Errorf("enqueue listing matching job: %w", err)
	}

	duplicate = res != nil && res.UniqueSkippedAsDuplicate

	slog.InfoContext(ctx, "matching: job enqueued",
		"listing_id", listingID,
		"duplicate", duplicate,
	)

	if e.metrics != nil && !duplicate {
		e.metrics.RecordJobsEnqueued(ctx, 1)
	}

	return duplicate, nil
}
