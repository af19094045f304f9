package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MatchingMetrics records match-scoring metrics (orchestrator, enqueuer, worker).
// All string attributes are normalized to bounded sets.
type MatchingMetrics interface {
	RecordCandidatesScored(ctx context.Context, group string, count int)
	RecordCrossCategorySkipped(ctx context.Context, reason string, count int)
	RecordMatchPersisted(ctx context.Context, group, outcome string)
	RecordScoringFailure(ctx context.Context, reason string)
	RecordRunDuration(ctx context.Context, operation, status string, duration time.Duration)
	RecordJobsEnqueued(ctx context.Context, count int64)
}

// matchingMetrics implements MatchingMetrics.
type matchingMetrics struct {
	candidatesScored     metric.Int64Counter
	crossCategorySkipped metric.Int64Counter
	matchesPersisted     metric.Int64Counter
	scoringFailures      metric.Int64Counter
	runDuration          metric.Float64Histogram
	jobsEnqueued         metric.Int64Counter
}

// NewMatchingMetrics creates MatchingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewMatchingMetrics(meter metric.Meter) (MatchingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	candidatesScored, err := meter.Int64Counter(
		MetricNameCandidatesScored,
		metric.WithDescription("Candidates scored, by group (same_category, cross_category)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create candidates scored counter: %w", err)
	}

	crossCategorySkipped, err := meter.Int64Counter(
		MetricNameCrossCategorySkipped,
		metric.WithDescription("Cross-category listings not scored, by reason (missing_embedding, capped)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cross-category skipped counter: %w", err)
	}

	matchesPersisted, err := meter.Int64Counter(
		MetricNameMatchesPersisted,
		metric.WithDescription("Accepted matches by group and persistence outcome (created, existing, failed)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create matches persisted counter: %w", err)
	}

	scoringFailures, err := meter.Int64Counter(
		MetricNameScoringFailures,
		metric.WithDescription("Candidates or listings skipped because of a failure, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create scoring failures counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram(
		MetricNameRunDuration,
		metric.WithDescription("Matching run duration (seconds), by operation and status"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create run duration histogram: %w", err)
	}

	jobsEnqueued, err := meter.Int64Counter(
		MetricNameJobsEnqueued,
		metric.WithDescription("Listing matching jobs enqueued"),
	)
	if err != nil {
		return nil, fmt.Errorf("create jobs enqueued counter: %w", err)
	}

	return &matchingMetrics{
		candidatesScored:     candidatesScored,
		crossCategorySkipped: crossCategorySkipped,
		matchesPersisted:     matchesPersisted,
		scoringFailures:      scoringFailures,
		runDuration:          runDuration,
		jobsEnqueued:         jobsEnqueued,
	}, nil
}

func (m *matchingMetrics) RecordCandidatesScored(ctx context.Context, group string, count int) {
	if count <= 0 {
		return
	}

	m.candidatesScored.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(AttrGroup, NormalizeReason(group, AllowedGroups)),
	))
}

func (m *matchingMetrics) RecordCrossCategorySkipped(ctx context.Context, reason string, count int) {
	if count <= 0 {
		return
	}

	m.crossCategorySkipped.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(AttrReason, NormalizeReason(reason, AllowedSkipReasons)),
	))
}

func (m *matchingMetrics) RecordMatchPersisted(ctx context.Context, group, outcome string) {
	m.matchesPersisted.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGroup, NormalizeReason(group, AllowedGroups)),
		attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedPersistOutcomes)),
	))
}

func (m *matchingMetrics) RecordScoringFailure(ctx context.Context, reason string) {
	m.scoringFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrReason, NormalizeReason(reason, AllowedScoringFailureReasons)),
	))
}

func (m *matchingMetrics) RecordRunDuration(ctx context.Context, operation, status string, duration time.Duration) {
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrOperation, NormalizeReason(operation, AllowedOperations)),
		attribute.String(AttrStatus, NormalizeReason(status, AllowedRunStatuses)),
	))
}

func (m *matchingMetrics) RecordJobsEnqueued(ctx context.Context, count int64) {
	m.jobsEnqueued.Add(ctx, count)
}
