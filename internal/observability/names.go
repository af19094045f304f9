// Package observability provides logging, OpenTelemetry metrics and tracing for the matching engine.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameCandidatesScored     = "matcher_candidates_scored_total"
	MetricNameMatchesPersisted     = "matcher_matches_persisted_total"
	MetricNameScoringFailures      = "matcher_scoring_failures_total"
	MetricNameRunDuration          = "matcher_run_duration_seconds"
	MetricNameJobsEnqueued         = "matcher_jobs_enqueued_total"
	MetricNamePoolCacheLookups     = "matcher_pool_cache_lookups_total"
	MetricNamePoolCacheListings    = "matcher_pool_cache_listings"
	MetricNameCrossCategorySkipped = "matcher_cross_category_skipped_total"
)

// Attribute keys.
const (
	AttrGroup     = "group"
	AttrOutcome   = "outcome"
	AttrReason    = "reason"
	AttrOperation = "operation"
	AttrStatus    = "status"
)

// Candidate groups.
const (
	GroupSameCategory  = "same_category"
	GroupCrossCategory = "cross_category"
)

// AllowedGroups for the group attribute.
var AllowedGroups = map[string]bool{
	GroupSameCategory:  true,
	GroupCrossCategory: true,
}

// AllowedPersistOutcomes for matcher_matches_persisted_total.
var AllowedPersistOutcomes = map[string]bool{
	"created":  true,
	"existing": true,
	"failed":   true,
}

// AllowedScoringFailureReasons for matcher_scoring_failures_total.
var AllowedScoringFailureReasons = map[string]bool{
	"panic":           true,
	"persist_failed":  true,
	"listing_failed":  true,
	"context_expired": true,
	"job_failed":      true,
	"job_panic":       true,
}

// AllowedSkipReasons for matcher_cross_category_skipped_total.
var AllowedSkipReasons = map[string]bool{
	"missing_embedding": true,
	"capped":            true,
}

// AllowedOperations for matcher_run_duration_seconds.
var AllowedOperations = map[string]bool{
	"process_listing": true,
	"regenerate_all":  true,
}

// AllowedRunStatuses for matcher_run_duration_seconds.
var AllowedRunStatuses = map[string]bool{
	"success": true,
	"error":   true,
	"skipped": true,
}

// AllowedPoolCacheOutcomes for matcher_pool_cache_lookups_total.
var AllowedPoolCacheOutcomes = map[string]bool{
	PoolCacheHit:   true,
	PoolCacheMiss:  true,
	PoolCacheStale: true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}
