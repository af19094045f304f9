package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/findback/matcher/internal/huberrors"
	"github.com/findback/matcher/internal/matching"
	"github.com/findback/matcher/internal/models"
	"github.com/findback/matcher/internal/observability"
)

const (
	operationProcessListing = "process_listing"
	operationRegenerateAll  = "regenerate_all"

	defaultScoringConcurrency = 8
)

// ListingRepository provides the listing reads the matching engine needs.
// GetByID returns a NotFoundError for unknown ids. GetActivePool returns lost and found
// listings other than excludeID, newest first.
type ListingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	GetActivePool(ctx context.Context, excludeID uuid.UUID) ([]models.Listing, error)
}

// PairScorer scores one candidate pair.
type PairScorer interface {
	Score(source, candidate *models.Listing, crossCategory bool) matching.ScoreBreakdown
}

// ProcessSummary describes one ProcessListing run.
type ProcessSummary struct {
	ListingID uuid.UUID `json:"listing_id"`
	// SameCategory and CrossCategory count the candidates scored per group.
	SameCategory  int `json:"same_category"`
	CrossCategory int `json:"cross_category"`
	// Accepted counts results that cleared the thresholds and caps.
	Accepted int `json:"accepted"`
	Created  int `json:"created"`
	Existing int `json:"existing"`
	// Failed counts candidates skipped because scoring or persistence failed.
	Failed   int         `json:"failed"`
	MatchIDs []uuid.UUID `json:"match_ids,omitempty"`
}

// RegenerateSummary describes one RegenerateAll run.
type RegenerateSummary struct {
	Deleted   int64 `json:"deleted"`
	Processed int   `json:"processed"`
	Created   int   `json:"created"`
	Existing  int   `json:"existing"`
	// Failed counts listings whose processing failed; their candidates are not retried.
	Failed int `json:"failed"`
	// CandidateFailures sums ProcessSummary.Failed over processed listings.
	CandidateFailures int `json:"candidate_failures"`
}

// MatchingService finds, scores and stores candidate matches for listings.
type MatchingService struct {
	listings    ListingRepository
	matches     MatchStore
	persister   *MatchPersister
	scorer      PairScorer
	policy      matching.Policy
	concurrency int
	limiter     *rate.Limiter
	metrics     observability.MatchingMetrics
	tracer      trace.Tracer
	logger      *slog.Logger
}

// MatchingServiceParams configures MatchingService. Scorer defaults to matching.NewScorer for the
// policy's embedding dimension. RegenerateLimiter, Metrics and Logger may be nil.
type MatchingServiceParams struct {
	Listings           ListingRepository
	Matches            MatchStore
	Scorer             PairScorer
	Policy             matching.Policy
	ScoringConcurrency int
	RegenerateLimiter  *rate.Limiter
	Metrics            observability.MatchingMetrics
	Logger             *slog.Logger
}

// NewMatchingService creates a MatchingService.
func NewMatchingService(p MatchingServiceParams) *MatchingService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scorer := p.Scorer
	if scorer == nil {
		scorer = matching.NewScorer(p.Policy.EmbeddingDimension)
	}

	concurrency := p.ScoringConcurrency
	if concurrency <= 0 {
		concurrency = defaultScoringConcurrency
	}

	return &MatchingService{
		listings:    p.Listings,
		matches:     p.Matches,
		persister:   NewMatchPersister(p.Matches),
		scorer:      scorer,
		policy:      p.Policy,
		concurrency: concurrency,
		limiter:     p.RegenerateLimiter,
		metrics:     p.Metrics,
		tracer:      observability.Tracer(),
		logger:      logger,
	}
}

// ProcessListing matches one listing against the current active pool and stores accepted matches.
// Unknown ids return a NotFoundError; listing store failures return an UnavailableError. A listing that
// is no longer lost or found is skipped with an empty summary. Per-candidate failures are logged and
// counted in the summary without failing the run.
func (s *MatchingService) ProcessListing(ctx context.Context, id uuid.UUID) (summary ProcessSummary, err error) {
	ctx = observability.WithListingID(ctx, id)
	ctx, span := s.tracer.Start(ctx, "matching.ProcessListing",
		trace.WithAttributes(attribute.String("listing.id", id.String())))
	start := time.Now()
	status := "success"

	defer func() {
		if err != nil {
			status = "error"
		}

		s.recordRun(ctx, operationProcessListing, status, time.Since(start))
		span.SetAttributes(attribute.Int("matches.created", summary.Created))
		observability.EndSpan(span, err)
	}()

	summary.ListingID = id

	source, err := s.listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			return summary, fmt.Errorf("load listing %s: %w", id, err)
		}

		return summary, huberrors.NewUnavailableError("listing", err)
	}

	if !source.Status.IsActive() {
		s.logger.DebugContext(ctx, "matching: listing not active, skipping", "status", source.Status)

		status = "skipped"

		return summary, nil
	}

	pool, err := s.listings.GetActivePool(ctx, id)
	if err != nil {
		return summary, huberrors.NewUnavailableError("listing pool", err)
	}

	return s.matchAgainst(ctx, source, pool)
}

// RegenerateAll deletes every stored match and rebuilds them by processing each active listing
// against one snapshot of the pool. A listing that fails is logged and counted; the run continues.
func (s *MatchingService) RegenerateAll(ctx context.Context) (summary RegenerateSummary, err error) {
	ctx, span := s.tracer.Start(ctx, "matching.RegenerateAll")
	start := time.Now()

	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}

		s.recordRun(ctx, operationRegenerateAll, status, time.Since(start))
		span.SetAttributes(
			attribute.Int("listings.processed", summary.Processed),
			attribute.Int("matches.created", summary.Created),
		)
		observability.EndSpan(span, err)
	}()

	summary.Deleted, err = s.matches.DeleteAll(ctx)
	if err != nil {
		return summary, huberrors.NewUnavailableError("matches", err)
	}

	pool, err := s.listings.GetActivePool(ctx, uuid.Nil)
	if err != nil {
		return summary, huberrors.NewUnavailableError("listing pool", err)
	}

	s.logger.InfoContext(ctx, "matching: regenerating", "deleted", summary.Deleted, "listings", len(pool))

	for i := range pool {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return summary, fmt.Errorf("regenerate throttle: %w", err)
			}
		}

		source := &pool[i]
		listingCtx := observability.WithListingID(ctx, source.ID)

		result, err := s.matchAgainstSafely(listingCtx, source, pool)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, fmt.Errorf("regenerate interrupted: %w", ctxErr)
			}

			s.logger.ErrorContext(listingCtx, "matching: listing failed during regenerate", "error", err)

			if s.metrics != nil {
				s.metrics.RecordScoringFailure(ctx, "listing_failed")
			}

			summary.Failed++

			continue
		}

		summary.Processed++
		summary.Created += result.Created
		summary.Existing += result.Existing
		summary.CandidateFailures += result.Failed
	}

	s.logger.InfoContext(ctx, "matching: regenerate complete",
		"processed", summary.Processed,
		"created", summary.Created,
		"failed", summary.Failed,
	)

	return summary, nil
}

// matchAgainstSafely runs matchAgainst, turning a panic into an error.
func (s *MatchingService) matchAgainstSafely(
	ctx context.Context, source *models.Listing, pool []models.Listing,
) (summary ProcessSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errScoringPanic, r)
		}
	}()

	return s.matchAgainst(ctx, source, pool)
}

var errScoringPanic = errors.New("panic while matching")

// matchAgainst selects, scores, accepts and persists candidates for source out of pool.
func (s *MatchingService) matchAgainst(
	ctx context.Context, source *models.Listing, pool []models.Listing,
) (ProcessSummary, error) {
	summary := ProcessSummary{ListingID: source.ID}

	sel := matching.SelectCandidates(source, pool, s.policy.CrossCategoryCap)
	summary.SameCategory = len(sel.SameCategory)
	summary.CrossCategory = len(sel.CrossCategory)

	if s.metrics != nil {
		s.metrics.RecordCandidatesScored(ctx, observability.GroupSameCategory, summary.SameCategory)
		s.metrics.RecordCandidatesScored(ctx, observability.GroupCrossCategory, summary.CrossCategory)
		s.metrics.RecordCrossCategorySkipped(ctx, "missing_embedding", sel.CrossCategoryGated)
		s.metrics.RecordCrossCategorySkipped(ctx, "capped", sel.CrossCategoryCapped)
	}

	candidates := make([]matching.MatchCandidate, 0, len(sel.SameCategory)+len(sel.CrossCategory))
	candidates = append(candidates, sel.SameCategory...)
	candidates = append(candidates, sel.CrossCategory...)

	results, failed, err := s.scoreAll(ctx, candidates)
	if err != nil {
		return summary, err
	}

	summary.Failed = failed

	accepted := matching.Accept(results, s.policy)
	summary.Accepted = len(accepted)

	for _, r := range accepted {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("persist matches: %w", err)
		}

		cand := r.Candidate.Candidate
		group := groupOf(r.Candidate)

		res, err := s.persister.Upsert(ctx, source.ID, cand.ID, r.Breakdown.Total, r.Breakdown.Reasons())
		if err != nil {
			s.logger.WarnContext(ctx, "matching: failed to store match",
				"candidate_id", cand.ID,
				"score", r.Breakdown.Total,
				"error", err,
			)

			summary.Failed++
			s.recordPersisted(ctx, group, "failed")

			continue
		}

		if res.Created {
			summary.Created++
			summary.MatchIDs = append(summary.MatchIDs, res.ID)
			s.recordPersisted(ctx, group, "created")

			continue
		}

		summary.Existing++
		s.recordPersisted(ctx, group, "existing")
	}

	s.logger.InfoContext(ctx, "matching: listing processed",
		"same_category", summary.SameCategory,
		"cross_category", summary.CrossCategory,
		"accepted", summary.Accepted,
		"created", summary.Created,
		"existing", summary.Existing,
		"failed", summary.Failed,
	)

	return summary, nil
}

// scoreAll scores candidates in parallel. A candidate whose scoring panics is logged, counted in
// failed and left out of results. The only error returned is the context's.
func (s *MatchingService) scoreAll(
	ctx context.Context, candidates []matching.MatchCandidate,
) (results []matching.Result, failed int, err error) {
	scored := make([]matching.Result, len(candidates))
	ok := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			breakdown, scoreErr := s.scoreOne(candidates[i])
			if scoreErr != nil {
				s.logger.WarnContext(ctx, "matching: candidate scoring failed",
					"candidate_id", candidateID(candidates[i]),
					"error", scoreErr,
				)

				return nil
			}

			scored[i] = matching.Result{Candidate: candidates[i], Breakdown: breakdown}
			ok[i] = true

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("score candidates: %w", err)
	}

	results = make([]matching.Result, 0, len(candidates))

	for i := range scored {
		if !ok[i] {
			failed++

			if s.metrics != nil {
				s.metrics.RecordScoringFailure(ctx, "panic")
			}

			continue
		}

		results = append(results, scored[i])
	}

	return results, failed, nil
}

func (s *MatchingService) scoreOne(c matching.MatchCandidate) (b matching.ScoreBreakdown, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errScoringPanic, r)
		}
	}()

	return s.scorer.Score(c.Source, c.Candidate, c.CrossCategory), nil
}

func (s *MatchingService) recordPersisted(ctx context.Context, group, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordMatchPersisted(ctx, group, outcome)
	}
}

func (s *MatchingService) recordRun(ctx context.Context, operation, status string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordRunDuration(ctx, operation, status, d)
	}
}

func groupOf(c matching.MatchCandidate) string {
	if c.CrossCategory {
		return observability.GroupCrossCategory
	}

	return observability.GroupSameCategory
}

func candidateID(c matching.MatchCandidate) uuid.UUID {
	if c.Candidate == nil {
		return uuid.Nil
	}

	return c.Candidate.ID
}
