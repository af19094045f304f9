package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/findback/matcher/internal/huberrors"
	"github.com/findback/matcher/internal/ingest"
	"github.com/findback/matcher/internal/models"
	"github.com/findback/matcher/pkg/vectors"
)

// ListingCreator inserts listings.
type ListingCreator interface {
	Create(ctx context.Context, req *models.CreateListingRequest) (*models.Listing, error)
}

// Enqueuer schedules asynchronous matching for a listing.
type Enqueuer interface {
	Enqueue(ctx context.Context, listingID uuid.UUID) (duplicate bool, err error)
}

// RowFailure describes a CSV row that was not imported.
type RowFailure struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// ImportSummary reports the outcome of an import run.
type ImportSummary struct {
	Imported   int          `json:"imported"`
	Enqueued   int          `json:"enqueued"`
	Failed     int          `json:"failed"`
	ListingIDs []uuid.UUID  `json:"listing_ids,omitempty"`
	Failures   []RowFailure `json:"failures,omitempty"`
}

// ListingImporter validates parsed rows and creates listings, optionally enqueueing a matching job for each.
// Embeddings are L2-normalized before they are stored.
type ListingImporter struct {
	creator            ListingCreator
	enqueuer           Enqueuer
	validate           *validator.Validate
	embeddingDimension int
}

// NewListingImporter creates an importer. enqueuer may be nil to skip job scheduling.
// embeddingDimension of 0 accepts embeddings of any length.
func NewListingImporter(creator ListingCreator, enqueuer Enqueuer, embeddingDimension int) *ListingImporter {
	return &ListingImporter{
		creator:            creator,
		enqueuer:           enqueuer,
		validate:           validator.New(validator.WithRequiredStructEnabled()),
		embeddingDimension: embeddingDimension,
	}
}

// Import creates a listing per valid row. Invalid rows and failed inserts are recorded in the summary
// and do not stop the run; a failed enqueue or a cancelled context does.
func (i *ListingImporter) Import(ctx context.Context, rows []ingest.Row) (*ImportSummary, error) {
	summary := &ImportSummary{}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := i.check(row); err != nil {
			summary.fail(row.Line, err)
			slog.WarnContext(ctx, "import: row rejected", "line", row.Line, "error", err)

			continue
		}

		req := row.Request
		if req.Embedding != nil {
			// Stored embeddings are unit length; rows are not modified.
			req.Embedding = slices.Clone(req.Embedding)
			vectors.NormalizeL2(req.Embedding)
		}

		listing, err := i.creator.Create(ctx, &req)
		if err != nil {
			summary.fail(row.Line, err)
			slog.ErrorContext(ctx, "import: create listing failed", "line", row.Line, "error", err)

			continue
		}

		summary.Imported++
		summary.ListingIDs = append(summary.ListingIDs, listing.ID)

		if i.enqueuer == nil {
			continue
		}

		if _, err := i.enqueuer.Enqueue(ctx, listing.ID); err != nil {
			return summary, fmt.Errorf("line %d: %w", row.Line, err)
		}

		summary.Enqueued++
	}

	slog.InfoContext(ctx, "import: finished",
		"imported", summary.Imported,
		"enqueued", summary.Enqueued,
		"failed", summary.Failed,
	)

	return summary, nil
}

func (i *ListingImporter) check(row ingest.Row) error {
	if row.Err != nil {
		return huberrors.NewValidationError("row", row.Err.Error())
	}

	if err := i.validate.Struct(&row.Request); err != nil {
		return huberrors.NewValidationError("row", err.Error())
	}

	if row.Request.Embedding != nil {
		if err := vectors.Validate(row.Request.Embedding, i.embeddingDimension); err != nil {
			return huberrors.NewValidationError("embedding", err.Error())
		}
	}

	return nil
}

func (s *ImportSummary) fail(line int, err error) {
	s.Failed++
	s.Failures = append(s.Failures, RowFailure{Line: line, Error: err.Error()})
}
