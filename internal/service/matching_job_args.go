package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	listingMatchingKind = "listing_matching"
	// MatchingQueueName is the River queue used for listing matching jobs.
	MatchingQueueName = "matching"
)

// JobInserter inserts jobs (e.g. River client).
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// ListingMatchingArgs is the job payload for matching one newly created listing.
// Uniqueness is by ListingID so duplicate creation events do not create duplicate jobs.
type ListingMatchingArgs struct {
	ListingID uuid.UUID `json:"listing_id" river:"unique"`
}

// Kind returns the River job kind.
func (ListingMatchingArgs) Kind() string { return listingMatchingKind }

var _ river.JobArgs = ListingMatchingArgs{}
