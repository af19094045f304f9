package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockJobInserter struct {
	insertCalls []matchingInsertCall
	insertErr   error
	duplicate   bool
}

type matchingInsertCall struct {
	args ListingMatchingArgs
	opts *river.InsertOpts
}

func (m *mockJobInserter) Insert(
	_ context.Context,
	args river.JobArgs,
	opts *river.InsertOpts,
) (*rivertype.JobInsertResult, error) {
	matchingArgs, _ := args.(ListingMatchingArgs)
	m.insertCalls = append(m.insertCalls, matchingInsertCall{args: matchingArgs, opts: opts})

	if m.insertErr != nil {
		return nil, m.insertErr
	}

	return &rivertype.JobInsertResult{
		Job:                      &rivertype.JobRow{ID: 1},
		UniqueSkippedAsDuplicate: m.duplicate,
	}, nil
}

func TestMatchingEnqueuer_Enqueue(t *testing.T) {
	ctx := context.Background()
	listingID := uuid.Must(uuid.NewV7())

	t.Run("inserts unique job on matching queue", func(t *testing.T) {
		inserter := &mockJobInserter{}
		e := NewMatchingEnqueuer(inserter, MatchingQueueName, 3, nil)

		duplicate, err := e.Enqueue(ctx, listingID)
		require.NoError(t, err)
		assert.False(t, duplicate)

		require.Len(t, inserter.insertCalls, 1)
		call := inserter.insertCalls[0]
		assert.Equal(t, listingID, call.args.ListingID)
		assert.Equal(t, "listing_matching", call.args.Kind())
		assert.Equal(t, MatchingQueueName, call.opts.Queue)
		assert.Equal(t, 3, call.opts.MaxAttempts)
		assert.True(t, call.opts.UniqueOpts.ByArgs)
		assert.Contains(t, call.opts.UniqueOpts.ByState, rivertype.JobStateRunning)
		assert.NotContains(t, call.opts.UniqueOpts.ByState, rivertype.JobStateCompleted)
	})

	t.Run("reports duplicates", func(t *testing.T) {
		e := NewMatchingEnqueuer(&mockJobInserter{duplicate: true}, MatchingQueueName, 3, nil)

		duplicate, err := e.Enqueue(ctx, listingID)
		require.NoError(t, err)
		assert.True(t, duplicate)
	})

	t.Run("returns insert errors", func(t *testing.T) {
		insertErr := errors.New("db down")
		e := NewMatchingEnqueuer(&mockJobInserter{insertErr: insertErr}, MatchingQueueName, 3, nil)

		_, err := e.Enqueue(ctx, listingID)
		assert.ErrorIs(t, err, insertErr)
	})
}
