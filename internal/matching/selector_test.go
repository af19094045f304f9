package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findback/matcher/internal/models"
)

func TestSelectCandidates(t *testing.T) {
	source := newListing(models.ListingStatusLost, "electronics", withVector(1, 0))

	sameFound := newListing(models.ListingStatusFound, "electronics")
	sameLost := newListing(models.ListingStatusLost, "electronics")
	crossWithEmb := newListing(models.ListingStatusFound, "toys", withVector(0, 1))
	crossNoEmb := newListing(models.ListingStatusFound, "bags")
	resolved := newListing(models.ListingStatusResolved, "electronics")

	pool := []models.Listing{source, sameFound, sameLost, crossWithEmb, crossNoEmb, resolved}

	sel := SelectCandidates(&source, pool, DefaultCrossCategoryCap)

	require.Len(t, sel.SameCategory, 1)
	assert.Equal(t, sameFound.ID, sel.SameCategory[0].Candidate.ID)
	assert.False(t, sel.SameCategory[0].CrossCategory)

	require.Len(t, sel.CrossCategory, 1)
	assert.Equal(t, crossWithEmb.ID, sel.CrossCategory[0].Candidate.ID)
	assert.True(t, sel.CrossCategory[0].CrossCategory)

	assert.Equal(t, 1, sel.CrossCategoryGated)
	assert.Equal(t, 0, sel.CrossCategoryCapped)
}

func TestSelectCandidates_CrossCategoryRequiresBothEmbeddings(t *testing.T) {
	source := newListing(models.ListingStatusLost, "toys", withTitle("iphone"))
	other := newListing(models.ListingStatusFound, "electronics", withTitle("iphone"), withVector(1))

	sel := SelectCandidates(&source, []models.Listing{other}, DefaultCrossCategoryCap)

	assert.Empty(t, sel.CrossCategory)
	assert.Empty(t, sel.SameCategory)
	assert.Equal(t, 1, sel.CrossCategoryGated)
}

func TestSelectCandidates_CrossCategoryCap(t *testing.T) {
	source := newListing(models.ListingStatusFound, "wallets", withVector(1, 0))

	var pool []models.Listing
	for range 6 {
		pool = append(pool, newListing(models.ListingStatusLost, "bags", withVector(1, 0)))
	}

	for range 4 {
		pool = append(pool, newListing(models.ListingStatusLost, "wallets"))
	}

	sel := SelectCandidates(&source, pool, 3)

	require.Len(t, sel.CrossCategory, 3)

	for i, c := range sel.CrossCategory {
		assert.Equal(t, pool[i].ID, c.Candidate.ID, "cap keeps pool order")
	}

	assert.Equal(t, 3, sel.CrossCategoryCapped)
	assert.Len(t, sel.SameCategory, 4, "same-category candidates are not capped")

	t.Run("negative cap disables the cap", func(t *testing.T) {
		assert.Len(t, SelectCandidates(&source, pool, -1).CrossCategory, 6)
	})
}

func TestSelectCandidates_ResolvedSourceHasNoCandidates(t *testing.T) {
	source := newListing(models.ListingStatusResolved, "x")
	pool := []models.Listing{
		newListing(models.ListingStatusLost, "x"),
		newListing(models.ListingStatusFound, "x"),
	}

	sel := SelectCandidates(&source, pool, 3)
	assert.Empty(t, sel.SameCategory)
	assert.Empty(t, sel.CrossCategory)
}
