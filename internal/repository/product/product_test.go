package product

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal/domain"
	"orderdesk/internal/testdb"
)

func TestPostgres_UpsertAndGetByIDs(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(ctx, t)
	repo := NewPostgres(pool, nil)

	cake, err := repo.Upsert(ctx, domain.Product{
		Key:              "layer-cake",
		Name:             "Layer cake",
		IsActive:         true,
		BasePrice:        3500,
		MinOrderQuantity: 2,
		Difficulty:       3,
		OptionGroups: []domain.OptionGroup{{
			ID:        "2f0c1c7e-8b70-4f3f-9a55-0c6a5d1f2b10",
			Attribute: "size",
			Choices:   []domain.OptionChoice{{ID: "a1", Value: "large", Surcharge: 500, Available: true}},
		}},
	})
	require.NoError(t, err)

	again, err := repo.Upsert(ctx, domain.Product{Key: "layer-cake", Name: "Layer cake v2", IsActive: true, BasePrice: 3600, Difficulty: 3})
	require.NoError(t, err)
	assert.Equal(t, cake.ID, again.ID)

	now := time.Now()
	_, err = repo.CreateDiscount(ctx, domain.Discount{
		Start: now.Add(-time.Hour), End: now.Add(time.Hour), Target: domain.AudienceAll, Percent: 15,
		ProductIDs: []string{cake.ID},
	})
	require.NoError(t, err)

	got, err := repo.GetByIDs(ctx, []string{cake.ID, "not-a-uuid", "00000000-0000-0000-0000-000000000000"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3600), got[cake.ID].BasePrice)
	assert.Equal(t, "Layer cake v2", got[cake.ID].Name)
	require.Len(t, got[cake.ID].Discounts, 1)
	assert.Equal(t, 15, got[cake.ID].Discounts[0].Percent)
}

func TestPostgres_GetByIDNotFound(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(ctx, t)
	repo := NewPostgres(pool, nil)

	_, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.GetByID(ctx, "bogus")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
