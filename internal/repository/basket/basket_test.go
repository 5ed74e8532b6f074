package basket

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal/domain"
	"orderdesk/internal/testdb"
)

func TestPostgres_SaveItemsChecksVersion(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(ctx, t)
	repo := NewPostgres(pool)

	b, err := repo.Create(ctx, CreateInput{Items: []domain.LineItem{{ProductID: "p1", Quantity: 1}}})
	require.NoError(t, err)
	assert.True(t, b.IsGuest())
	assert.Equal(t, 1, b.Version)

	updated, err := repo.SaveItems(ctx, b.ID, b.Version, []domain.LineItem{{ProductID: "p1", Quantity: 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, 4, updated.Items[0].Quantity)

	_, err = repo.SaveItems(ctx, b.ID, b.Version, nil)
	assert.True(t, errors.Is(err, domain.ErrVersionConflict))

	require.NoError(t, repo.Delete(ctx, b.ID))
	_, err = repo.SaveItems(ctx, b.ID, updated.Version, nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPostgres_OneBasketPerCustomer(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(ctx, t)
	repo := NewPostgres(pool)
	customerID := testdb.Customer(ctx, t, pool, "ada@example.com", "regular")

	own, err := repo.Create(ctx, CreateInput{CustomerID: &customerID})
	require.NoError(t, err)

	_, err = repo.Create(ctx, CreateInput{CustomerID: &customerID})
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	guest, err := repo.Create(ctx, CreateInput{})
	require.NoError(t, err)
	_, err = repo.AssignCustomer(ctx, guest.ID, customerID)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	got, err := repo.GetByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, own.ID, got.ID)
}

func TestPostgres_AssignCustomerAdoptsGuestBasket(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(ctx, t)
	repo := NewPostgres(pool)
	customerID := testdb.Customer(ctx, t, pool, "grace@example.com", "partner")

	guest, err := repo.Create(ctx, CreateInput{})
	require.NoError(t, err)

	adopted, err := repo.AssignCustomer(ctx, guest.ID, customerID)
	require.NoError(t, err)
	assert.True(t, adopted.OwnedBy(customerID))

	_, err = repo.AssignCustomer(ctx, guest.ID, customerID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPostgres_MergeIntoIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	pool := testdb.Pool(ctx, t)
	repo := NewPostgres(pool)
	customerID := testdb.Customer(ctx, t, pool, "linus@example.com", "regular")

	own, err := repo.Create(ctx, CreateInput{CustomerID: &customerID, Items: []domain.LineItem{{ProductID: "p1", Quantity: 1}}})
	require.NoError(t, err)
	guest, err := repo.Create(ctx, CreateInput{Items: []domain.LineItem{{ProductID: "p2", Quantity: 2}}})
	require.NoError(t, err)
	moved, err := repo.SaveItems(ctx, guest.ID, guest.Version, []domain.LineItem{{ProductID: "p2", Quantity: 3}})
	require.NoError(t, err)

	combined := []domain.LineItem{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 2}}
	_, err = repo.MergeInto(ctx, MergeInput{
		TargetID: own.ID, TargetVersion: own.Version, Items: combined,
		SourceID: guest.ID, SourceVersion: guest.Version,
	})
	assert.True(t, errors.Is(err, domain.ErrVersionConflict))

	untouched, err := repo.GetByID(ctx, own.ID)
	require.NoError(t, err)
	assert.Equal(t, own.Version, untouched.Version)
	_, err = repo.GetByID(ctx, guest.ID)
	require.NoError(t, err)

	combined[1].Quantity = 3
	merged, err := repo.MergeInto(ctx, MergeInput{
		TargetID: own.ID, TargetVersion: own.Version, Items: combined,
		SourceID: moved.ID, SourceVersion: moved.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, own.Version+1, merged.Version)
	assert.Equal(t, 3, merged.Items[1].Quantity)
	_, err = repo.GetByID(ctx, guest.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
