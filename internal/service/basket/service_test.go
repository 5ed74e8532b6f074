package basket

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal/domain"
	basketrepo "orderdesk/internal/repository/basket"
)

type memoryRepo struct {
	mu      sync.Mutex
	seq     int
	baskets map[string]domain.Basket
	// conflicts makes the next n SaveItems calls fail as if another writer won.
	conflicts int
	saves     int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{baskets: make(map[string]domain.Basket)}
}

func clone(b domain.Basket) *domain.Basket {
	b.Items = slices.Clone(b.Items)
	return &b
}

func (r *memoryRepo) Create(_ context.Context, in basketrepo.CreateInput) (*domain.Basket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in.CustomerID != nil {
		for _, b := range r.baskets {
			if b.OwnedBy(*in.CustomerID) {
				return nil, domain.ErrAlreadyExists
			}
		}
	}
	r.seq++
	b := domain.Basket{ID: fmt.Sprintf("b%d", r.seq), CustomerID: in.CustomerID, Items: slices.Clone(in.Items), Version: 1}
	r.baskets[b.ID] = b
	return clone(b), nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*domain.Basket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.baskets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(b), nil
}

func (r *memoryRepo) GetByCustomer(_ context.Context, customerID string) (*domain.Basket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.baskets {
		if b.OwnedBy(customerID) {
			return clone(b), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memoryRepo) SaveItems(_ context.Context, id string, version int, items []domain.LineItem) (*domain.Basket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.baskets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.conflicts > 0 {
		r.conflicts--
		b.Version++
		r.baskets[id] = b
		return nil, domain.ErrVersionConflict
	}
	if b.Version != version {
		return nil, domain.ErrVersionConflict
	}
	r.saves++
	b.Items = slices.Clone(items)
	b.Version++
	r.baskets[id] = b
	return clone(b), nil
}

func (r *memoryRepo) AssignCustomer(_ context.Context, id, customerID string) (*domain.Basket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.baskets[id]
	if !ok || b.CustomerID != nil {
		return nil, domain.ErrNotFound
	}
	for _, other := range r.baskets {
		if other.OwnedBy(customerID) {
			return nil, domain.ErrAlreadyExists
		}
	}
	b.CustomerID = &customerID
	b.Version++
	r.baskets[id] = b
	return clone(b), nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.baskets[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.baskets, id)
	return nil
}

func (r *memoryRepo) MergeInto(_ context.Context, in basketrepo.MergeInput) (*domain.Basket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, srcOK := r.baskets[in.SourceID]
	tgt, tgtOK := r.baskets[in.TargetID]
	if !srcOK || !tgtOK || src.Version != in.SourceVersion || tgt.Version != in.TargetVersion {
		return nil, domain.ErrVersionConflict
	}
	delete(r.baskets, in.SourceID)
	tgt.Items = slices.Clone(in.Items)
	tgt.Version++
	r.baskets[tgt.ID] = tgt
	return clone(tgt), nil
}

// interleavingRepo runs beforeMerge once, just before the first MergeInto
// reaches storage, to stand in for a request landing mid-merge.
type interleavingRepo struct {
	*memoryRepo
	beforeMerge func()
}

func (r *interleavingRepo) MergeInto(ctx context.Context, in basketrepo.MergeInput) (*domain.Basket, error) {
	if hook := r.beforeMerge; hook != nil {
		r.beforeMerge = nil
		hook()
	}
	return r.memoryRepo.MergeInto(ctx, in)
}

type stubCatalog struct {
	products map[string]*domain.Product
}

func (s *stubCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func newCatalog() *stubCatalog {
	return &stubCatalog{products: map[string]*domain.Product{
		"cake": {
			ID: "cake", Name: "Cake", IsActive: true, BasePrice: 100, MinOrderQuantity: 2,
			OptionGroups: []domain.OptionGroup{
				{ID: "size", Attribute: "size", Choices: []domain.OptionChoice{
					{ID: "small", Value: "small", Available: true},
					{ID: "large", Value: "large", Surcharge: 20, Available: true},
					{ID: "huge", Value: "huge", Surcharge: 50, Available: false},
				}},
				{ID: "color", Attribute: "color", Customizable: true, Choices: []domain.OptionChoice{
					{ID: "red", Value: "red", Available: true},
				}},
			},
		},
		"cookie": {ID: "cookie", Name: "Cookie", IsActive: true, BasePrice: 5, MinOrderQuantity: 1},
		"retired": {ID: "retired", Name: "Retired", IsActive: false, BasePrice: 5},
	}}
}

func strPtr(s string) *string { return &s }

func cake(qty int, opts ...domain.OptionSelection) domain.LineItem {
	return domain.LineItem{ProductID: "cake", Quantity: qty, Options: opts}
}

func TestCreate_ValidatesItem(t *testing.T) {
	svc := New(newMemoryRepo(), newCatalog(), nil)
	ctx := context.Background()

	cases := []struct {
		name string
		item domain.LineItem
		want error
	}{
		{"unknown product", domain.LineItem{ProductID: "nope", Quantity: 1}, domain.ErrInvalidItem},
		{"inactive product", domain.LineItem{ProductID: "retired", Quantity: 1}, domain.ErrInvalidItem},
		{"zero quantity", cake(0), domain.ErrValidation},
		{"below minimum", cake(1), domain.ErrQuantityTooLow},
		{"unknown group", cake(2, domain.OptionSelection{GroupID: "flavor", ChoiceID: "x"}), domain.ErrInvalidOption},
		{"unknown choice", cake(2, domain.OptionSelection{GroupID: "size", ChoiceID: "tiny"}), domain.ErrInvalidOption},
		{"unavailable choice", cake(2, domain.OptionSelection{GroupID: "size", ChoiceID: "huge"}), domain.ErrInvalidOption},
		{"other on fixed group", cake(2, domain.OptionSelection{GroupID: "size", ChoiceID: domain.OtherChoiceID, FreeText: "xl"}), domain.ErrInvalidOption},
		{"other without text", cake(2, domain.OptionSelection{GroupID: "color", ChoiceID: domain.OtherChoiceID, FreeText: "  "}), domain.ErrInvalidOption},
		{"duplicate group", cake(2,
			domain.OptionSelection{GroupID: "size", ChoiceID: "small"},
			domain.OptionSelection{GroupID: "size", ChoiceID: "large"}), domain.ErrInvalidOption},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, nil, tc.item)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreate_MinimumBoundaryAccepted(t *testing.T) {
	svc := New(newMemoryRepo(), newCatalog(), nil)

	b, err := svc.Create(context.Background(), nil, cake(2, domain.OptionSelection{GroupID: "color", ChoiceID: domain.OtherChoiceID, FreeText: " teal "}))

	require.NoError(t, err)
	require.Len(t, b.Items, 1)
	assert.Equal(t, 2, b.Items[0].Quantity)
	assert.Equal(t, "teal", b.Items[0].Options[0].FreeText)
	assert.True(t, b.IsGuest())
}

func TestCreate_CustomerWithBasketAddsInstead(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo, newCatalog(), nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, strPtr("c1"), cake(2))
	require.NoError(t, err)
	second, err := svc.Create(ctx, strPtr("c1"), cake(3))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Items[0].Quantity)
}

func TestAddItem_ConsolidatesEquivalentItems(t *testing.T) {
	svc := New(newMemoryRepo(), newCatalog(), nil)
	ctx := context.Background()
	size := domain.OptionSelection{GroupID: "size", ChoiceID: "large"}
	color := domain.OptionSelection{GroupID: "color", ChoiceID: "red"}

	b, err := svc.Create(ctx, nil, cake(2, size, color))
	require.NoError(t, err)
	b, err = svc.AddItem(ctx, b.ID, cake(3, color, size))
	require.NoError(t, err)
	b, err = svc.AddItem(ctx, b.ID, domain.LineItem{ProductID: "cookie", Quantity: 1})
	require.NoError(t, err)

	require.Len(t, b.Items, 2)
	assert.Equal(t, 5, b.Items[0].Quantity)
	assert.Equal(t, "cookie", b.Items[1].ProductID)
}

func TestAddItem_RetriesOnVersionConflict(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo, newCatalog(), nil)
	ctx := context.Background()

	b, err := svc.Create(ctx, nil, cake(2))
	require.NoError(t, err)
	repo.conflicts = 2

	b, err = svc.AddItem(ctx, b.ID, cake(2))

	require.NoError(t, err)
	assert.Equal(t, 4, b.Items[0].Quantity)
	assert.Equal(t, 1, repo.saves)
}

func TestEditItem(t *testing.T) {
	svc := New(newMemoryRepo(), newCatalog(), nil)
	ctx := context.Background()
	b, err := svc.Create(ctx, nil, cake(2))
	require.NoError(t, err)
	b, err = svc.AddItem(ctx, b.ID, domain.LineItem{ProductID: "cookie", Quantity: 4})
	require.NoError(t, err)
	cakeSig := domain.Signature(b.Items[0])
	cookieSig := domain.Signature(b.Items[1])

	t.Run("update", func(t *testing.T) {
		got, outcome, err := svc.EditItem(ctx, b.ID, cakeSig, 6)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, outcome)
		assert.Equal(t, 6, got.Items[0].Quantity)
	})

	t.Run("below minimum", func(t *testing.T) {
		_, _, err := svc.EditItem(ctx, b.ID, cakeSig, 1)
		assert.ErrorIs(t, err, domain.ErrQuantityTooLow)
	})

	t.Run("no match", func(t *testing.T) {
		before, err := svc.Get(ctx, b.ID)
		require.NoError(t, err)
		got, outcome, err := svc.EditItem(ctx, b.ID, "missing", 3)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnchanged, outcome)
		assert.Equal(t, before.Version, got.Version)
	})

	t.Run("remove", func(t *testing.T) {
		got, outcome, err := svc.EditItem(ctx, b.ID, cookieSig, 0)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRemoved, outcome)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "cake", got.Items[0].ProductID)
	})

	t.Run("negative", func(t *testing.T) {
		_, _, err := svc.EditItem(ctx, b.ID, cakeSig, -1)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestCombine(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo, newCatalog(), nil)
	ctx := context.Background()

	guest, err := svc.Create(ctx, nil, cake(2))
	require.NoError(t, err)
	guest, err = svc.AddItem(ctx, guest.ID, domain.LineItem{ProductID: "cookie", Quantity: 1})
	require.NoError(t, err)
	own, err := svc.Create(ctx, strPtr("c1"), cake(3))
	require.NoError(t, err)

	merged, err := svc.Combine(ctx, guest, own.ID)
	require.NoError(t, err)
	assert.Equal(t, own.ID, merged.ID)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, 5, merged.Items[0].Quantity)
	_, err = repo.GetByID(ctx, guest.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	again, err := svc.Combine(ctx, guest, own.ID)
	require.NoError(t, err)
	assert.Equal(t, merged.Items, again.Items)
	assert.Equal(t, merged.Version, again.Version)
}

func TestCombine_MissingTargetReturnsSource(t *testing.T) {
	svc := New(newMemoryRepo(), newCatalog(), nil)
	ctx := context.Background()
	guest, err := svc.Create(ctx, nil, cake(2))
	require.NoError(t, err)

	got, err := svc.Combine(ctx, guest, "gone")

	require.NoError(t, err)
	assert.Equal(t, guest, got)
}

func TestCombine_KeepsItemAddedToSourceDuringMerge(t *testing.T) {
	repo := &interleavingRepo{memoryRepo: newMemoryRepo()}
	svc := New(repo, newCatalog(), nil)
	ctx := context.Background()

	guest, err := svc.Create(ctx, nil, cake(2))
	require.NoError(t, err)
	own, err := svc.Create(ctx, strPtr("c1"), cake(3))
	require.NoError(t, err)

	var addErr error
	repo.beforeMerge = func() {
		_, addErr = svc.AddItem(ctx, guest.ID, domain.LineItem{ProductID: "cookie", Quantity: 1})
	}

	merged, err := svc.Combine(ctx, guest, own.ID)

	require.NoError(t, err)
	require.NoError(t, addErr)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, 5, merged.Items[0].Quantity)
	assert.Equal(t, "cookie", merged.Items[1].ProductID)
	assert.Equal(t, 1, merged.Items[1].Quantity)
	_, err = repo.GetByID(ctx, guest.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCombine_RejectsSameOwner(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo, newCatalog(), nil)
	ctx := context.Background()

	own, err := svc.Create(ctx, strPtr("c1"), cake(3))
	require.NoError(t, err)
	other := domain.Basket{ID: "stray", CustomerID: strPtr("c1"), Items: []domain.LineItem{cake(2)}, Version: 1}
	repo.baskets[other.ID] = other

	_, err = svc.Combine(ctx, &other, own.ID)

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Len(t, repo.baskets, 2)
}

func TestCombine_SourceAdoptedElsewhereIsLeftAlone(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo, newCatalog(), nil)
	ctx := context.Background()

	guest, err := svc.Create(ctx, nil, cake(2))
	require.NoError(t, err)
	own, err := svc.Create(ctx, strPtr("c1"), cake(3))
	require.NoError(t, err)
	_, err = repo.AssignCustomer(ctx, guest.ID, "c2")
	require.NoError(t, err)

	got, err := svc.Combine(ctx, guest, own.ID)

	require.NoError(t, err)
	assert.Equal(t, own.ID, got.ID)
	assert.Equal(t, 3, got.Items[0].Quantity)
	taken, err := repo.GetByID(ctx, guest.ID)
	require.NoError(t, err)
	assert.True(t, taken.OwnedBy("c2"))
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("adopts when customer has no basket", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := New(repo, newCatalog(), nil)
		guest, err := svc.Create(ctx, nil, cake(2))
		require.NoError(t, err)

		got, err := svc.Reconcile(ctx, guest, "c1")

		require.NoError(t, err)
		assert.Equal(t, guest.ID, got.ID)
		assert.True(t, got.OwnedBy("c1"))
	})

	t.Run("merges into customer basket", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := New(repo, newCatalog(), nil)
		guest, err := svc.Create(ctx, nil, cake(2))
		require.NoError(t, err)
		own, err := svc.Create(ctx, strPtr("c1"), domain.LineItem{ProductID: "cookie", Quantity: 1})
		require.NoError(t, err)

		got, err := svc.Reconcile(ctx, guest, "c1")

		require.NoError(t, err)
		assert.Equal(t, own.ID, got.ID)
		assert.Len(t, got.Items, 2)
		assert.Len(t, repo.baskets, 1)
	})

	t.Run("guest adopted by someone else", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := New(repo, newCatalog(), nil)
		guest, err := svc.Create(ctx, nil, cake(2))
		require.NoError(t, err)
		_, err = repo.AssignCustomer(ctx, guest.ID, "c2")
		require.NoError(t, err)

		got, err := svc.Reconcile(ctx, guest, "c1")

		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("guest deleted before adoption", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := New(repo, newCatalog(), nil)
		guest, err := svc.Create(ctx, nil, cake(2))
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, guest.ID))

		got, err := svc.Reconcile(ctx, guest, "c1")

		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestClear(t *testing.T) {
	svc := New(newMemoryRepo(), newCatalog(), nil)
	ctx := context.Background()
	b, err := svc.Create(ctx, nil, cake(2))
	require.NoError(t, err)

	got, err := svc.Clear(ctx, b.ID)

	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Equal(t, b.ID, got.ID)
}
