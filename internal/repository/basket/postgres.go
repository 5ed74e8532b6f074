package basket

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderdesk/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const basketColumns = `id::text, customer_id::text, items, version, created_at, modified_at`

func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.Basket, error) {
	items := in.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	q := `
INSERT INTO baskets (customer_id, items)
VALUES ($1, $2)
RETURNING ` + basketColumns
	return scanBasket(r.pool.QueryRow(ctx, q, in.CustomerID, items))
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Basket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + basketColumns + ` FROM baskets WHERE id = $1`
	return scanBasket(r.pool.QueryRow(ctx, q, id))
}

func (r *postgresRepo) GetByCustomer(ctx context.Context, customerID string) (*domain.Basket, error) {
	q := `SELECT ` + basketColumns + ` FROM baskets WHERE customer_id = $1`
	return scanBasket(r.pool.QueryRow(ctx, q, customerID))
}

func (r *postgresRepo) SaveItems(ctx context.Context, id string, version int, items []domain.LineItem) (*domain.Basket, error) {
	if items == nil {
		items = []domain.LineItem{}
	}
	q := `
UPDATE baskets
SET items = $3,
    version = version + 1,
    modified_at = now()
WHERE id = $1 AND version = $2
RETURNING ` + basketColumns
	b, err := scanBasket(r.pool.QueryRow(ctx, q, id, version, items))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, r.missOrConflict(ctx, id)
	}
	return b, err
}

// AssignCustomer hands a guest basket to a customer. Baskets that already
// have an owner are reported as not found.
func (r *postgresRepo) AssignCustomer(ctx context.Context, id, customerID string) (*domain.Basket, error) {
	q := `
UPDATE baskets
SET customer_id = $2,
    version = version + 1,
    modified_at = now()
WHERE id = $1 AND customer_id IS NULL
RETURNING ` + basketColumns
	return scanBasket(r.pool.QueryRow(ctx, q, id, customerID))
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM baskets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) MergeInto(ctx context.Context, in MergeInput) (*domain.Basket, error) {
	items := in.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `DELETE FROM baskets WHERE id = $1 AND version = $2`, in.SourceID, in.SourceVersion)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrVersionConflict
	}

	q := `
UPDATE baskets
SET items = $3,
    version = version + 1,
    modified_at = now()
WHERE id = $1 AND version = $2
RETURNING ` + basketColumns
	merged, err := scanBasket(tx.QueryRow(ctx, q, in.TargetID, in.TargetVersion, items))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrVersionConflict
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return merged, nil
}

func (r *postgresRepo) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM baskets WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrVersionConflict
	}
	return domain.ErrNotFound
}

func scanBasket(row pgx.Row) (*domain.Basket, error) {
	var b domain.Basket
	if err := row.Scan(&b.ID, &b.CustomerID, &b.Items, &b.Version, &b.CreatedAt, &b.ModifiedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	if b.Items == nil {
		b.Items = []domain.LineItem{}
	}
	return &b, nil
}
