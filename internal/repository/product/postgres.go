package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"orderdesk/internal/domain"
	"orderdesk/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("product_repo")}
}

const productColumns = `id::text, key, name, is_active, base_price, min_order_quantity, difficulty, option_groups, created_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Key, &p.Name, &p.IsActive, &p.BasePrice, &p.MinOrderQuantity, &p.Difficulty, &p.OptionGroups, &p.CreatedAt); err != nil {
		return nil, err
	}
	if p.OptionGroups == nil {
		p.OptionGroups = []domain.OptionGroup{}
	}
	return &p, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get product", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if err := r.attachDiscounts(ctx, map[string]*domain.Product{p.ID: p}); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByIDs returns the products that exist among ids. Malformed and unknown
// ids are simply absent from the result.
func (r *postgresRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	out := make(map[string]*domain.Product, len(valid))
	if len(valid) == 0 {
		return out, nil
	}

	q := `SELECT ` + productColumns + ` FROM products WHERE id = ANY(CAST($1::text[] AS uuid[]))`
	rows, err := r.pool.Query(ctx, q, valid)
	if err != nil {
		r.logger.Error("get products", zap.Int("count", len(valid)), zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachDiscounts(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) List(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE ($1 = false OR is_active) ORDER BY name`
	rows, err := r.pool.Query(ctx, q, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*domain.Product)
	var order []string
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		byID[p.ID] = p
		order = append(order, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachDiscounts(ctx, byID); err != nil {
		return nil, err
	}
	result := make([]domain.Product, 0, len(order))
	for _, id := range order {
		result = append(result, *byID[id])
	}
	return result, nil
}

func (r *postgresRepo) attachDiscounts(ctx context.Context, products map[string]*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	const q = `
SELECT d.id::text, d.starts_at, d.ends_at, d.target, d.percent, dp.product_id::text
FROM discounts d
JOIN discount_products dp ON dp.discount_id = d.id
WHERE dp.product_id = ANY(CAST($1::text[] AS uuid[]))
ORDER BY d.starts_at
`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		r.logger.Error("load discounts", zap.Error(err))
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			d         domain.Discount
			productID string
		)
		if err := rows.Scan(&d.ID, &d.Start, &d.End, &d.Target, &d.Percent, &productID); err != nil {
			return err
		}
		d.ProductIDs = []string{productID}
		if p, ok := products[productID]; ok {
			p.Discounts = append(p.Discounts, d)
		}
	}
	return rows.Err()
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.OptionGroups == nil {
		product.OptionGroups = []domain.OptionGroup{}
	}
	const q = `
INSERT INTO products (id, key, name, is_active, base_price, min_order_quantity, difficulty, option_groups)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (key) DO UPDATE SET
    name = EXCLUDED.name,
    is_active = EXCLUDED.is_active,
    base_price = EXCLUDED.base_price,
    min_order_quantity = EXCLUDED.min_order_quantity,
    difficulty = EXCLUDED.difficulty,
    option_groups = EXCLUDED.option_groups,
    modified_at = now()
RETURNING id::text, created_at
`
	res := product
	err := r.pool.QueryRow(ctx, q,
		product.ID,
		product.Key,
		product.Name,
		product.IsActive,
		product.BasePrice,
		product.MinQuantity(),
		min(max(product.Difficulty, 1), 3),
		product.OptionGroups,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.Error("upsert product", zap.String("key", product.Key), zap.Error(err))
		return nil, err
	}
	if product.ID != "" && res.ID != product.ID {
		return nil, fmt.Errorf("product repo: id mismatch for key=%s existing_id=%s import_id=%s", product.Key, res.ID, product.ID)
	}
	r.logger.Debug("upserted product", zap.String("key", res.Key), zap.String("id", res.ID))
	return &res, nil
}

func (r *postgresRepo) CreateDiscount(ctx context.Context, discount domain.Discount) (*domain.Discount, error) {
	if err := discount.Validate(); err != nil {
		return nil, err
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	res := discount
	err = tx.QueryRow(ctx, `
INSERT INTO discounts (starts_at, ends_at, target, percent)
VALUES ($1, $2, $3, $4)
RETURNING id::text
`, discount.Start, discount.End, string(discount.Target), discount.Percent).Scan(&res.ID)
	if err != nil {
		return nil, err
	}
	for _, productID := range discount.ProductIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO discount_products (discount_id, product_id) VALUES ($1, $2)`, res.ID, productID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &res, nil
}
