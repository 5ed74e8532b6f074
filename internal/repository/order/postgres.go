package order

import (
	"context"
	"errors"
	"time"

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
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("order_repo")}
}

const orderSelect = `
SELECT o.id::text, o.order_number, o.customer_id::text, s.name, o.delivery_type, o.shipping_address,
       o.target_at, o.total, o.items, o.memo, o.replaces_id::text, o.replaces_number,
       o.replaced_by_id::text, o.replaced_by_number, o.created_at, o.modified_at
FROM orders o
JOIN order_statuses s ON s.id = o.status_id
`

// Create writes the order, supersedes the replaced order and clears the
// source basket in one transaction. The new row is inserted before the old
// order is touched.
func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o := in.Order
	o.Status = domain.StatusPlaced
	var replacesID *string
	var replacesNumber *int64
	if o.Replaces != nil {
		replacesID = &o.Replaces.ID
		replacesNumber = &o.Replaces.Number
	}
	err = tx.QueryRow(ctx, `
INSERT INTO orders (customer_id, status_id, delivery_type, shipping_address, target_at, total, items, memo, replaces_id, replaces_number)
VALUES ($1, (SELECT id FROM order_statuses WHERE name = $2), $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id::text, order_number, created_at, modified_at
`,
		o.CustomerID,
		o.Status,
		string(o.DeliveryType),
		o.ShippingAddress,
		o.Target,
		o.Total,
		o.Items,
		o.Memo,
		replacesID,
		replacesNumber,
	).Scan(&o.ID, &o.Number, &o.CreatedAt, &o.ModifiedAt)
	if err != nil {
		r.logger.Error("insert order", zap.String("customerId", o.CustomerID), zap.Error(err))
		return nil, err
	}

	if in.Supersedes != nil {
		cmd, err := tx.Exec(ctx, `
UPDATE orders
SET status_id = (SELECT id FROM order_statuses WHERE name = 'replaced'),
    replaced_by_id = $2,
    replaced_by_number = $3,
    modified_at = now()
WHERE id = $1
  AND status_id IN (SELECT id FROM order_statuses WHERE name IN ('placed', 'accepted', 'processed'))
`, in.Supersedes.ID, o.ID, o.Number)
		if err != nil {
			return nil, err
		}
		if cmd.RowsAffected() == 0 {
			return nil, domain.Newf(domain.ErrInvalidTransition, "order %d can no longer be replaced", in.Supersedes.Number)
		}
	}

	if in.BasketID != "" {
		cmd, err := tx.Exec(ctx, `
UPDATE baskets
SET items = '[]'::jsonb,
    version = version + 1,
    modified_at = now()
WHERE id = $1 AND version = $2
`, in.BasketID, in.BasketVersion)
		if err != nil {
			return nil, err
		}
		if cmd.RowsAffected() == 0 {
			return nil, domain.ErrBasketChanged
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("order created",
		zap.String("id", o.ID),
		zap.Int64("number", o.Number),
		zap.Int64("total", o.Total))
	return &o, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return scanOrder(r.pool.QueryRow(ctx, orderSelect+`WHERE o.id = $1`, id))
}

func (r *postgresRepo) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, orderSelect+`WHERE o.customer_id = $1 ORDER BY o.created_at DESC LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	return result, rows.Err()
}

// UpdateStatus moves the order from one status to another. A concurrent
// change of status is reported as domain.ErrVersionConflict.
func (r *postgresRepo) UpdateStatus(ctx context.Context, id, from, to string) (*domain.Order, error) {
	cmd, err := r.pool.Exec(ctx, `
UPDATE orders
SET status_id = (SELECT id FROM order_statuses WHERE name = $3),
    modified_at = now()
WHERE id = $1 AND status_id = (SELECT id FROM order_statuses WHERE name = $2)
`, id, from, to)
	if err != nil {
		r.logger.Error("update order status", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrVersionConflict
	}
	return r.GetByID(ctx, id)
}

// ActiveTargets lists target times of accepted and processed orders in
// [from, to).
func (r *postgresRepo) ActiveTargets(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
SELECT o.target_at
FROM orders o
JOIN order_statuses s ON s.id = o.status_id
WHERE s.step BETWEEN 1 AND 2
  AND o.target_at >= $1 AND o.target_at < $2
`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

// StatusCounts counts orders per status whose target falls in [from, to).
// Every status is present, with zero when unused.
func (r *postgresRepo) StatusCounts(ctx context.Context, from, to time.Time) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
SELECT s.name, count(o.id)
FROM order_statuses s
LEFT JOIN orders o ON o.status_id = s.id AND o.target_at >= $1 AND o.target_at < $2
GROUP BY s.name
`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                domain.Order
		delivery         string
		replacesID       *string
		replacesNumber   *int64
		replacedByID     *string
		replacedByNumber *int64
	)
	err := row.Scan(
		&o.ID,
		&o.Number,
		&o.CustomerID,
		&o.Status,
		&delivery,
		&o.ShippingAddress,
		&o.Target,
		&o.Total,
		&o.Items,
		&o.Memo,
		&replacesID,
		&replacesNumber,
		&replacedByID,
		&replacedByNumber,
		&o.CreatedAt,
		&o.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	o.DeliveryType = domain.DeliveryType(delivery)
	if replacesID != nil && replacesNumber != nil {
		o.Replaces = &domain.OrderRef{ID: *replacesID, Number: *replacesNumber}
	}
	if replacedByID != nil && replacedByNumber != nil {
		o.ReplacedBy = &domain.OrderRef{ID: *replacedByID, Number: *replacedByNumber}
	}
	return &o, nil
}
