package status

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderdesk/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.OrderStatus, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, name, step FROM order_statuses ORDER BY step = -1, step`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderStatus, error) {
		var s domain.OrderStatus
		err := row.Scan(&s.ID, &s.Name, &s.Step)
		return s, err
	})
}

func (r *postgresRepo) GetByName(ctx context.Context, name string) (*domain.OrderStatus, error) {
	var s domain.OrderStatus
	err := r.pool.QueryRow(ctx, `SELECT id::text, name, step FROM order_statuses WHERE name = $1`,
		strings.ToLower(strings.TrimSpace(name))).Scan(&s.ID, &s.Name, &s.Step)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
