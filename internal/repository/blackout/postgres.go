package blackout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderdesk/internal/domain"
)

const defaultReason = "Business Holiday"

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, w domain.BlackoutWindow) (*domain.BlackoutWindow, error) {
	if !w.Start.Before(w.End) {
		return nil, domain.Newf(domain.ErrValidation, "blackout start must be before end")
	}
	reason := strings.TrimSpace(w.Reason)
	if reason == "" {
		reason = defaultReason
	}
	res := w
	res.Reason = reason
	err := r.pool.QueryRow(ctx, `
INSERT INTO blackout_dates (starts_at, ends_at, reason)
VALUES ($1, $2, $3)
RETURNING id::text
`, w.Start, w.End, reason).Scan(&res.ID)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Covering returns a window containing t, or domain.ErrNotFound.
func (r *postgresRepo) Covering(ctx context.Context, t time.Time) (*domain.BlackoutWindow, error) {
	var w domain.BlackoutWindow
	err := r.pool.QueryRow(ctx, `
SELECT id::text, starts_at, ends_at, reason
FROM blackout_dates
WHERE starts_at <= $1 AND ends_at >= $1
ORDER BY starts_at
LIMIT 1
`, t).Scan(&w.ID, &w.Start, &w.End, &w.Reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *postgresRepo) ListUpcoming(ctx context.Context, from time.Time) ([]domain.BlackoutWindow, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id::text, starts_at, ends_at, reason
FROM blackout_dates
WHERE ends_at >= $1
ORDER BY starts_at
`, from)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.BlackoutWindow, error) {
		var w domain.BlackoutWindow
		err := row.Scan(&w.ID, &w.Start, &w.End, &w.Reason)
		return w, err
	})
}
