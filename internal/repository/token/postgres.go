package token

import (
	"context"
	"errors"
	"time"

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

func (r *postgresRepo) Create(ctx context.Context, token Token) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO tokens (token_hash, customer_id, kind, expires_at)
VALUES ($1, $2, $3, $4)
`, token.Hash, token.CustomerID, string(token.Kind), token.ExpiresAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *postgresRepo) GetActive(ctx context.Context, hash string, at time.Time) (*Token, error) {
	rows, err := r.pool.Query(ctx, `
SELECT token_hash, customer_id::text, kind, expires_at, created_at
FROM tokens
WHERE token_hash = $1 AND expires_at > $2
`, hash, at)
	if err != nil {
		return nil, err
	}
	t, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[Token])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

func (r *postgresRepo) Delete(ctx context.Context, hash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE token_hash = $1`, hash)
	return err
}

func (r *postgresRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
