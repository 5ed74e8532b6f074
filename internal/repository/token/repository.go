package token

import (
	"context"
	"time"
)

// Kind tells access tokens apart from any other token a customer may hold.
type Kind string

const KindAccess Kind = "access"

// Token is a stored customer token. Only the digest of the value handed to
// the client is persisted.
type Token struct {
	Hash       string    `db:"token_hash"`
	CustomerID string    `db:"customer_id"`
	Kind       Kind      `db:"kind"`
	ExpiresAt  time.Time `db:"expires_at"`
	CreatedAt  time.Time `db:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, token Token) error
	// GetActive returns the token with the given digest if it has not expired
	// at the given instant. Expired tokens are reported as domain.ErrNotFound.
	GetActive(ctx context.Context, hash string, at time.Time) (*Token, error)
	// Delete removes a token. Deleting an unknown digest is not an error.
	Delete(ctx context.Context, hash string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
