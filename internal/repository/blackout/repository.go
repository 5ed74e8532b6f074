package blackout

import (
	"context"
	"time"

	"orderdesk/internal/domain"
)

// Repository stores periods in which orders cannot target.
type Repository interface {
	Create(ctx context.Context, w domain.BlackoutWindow) (*domain.BlackoutWindow, error)
	Covering(ctx context.Context, t time.Time) (*domain.BlackoutWindow, error)
	ListUpcoming(ctx context.Context, from time.Time) ([]domain.BlackoutWindow, error)
}
