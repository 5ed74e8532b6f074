package order

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"orderdesk/internal/domain"
)

// UpcomingBlackouts lists blackout windows that have not ended yet.
func (s *Service) UpcomingBlackouts(ctx context.Context) ([]domain.BlackoutWindow, error) {
	return s.blackouts.ListUpcoming(ctx, s.now())
}

// AddBlackout closes a period for new order targets. Existing orders inside
// the window are left alone.
func (s *Service) AddBlackout(ctx context.Context, w domain.BlackoutWindow) (*domain.BlackoutWindow, error) {
	if w.Start.IsZero() || w.End.IsZero() {
		return nil, domain.Newf(domain.ErrValidation, "start and end are required")
	}
	if w.End.Before(w.Start) {
		return nil, domain.Newf(domain.ErrValidation, "end must not be before start")
	}
	w.Reason = strings.TrimSpace(w.Reason)
	created, err := s.blackouts.Create(ctx, w)
	if err != nil {
		return nil, err
	}
	s.logger.Info("blackout added",
		zap.Time("start", created.Start),
		zap.Time("end", created.End),
		zap.String("reason", created.Reason))
	return created, nil
}
