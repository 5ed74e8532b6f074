// Package customer authenticates customers and resolves access tokens to the
// customer identity used for basket ownership and pricing audience.
package customer

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"orderdesk/internal/domain"
	"orderdesk/internal/logging"
	custrepo "orderdesk/internal/repository/customer"
	tokenrepo "orderdesk/internal/repository/token"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = domain.Newf(domain.ErrUnauthorized, "invalid credentials")
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = domain.Newf(domain.ErrUnauthorized, "invalid token")
)

// Service handles customer login and token lookup.
type Service struct {
	repo      custrepo.Repository
	tokens    *accessTokens
	accessTTL time.Duration
	logger    *zap.Logger
}

// New creates a Service. A zero accessTTL defaults to 48 hours.
func New(repo custrepo.Repository, tokens tokenrepo.Repository, accessTTL time.Duration, logger *zap.Logger) *Service {
	if accessTTL <= 0 {
		accessTTL = 48 * time.Hour
	}
	return &Service{
		repo:      repo,
		tokens:    newAccessTokens(tokens),
		accessTTL: accessTTL,
		logger:    logging.OrNop(logger),
	}
}

// Login validates credentials and returns the customer with a fresh access
// token.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Customer, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	c, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !c.IsActive {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	access, err := s.tokens.Issue(ctx, c.ID, s.accessTTL)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("customer logged in", zap.String("customerId", c.ID))
	return c, access, nil
}

// LookupByToken returns the active customer bound to a valid access token.
func (s *Service) LookupByToken(ctx context.Context, token string) (*domain.Customer, error) {
	customerID, ok := s.tokens.CustomerFor(ctx, token)
	if !ok {
		return nil, ErrInvalidToken
	}
	c, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !c.IsActive {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// Logout revokes an access token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Get returns a customer by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetByID(ctx, id)
}

// AccessTTLSeconds exposes the access token lifetime in seconds.
func (s *Service) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}
