package customer

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"orderdesk/internal/domain"
	tokenrepo "orderdesk/internal/repository/token"
)

const issueAttempts = 3

// accessTokens hands out opaque bearer tokens. The client holds the raw
// value; storage only sees its SHA-256 digest.
type accessTokens struct {
	repo tokenrepo.Repository
	now  func() time.Time
}

func newAccessTokens(repo tokenrepo.Repository) *accessTokens {
	return &accessTokens{repo: repo, now: time.Now}
}

func (a *accessTokens) Issue(ctx context.Context, customerID string, ttl time.Duration) (string, error) {
	expiresAt := a.now().Add(ttl)
	for i := 0; i < issueAttempts; i++ {
		raw, err := randomToken()
		if err != nil {
			return "", err
		}
		err = a.repo.Create(ctx, tokenrepo.Token{
			Hash:       digest(raw),
			CustomerID: customerID,
			Kind:       tokenrepo.KindAccess,
			ExpiresAt:  expiresAt,
		})
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return raw, nil
	}
	return "", fmt.Errorf("issue access token: %d digest collisions", issueAttempts)
}

// CustomerFor returns the customer id behind a live access token.
func (a *accessTokens) CustomerFor(ctx context.Context, raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	t, err := a.repo.GetActive(ctx, digest(raw), a.now())
	if err != nil || t.Kind != tokenrepo.KindAccess {
		return "", false
	}
	return t.CustomerID, true
}

func (a *accessTokens) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	return a.repo.Delete(ctx, digest(raw))
}

func digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
