package cartauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"orderdesk/internal/domain"
)

var (
	// ErrInvalidToken covers forged, malformed and expired cart tokens.
	ErrInvalidToken = domain.Newf(domain.ErrUnauthorized, "invalid cart token")
	// ErrCSRFMismatch is returned when a mutating request does not prove
	// knowledge of the token's secret.
	ErrCSRFMismatch = domain.Newf(domain.ErrUnauthorized, "cart secret mismatch")
)

// Claims is the payload of a signed cart token. Only a bcrypt hash of the
// secret travels inside the token; PrevCSRFHash keeps the secret of the token
// it replaced valid.
type Claims struct {
	BasketID     string `json:"bid"`
	CSRFHash     string `json:"csh"`
	PrevCSRFHash string `json:"pcsh,omitempty"`
	jwt.RegisteredClaims
}

// Credentials are handed to the client: the token and its cleartext secret.
type Credentials struct {
	Token     string    `json:"token"`
	Secret    string    `json:"secret"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Reference is a verified token.
type Reference struct {
	BasketID  string
	ExpiresAt time.Time
	CSRFHash  string
}

// Issue signs a new token for basketID with a fresh secret. prevHash, when
// set, is carried so the previous secret keeps working.
func (s *Service) Issue(basketID, prevHash string) (*Credentials, error) {
	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cfg.HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash cart secret: %w", err)
	}

	now := s.now()
	expires := now.Add(s.cfg.TTL)
	claims := Claims{
		BasketID:     basketID,
		CSRFHash:     string(hash),
		PrevCSRFHash: prevHash,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   basketID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign cart token: %w", err)
	}
	return &Credentials{Token: signed, Secret: secret, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks the token signature and expiry. Mutating requests must also
// present the token's secret, or the secret of the token it replaced.
func (s *Service) Verify(token, secret string, mutating bool) (*Reference, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.BasketID == "" || claims.Issuer != s.cfg.Issuer || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	if mutating {
		if secret == "" || !matches(claims.CSRFHash, secret) && !matches(claims.PrevCSRFHash, secret) {
			return nil, ErrCSRFMismatch
		}
	}
	return &Reference{
		BasketID:  claims.BasketID,
		ExpiresAt: claims.ExpiresAt.Time,
		CSRFHash:  claims.CSRFHash,
	}, nil
}

// NeedsRenewal reports whether ref expires within the renewal window.
func (s *Service) NeedsRenewal(ref *Reference) bool {
	return ref.ExpiresAt.Sub(s.now()) <= s.cfg.RenewWithin
}

func matches(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
