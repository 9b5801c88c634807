package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/org/stockdesk/internal/storage"
	"github.com/org/stockdesk/pkg/models"
)

const tokenPrefix = "sdk_"

// Token TTLs, chosen by the remember-me flag at login.
const (
	SessionTTL  = 24 * time.Hour
	RememberTTL = 30 * 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// TokenStore is the storage the TokenService needs.
type TokenStore interface {
	WriteAccessToken(ctx context.Context, token *models.AccessToken) error
	GetAccessToken(ctx context.Context, hash string) (*models.AccessToken, error)
	RevokeAccessToken(ctx context.Context, hash string) error
}

// TokenService issues, validates and revokes bearer tokens. Only the
// SHA-256 hash of a token is persisted.
type TokenService struct {
	store TokenStore
}

// NewTokenService creates a TokenService backed by the given storage.
func NewTokenService(store TokenStore) *TokenService {
	return &TokenService{store: store}
}

// Issue creates a token for userID valid for ttl and returns the plaintext
// (shown once to the caller) with its record.
func (s *TokenService) Issue(ctx context.Context, userID string, ttl time.Duration) (string, *models.AccessToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("generating token: %w", err)
	}
	plaintext := tokenPrefix + base64.RawURLEncoding.EncodeToString(raw)

	now := time.Now().UTC()
	t := &models.AccessToken{
		Hash:      HashToken(plaintext),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.store.WriteAccessToken(ctx, t); err != nil {
		return "", nil, fmt.Errorf("persisting token: %w", err)
	}
	return plaintext, t, nil
}

// Validate looks up a token by its plaintext value.
func (s *TokenService) Validate(ctx context.Context, plaintext string) (*models.AccessToken, error) {
	if plaintext == "" {
		return nil, ErrInvalidToken
	}
	token, err := s.store.GetAccessToken(ctx, HashToken(plaintext))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if token.IsRevoked() {
		return nil, ErrTokenRevoked
	}
	if token.IsExpired() {
		return nil, ErrTokenExpired
	}
	return token, nil
}

// Revoke invalidates a token. Revoking twice is not an error.
func (s *TokenService) Revoke(ctx context.Context, plaintext string) error {
	err := s.store.RevokeAccessToken(ctx, HashToken(plaintext))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidToken
	}
	return err
}

// HashToken returns the SHA-256 hex hash of a plaintext token.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
