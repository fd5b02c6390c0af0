package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ayush/water-tracker/backend/internal/models"
)

// tokenBytes is the amount of randomness behind each token.
const tokenBytes = 35

// Default token lifetimes.
const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Issuer creates fresh token pairs with their expiries.
type Issuer struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// Issue returns an unsaved session for accountID. Both expiries are measured
// from now.
func (i *Issuer) Issue(accountID string, now time.Time) (*models.Session, error) {
	access, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	refresh, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &models.Session{
		AccountID:              accountID,
		AccessToken:            access,
		RefreshToken:           refresh,
		AccessTokenValidUntil:  now.Add(i.accessTTL),
		RefreshTokenValidUntil: now.Add(i.refreshTTL),
		CreatedAt:              now,
	}, nil
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
