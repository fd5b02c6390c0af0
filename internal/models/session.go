package models

import "time"

// Session binds one access/refresh token pair to one account.
type Session struct {
	ID                     string    `json:"id"`
	AccountID              string    `json:"accountId"`
	AccessToken            string    `json:"accessToken"`
	RefreshToken           string    `json:"-"`
	AccessTokenValidUntil  time.Time `json:"accessTokenValidUntil"`
	RefreshTokenValidUntil time.Time `json:"refreshTokenValidUntil"`
	CreatedAt              time.Time `json:"createdAt"`
}

// AccessExpired reports whether the access token is no longer usable at now.
// The expiry instant itself is already expired.
func (s *Session) AccessExpired(now time.Time) bool {
	return !now.Before(s.AccessTokenValidUntil)
}

// RefreshExpired reports whether the refresh token is no longer usable at
// now. Only instants strictly after the expiry are expired.
func (s *Session) RefreshExpired(now time.Time) bool {
	return now.After(s.RefreshTokenValidUntil)
}

// SessionFilter selects sessions. Empty fields are ignored; an all-empty
// filter matches nothing.
type SessionFilter struct {
	ID           string
	AccountID    string
	AccessToken  string
	RefreshToken string
}

// Empty reports whether no field is set.
func (f SessionFilter) Empty() bool {
	return f.ID == "" && f.AccountID == "" && f.AccessToken == "" && f.RefreshToken == ""
}

// Matches reports whether s satisfies every set field of f.
func (f SessionFilter) Matches(s *Session) bool {
	if f.Empty() || s == nil {
		return false
	}
	if f.ID != "" && f.ID != s.ID {
		return false
	}
	if f.AccountID != "" && f.AccountID != s.AccountID {
		return false
	}
	if f.AccessToken != "" && f.AccessToken != s.AccessToken {
		return false
	}
	if f.RefreshToken != "" && f.RefreshToken != s.RefreshToken {
		return false
	}
	return true
}
