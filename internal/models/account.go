package models

import (
	"strings"
	"time"
)

// Gender is the closed set of values an account's gender may take.
type Gender string

const (
	GenderWoman Gender = "woman"
	GenderMan   Gender = "man"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	return g == GenderWoman || g == GenderMan
}

// Daily intake goal bounds, in milliliters.
const (
	DefaultDailyGoal = 2000
	MinDailyGoal     = 50
	MaxDailyGoal     = 15000
)

// Account is a registered user's credential and profile record.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialize
	Name         string    `json:"name"`
	Gender       Gender    `json:"gender"`
	AvatarURL    string    `json:"avatarURL,omitempty"`
	DailyGoal    int       `json:"dailyGoal"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ApplyDefaults fills the fields that have creation-time defaults: the name
// falls back to the email, gender to woman and the goal to 2000 ml.
func (a *Account) ApplyDefaults() {
	if a.Name == "" {
		a.Name = a.Email
	}
	if a.Gender == "" {
		a.Gender = GenderWoman
	}
	if a.DailyGoal == 0 {
		a.DailyGoal = DefaultDailyGoal
	}
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountFilter selects a single account. Empty fields are ignored; an
// all-empty filter matches nothing.
type AccountFilter struct {
	ID    string
	Email string
}

// Empty reports whether no field is set.
func (f AccountFilter) Empty() bool {
	return f.ID == "" && f.Email == ""
}

// Matches reports whether a satisfies every set field of f.
func (f AccountFilter) Matches(a *Account) bool {
	if f.Empty() || a == nil {
		return false
	}
	if f.ID != "" && f.ID != a.ID {
		return false
	}
	if f.Email != "" && f.Email != a.Email {
		return false
	}
	return true
}

// AccountUpdate is a partial update; nil fields are left untouched.
type AccountUpdate struct {
	Email        *string
	PasswordHash *string
	Name         *string
	Gender       *Gender
	AvatarURL    *string
	DailyGoal    *int
}

// Empty reports whether the update changes nothing.
func (u AccountUpdate) Empty() bool {
	return u.Email == nil && u.PasswordHash == nil && u.Name == nil &&
		u.Gender == nil && u.AvatarURL == nil && u.DailyGoal == nil
}

// Apply writes the set fields of u onto a.
func (u AccountUpdate) Apply(a *Account) {
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Gender != nil {
		a.Gender = *u.Gender
	}
	if u.AvatarURL != nil {
		a.AvatarURL = *u.AvatarURL
	}
	if u.DailyGoal != nil {
		a.DailyGoal = *u.DailyGoal
	}
}

// RegisterRequest is the JSON body for POST /auth/signup.
type RegisterRequest struct {
	Email     string `json:"email"     validate:"required,email,max=254"`
	Password  string `json:"password"  validate:"required,min=8,max=64"`
	Name      string `json:"name"      validate:"omitempty,min=3,max=24"`
	Gender    Gender `json:"gender"    validate:"omitempty,oneof=woman man"`
	DailyGoal int    `json:"dailyGoal" validate:"omitempty,min=50,max=15000"`
}

// LoginRequest is the JSON body for POST /auth/signin.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,max=64"`
}

// UpdateProfileRequest is the JSON body for PATCH /users/current. A password
// change needs both the old and the new password.
type UpdateProfileRequest struct {
	Name        *string `json:"name"        validate:"omitempty,min=3,max=24"`
	Email       *string `json:"email"       validate:"omitempty,email,max=254"`
	Gender      *Gender `json:"gender"      validate:"omitempty,oneof=woman man"`
	DailyGoal   *int    `json:"dailyGoal"   validate:"omitempty,min=50,max=15000"`
	OldPassword string  `json:"oldPassword" validate:"omitempty,min=8,max=64"`
	NewPassword string  `json:"newPassword" validate:"omitempty,min=8,max=64"`
}
