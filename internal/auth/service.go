package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/models"
)

// Client-facing messages. Both login failure paths share one message.
const (
	msgEmailInUse         = "Email in use"
	msgInvalidCredentials = "Invalid email or password!"
	msgMissingSession     = "Session cookies are missing."
	msgSessionNotFound    = "Session not found"
	msgSessionExpired     = "Session token expired"
	msgPasswordTooLong    = "password must be at most 72 bytes."
)

// MsgSessionNotFound is the message for a session that does not exist, shared
// with the authentication middleware.
const MsgSessionNotFound = msgSessionNotFound

// AccountStore persists accounts. FindOne returns nil, nil when nothing
// matches; Create reports a duplicate email as an apperror conflict.
type AccountStore interface {
	FindOne(ctx context.Context, filter models.AccountFilter) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	FindOneAndUpdate(ctx context.Context, filter models.AccountFilter, update models.AccountUpdate) (*models.Account, error)
	DeleteOne(ctx context.Context, filter models.AccountFilter) (bool, error)
}

// SessionStore persists sessions. FindOne returns nil, nil when nothing
// matches.
type SessionStore interface {
	FindOne(ctx context.Context, filter models.SessionFilter) (*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	DeleteOne(ctx context.Context, filter models.SessionFilter) (bool, error)
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
	// Rotate atomically deletes the session identified by id only if it
	// still carries refreshToken, then stores next. It reports false, and
	// stores nothing, when no such session exists any more.
	Rotate(ctx context.Context, id, refreshToken string, next *models.Session) (bool, error)
}

// Service implements registration, login, refresh, logout and the lookups
// the authentication middleware needs.
type Service struct {
	accounts AccountStore
	sessions SessionStore
	hasher   PasswordHasher
	issuer   *Issuer
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(accounts AccountStore, sessions SessionStore, hasher PasswordHasher, issuer *Issuer) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		issuer:   issuer,
		now:      time.Now,
	}
}

// Register creates an account. It does not log the account in.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.Account, error) {
	email := models.NormalizeEmail(req.Email)

	// Check before hashing; the unique index still catches a racing insert.
	existing, err := s.accounts.FindOne(ctx, models.AccountFilter{Email: email})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if existing != nil {
		return nil, apperror.NewConflict(msgEmailInUse)
	}

	hash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, ErrPasswordTooLong) {
		return nil, apperror.NewValidation(msgPasswordTooLong)
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	now := s.now().UTC()
	account := &models.Account{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Gender:       req.Gender,
		DailyGoal:    req.DailyGoal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	account.ApplyDefaults()

	if err := s.accounts.Create(ctx, account); err != nil {
		if apperror.Is(err, http.StatusConflict) {
			return nil, err
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating account: %w", err))
	}

	slog.InfoContext(ctx, "user registered", slog.String("user_id", account.ID))
	return account, nil
}

// Login verifies the credentials, drops every existing session of the
// account and returns exactly one new session.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, error) {
	account, err := s.accounts.FindOne(ctx, models.AccountFilter{Email: models.NormalizeEmail(email)})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("finding account: %w", err))
	}

	if account == nil {
		// Spend the same hashing work as a real comparison.
		_, _ = s.hasher.Compare(s.dummy(), password)
		return nil, apperror.NewUnauthorized(msgInvalidCredentials)
	}
	ok, err := s.hasher.Compare(account.PasswordHash, password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("verifying password: %w", err))
	}
	if !ok {
		return nil, apperror.NewUnauthorized(msgInvalidCredentials)
	}

	if _, err := s.sessions.DeleteByAccount(ctx, account.ID); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("dropping old sessions: %w", err))
	}

	session, err := s.issuer.Issue(account.ID, s.now().UTC())
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("issuing session: %w", err))
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	slog.InfoContext(ctx, "user logged in",
		slog.String("user_id", account.ID),
		slog.String("session_id", session.ID),
	)
	return session, nil
}

// Refresh swaps the session identified by sessionID and refreshToken for a
// new one with fresh tokens. The old pair stops working.
func (s *Service) Refresh(ctx context.Context, sessionID, refreshToken string) (*models.Session, error) {
	if sessionID == "" || refreshToken == "" {
		return nil, apperror.NewBadRequest(msgMissingSession)
	}

	current, err := s.sessions.FindOne(ctx, models.SessionFilter{ID: sessionID, RefreshToken: refreshToken})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("finding session: %w", err))
	}
	if current == nil {
		return nil, apperror.NewUnauthorized(msgSessionNotFound)
	}

	now := s.now().UTC()
	if current.RefreshExpired(now) {
		return nil, apperror.NewUnauthorized(msgSessionExpired)
	}

	next, err := s.issuer.Issue(current.AccountID, now)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("issuing session: %w", err))
	}
	rotated, err := s.sessions.Rotate(ctx, sessionID, refreshToken, next)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("rotating session: %w", err))
	}
	if !rotated {
		// Another refresh consumed the token between lookup and rotation.
		return nil, apperror.NewUnauthorized(msgSessionNotFound)
	}

	slog.InfoContext(ctx, "session refreshed",
		slog.String("user_id", next.AccountID),
		slog.String("session_id", next.ID),
	)
	return next, nil
}

// Logout deletes the session if it exists. Unknown ids are not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if _, err := s.sessions.DeleteOne(ctx, models.SessionFilter{ID: sessionID}); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting session: %w", err))
	}
	return nil
}

// GetUser returns the account matching filter, or nil when there is none.
func (s *Service) GetUser(ctx context.Context, filter models.AccountFilter) (*models.Account, error) {
	return s.accounts.FindOne(ctx, filter)
}

// GetSession returns the session matching filter, or nil when there is none.
func (s *Service) GetSession(ctx context.Context, filter models.SessionFilter) (*models.Session, error) {
	return s.sessions.FindOne(ctx, filter)
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		token, err := randomToken()
		if err != nil {
			return
		}
		s.dummyHash, _ = s.hasher.Hash(token)
	})
	return s.dummyHash
}
