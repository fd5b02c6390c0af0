// Package users serves the authenticated account's own profile: reading and
// editing it, changing the password, uploading an avatar and deleting the
// account with everything it owns.
package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/auth"
	"github.com/ayush/water-tracker/backend/internal/models"
)

const (
	msgNothingToUpdate   = "Nothing to update."
	msgPasswordPair      = "oldPassword and newPassword must be provided together."
	msgWrongPassword     = "Old password is incorrect."
	msgPasswordTooLong   = "newPassword must be at most 72 bytes."
	msgUserNotFound      = "User not found"
	msgExecutableAvatar  = "Executable files are not allowed."
	msgAvatarTooLarge    = "Avatar file is too large."
	msgAvatarUnavailable = "avatar storage is not configured"
)

// AccountStore is the subset of account persistence this package needs.
type AccountStore interface {
	FindOneAndUpdate(ctx context.Context, filter models.AccountFilter, update models.AccountUpdate) (*models.Account, error)
	DeleteOne(ctx context.Context, filter models.AccountFilter) (bool, error)
}

// SessionStore drops every session of an account.
type SessionStore interface {
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
}

// WaterStore is the subset of water entry persistence this package needs.
type WaterStore interface {
	UpdateGoalInRange(ctx context.Context, r models.WaterRange, goal int) (int64, error)
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
}

// AvatarStorage keeps avatar files and serves them by public URL.
type AvatarStorage interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	RemoveURL(ctx context.Context, url string) error
}

// Service implements the profile operations.
type Service struct {
	accounts AccountStore
	sessions SessionStore
	water    WaterStore
	storage  AvatarStorage
	hasher   auth.PasswordHasher

	maxAvatarBytes int64
	now            func() time.Time
}

// NewService builds a Service. storage may be nil, in which case avatar
// uploads fail with 503.
func NewService(accounts AccountStore, sessions SessionStore, water WaterStore, storage AvatarStorage, hasher auth.PasswordHasher, maxAvatarBytes int64) *Service {
	return &Service{
		accounts:       accounts,
		sessions:       sessions,
		water:          water,
		storage:        storage,
		hasher:         hasher,
		maxAvatarBytes: maxAvatarBytes,
		now:            time.Now,
	}
}

// UpdateProfile applies req to account and returns the stored result.
func (s *Service) UpdateProfile(ctx context.Context, account *models.Account, req models.UpdateProfileRequest) (*models.Account, error) {
	var update models.AccountUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		update.Name = &name
	}
	if req.Email != nil {
		email := models.NormalizeEmail(*req.Email)
		update.Email = &email
	}
	if req.Gender != nil {
		update.Gender = req.Gender
	}
	if req.DailyGoal != nil {
		update.DailyGoal = req.DailyGoal
	}

	if (req.OldPassword == "") != (req.NewPassword == "") {
		return nil, apperror.NewValidation(msgPasswordPair)
	}
	if req.NewPassword != "" {
		ok, err := s.hasher.Compare(account.PasswordHash, req.OldPassword)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("verifying password: %w", err))
		}
		if !ok {
			return nil, apperror.NewUnauthorized(msgWrongPassword)
		}
		hash, err := s.hasher.Hash(req.NewPassword)
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.NewValidation(msgPasswordTooLong)
		}
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
		}
		update.PasswordHash = &hash
	}

	if update.Empty() {
		return nil, apperror.NewValidation(msgNothingToUpdate)
	}

	updated, err := s.update(ctx, account.ID, update)
	if err != nil {
		return nil, err
	}

	if update.DailyGoal != nil {
		rng := models.DayRange(account.ID, s.now())
		if _, err := s.water.UpdateGoalInRange(ctx, rng, *update.DailyGoal); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("updating today's goal: %w", err))
		}
	}
	if update.PasswordHash != nil {
		slog.InfoContext(ctx, "password changed", slog.String("user_id", account.ID))
	}
	return updated, nil
}

// UpdateAvatar stores file as the account's new avatar and returns its URL.
// The previous avatar is removed afterwards on a best-effort basis.
func (s *Service) UpdateAvatar(ctx context.Context, account *models.Account, file io.Reader, filename string, size int64, contentType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".exe" {
		return "", apperror.NewValidation(msgExecutableAvatar)
	}
	if size > s.maxAvatarBytes {
		return "", apperror.NewTooLarge(msgAvatarTooLarge)
	}
	if s.storage == nil {
		return "", apperror.NewServiceUnavailable(errors.New(msgAvatarUnavailable))
	}

	key := fmt.Sprintf("avatars/%s/%s%s", account.ID, uuid.NewString(), ext)
	url, err := s.storage.Upload(ctx, key, file, size, contentType)
	if err != nil {
		return "", apperror.NewServiceUnavailable(fmt.Errorf("uploading avatar: %w", err))
	}

	if _, err := s.update(ctx, account.ID, models.AccountUpdate{AvatarURL: &url}); err != nil {
		s.removeAvatar(ctx, account.ID, url)
		return "", err
	}
	if account.AvatarURL != "" && account.AvatarURL != url {
		s.removeAvatar(ctx, account.ID, account.AvatarURL)
	}
	return url, nil
}

// Delete removes the account together with its sessions, water entries and
// avatar. Sessions go first so the account cannot be used while the rest is
// being removed.
func (s *Service) Delete(ctx context.Context, account *models.Account) error {
	if _, err := s.sessions.DeleteByAccount(ctx, account.ID); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting sessions: %w", err))
	}
	entries, err := s.water.DeleteByAccount(ctx, account.ID)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting water entries: %w", err))
	}
	if _, err := s.accounts.DeleteOne(ctx, models.AccountFilter{ID: account.ID}); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting account: %w", err))
	}
	if account.AvatarURL != "" {
		s.removeAvatar(ctx, account.ID, account.AvatarURL)
	}

	slog.InfoContext(ctx, "account deleted",
		slog.String("user_id", account.ID),
		slog.Int64("water_entries", entries),
	)
	return nil
}

func (s *Service) update(ctx context.Context, id string, update models.AccountUpdate) (*models.Account, error) {
	updated, err := s.accounts.FindOneAndUpdate(ctx, models.AccountFilter{ID: id}, update)
	if err != nil {
		if apperror.Is(err, http.StatusConflict) {
			return nil, err
		}
		return nil, apperror.NewInternal(fmt.Errorf("updating account: %w", err))
	}
	if updated == nil {
		return nil, apperror.NewNotFound(msgUserNotFound)
	}
	return updated, nil
}

func (s *Service) removeAvatar(ctx context.Context, accountID, url string) {
	if s.storage == nil {
		return
	}
	if err := s.storage.RemoveURL(ctx, url); err != nil {
		slog.WarnContext(ctx, "avatar cleanup failed",
			slog.String("user_id", accountID),
			slog.Any("error", err),
		)
	}
}
