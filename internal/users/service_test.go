package users

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/auth"
	"github.com/ayush/water-tracker/backend/internal/models"
	"github.com/ayush/water-tracker/backend/internal/store/memstore"
)

const storageBase = "http://files.test/avatars/"

// fakeStorage keeps uploaded objects in memory.
type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string]string
	uploadErr error
	removeErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]string)}
}

func (f *fakeStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = string(data)
	return storageBase + key, nil
}

func (f *fakeStorage) RemoveURL(_ context.Context, url string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, strings.TrimPrefix(url, storageBase))
	return nil
}

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type testEnv struct {
	svc      *Service
	accounts *memstore.Accounts
	sessions *memstore.Sessions
	water    *memstore.Water
	storage  *fakeStorage
	hasher   auth.PasswordHasher
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		accounts: memstore.NewAccounts(),
		sessions: memstore.NewSessions(),
		water:    memstore.NewWater(),
		storage:  newFakeStorage(),
		hasher:   auth.NewBcryptHasher(bcrypt.MinCost),
		now:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(env.accounts, env.sessions, env.water, env.storage, env.hasher, 1024)
	env.svc.now = func() time.Time { return env.now }
	return env
}

func (env *testEnv) account(t *testing.T, email, password string) *models.Account {
	t.Helper()
	hash, err := env.hasher.Hash(password)
	require.NoError(t, err)
	a := &models.Account{Email: email, PasswordHash: hash}
	a.ApplyDefaults()
	require.NoError(t, env.accounts.Create(context.Background(), a))
	return a
}

func assertAppError(t *testing.T, err error, expectedCode int) *apperror.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected *apperror.AppError, got %T: %v", err, err)
	assert.Equal(t, expectedCode, appErr.Code, "message: %s", appErr.Message)
	return appErr
}

func ptr[T any](v T) *T { return &v }

// --- UpdateProfile ---

func TestUpdateProfile_Fields(t *testing.T) {
	env := newTestEnv(t)
	a := env.account(t, "kate@example.com", "password123")

	got, err := env.svc.UpdateProfile(context.Background(), a, models.UpdateProfileRequest{
		Name:   ptr("  Kate  "),
		Email:  ptr("KATE2@Example.com"),
		Gender: ptr(models.GenderMan),
	})
	require.NoError(t, err)
	assert.Equal(t, "Kate", got.Name)
	assert.Equal(t, "kate2@example.com", got.Email)
	assert.Equal(t, models.GenderMan, got.Gender)
}

func TestUpdateProfile_NothingToUpdate(t *testing.T) {
	env := newTestEnv(t)
	a := env.account(t, "kate@example.com", "password123")

	_, err := env.svc.UpdateProfile(context.Background(), a, models.UpdateProfileRequest{})
	assertAppError(t, err, http.StatusBadRequest)
}

func TestUpdateProfile_EmailTaken(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "bob@example.com", "password123")
	a := env.account(t, "kate@example.com", "password123")

	_, err := env.svc.UpdateProfile(context.Background(), a, models.UpdateProfileRequest{Email: ptr("bob@example.com")})
	assertAppError(t, err, http.StatusConflict)
}

func TestUpdateProfile_PasswordChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.account(t, "kate@example.com", "password123")

	_, err := env.svc.UpdateProfile(ctx, a, models.UpdateProfileRequest{NewPassword: "newpassword1"})
	assertAppError(t, err, http.StatusBadRequest)

	_, err = env.svc.UpdateProfile(ctx, a, models.UpdateProfileRequest{OldPassword: "password123"})
	assertAppError(t, err, http.StatusBadRequest)

	_, err = env.svc.UpdateProfile(ctx, a, models.UpdateProfileRequest{OldPassword: "wrongpass1", NewPassword: "newpassword1"})
	appErr := assertAppError(t, err, http.StatusUnauthorized)
	assert.Equal(t, msgWrongPassword, appErr.Message)

	got, err := env.svc.UpdateProfile(ctx, a, models.UpdateProfileRequest{OldPassword: "password123", NewPassword: "newpassword1"})
	require.NoError(t, err)
	ok, err := env.hasher.Compare(got.PasswordHash, "newpassword1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateProfile_NewPasswordOverBcryptLimit(t *testing.T) {
	env := newTestEnv(t)
	a := env.account(t, "kate@example.com", "password123")

	_, err := env.svc.UpdateProfile(context.Background(), a,
		models.UpdateProfileRequest{OldPassword: "password123", NewPassword: strings.Repeat("ü", 40)})
	appErr := assertAppError(t, err, http.StatusBadRequest)
	assert.Equal(t, msgPasswordTooLong, appErr.Message)
}

func TestUpdateProfile_DailyGoalResnapshotsToday(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.account(t, "kate@example.com", "password123")

	today := &models.WaterEntry{AccountID: a.ID, Amount: 250, Time: env.now.Add(-time.Hour), DailyGoal: 2000}
	yesterday := &models.WaterEntry{AccountID: a.ID, Amount: 250, Time: env.now.AddDate(0, 0, -1), DailyGoal: 2000}
	require.NoError(t, env.water.Create(ctx, today))
	require.NoError(t, env.water.Create(ctx, yesterday))

	got, err := env.svc.UpdateProfile(ctx, a, models.UpdateProfileRequest{DailyGoal: ptr(2500)})
	require.NoError(t, err)
	assert.Equal(t, 2500, got.DailyGoal)

	entries, err := env.water.Find(ctx, models.WaterRange{AccountID: a.ID, From: env.now.AddDate(0, 0, -2), To: env.now.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2000, entries[0].DailyGoal, "earlier days keep their snapshot")
	assert.Equal(t, 2500, entries[1].DailyGoal)
}

// --- UpdateAvatar ---

func TestUpdateAvatar_ReplacesPrevious(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.account(t, "kate@example.com", "password123")

	first, err := env.svc.UpdateAvatar(ctx, a, strings.NewReader("one"), "me.PNG", 3, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, storageBase+"avatars/"+a.ID+"/"))
	assert.True(t, strings.HasSuffix(first, ".png"))

	a, err = env.accounts.FindOne(ctx, models.AccountFilter{ID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, first, a.AvatarURL)

	second, err := env.svc.UpdateAvatar(ctx, a, strings.NewReader("two"), "me.jpg", 3, "image/jpeg")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, env.storage.count(), "old avatar removed")
}

func TestUpdateAvatar_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.account(t, "kate@example.com", "password123")

	_, err := env.svc.UpdateAvatar(ctx, a, strings.NewReader("MZ"), "virus.EXE", 2, "application/octet-stream")
	assertAppError(t, err, http.StatusBadRequest)

	_, err = env.svc.UpdateAvatar(ctx, a, strings.NewReader("x"), "big.png", 4096, "image/png")
	assertAppError(t, err, http.StatusRequestEntityTooLarge)

	env.storage.uploadErr = errors.New("connection refused")
	_, err = env.svc.UpdateAvatar(ctx, a, strings.NewReader("x"), "me.png", 1, "image/png")
	assertAppError(t, err, http.StatusServiceUnavailable)
	assert.Zero(t, env.storage.count())
}

func TestUpdateAvatar_NoStorage(t *testing.T) {
	env := newTestEnv(t)
	env.svc.storage = nil
	a := env.account(t, "kate@example.com", "password123")

	_, err := env.svc.UpdateAvatar(context.Background(), a, strings.NewReader("x"), "me.png", 1, "image/png")
	assertAppError(t, err, http.StatusServiceUnavailable)
}

func TestUpdateAvatar_CleanupFailureIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.account(t, "kate@example.com", "password123")
	a.AvatarURL = "https://elsewhere.example.com/old.png"
	env.storage.removeErr = errors.New("denied")

	url, err := env.svc.UpdateAvatar(ctx, a, strings.NewReader("x"), "me.png", 1, "image/png")
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

// --- Delete ---

func TestDelete_Cascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.account(t, "kate@example.com", "password123")
	other := env.account(t, "bob@example.com", "password123")

	url, err := env.svc.UpdateAvatar(ctx, a, strings.NewReader("x"), "me.png", 1, "image/png")
	require.NoError(t, err)
	a.AvatarURL = url

	require.NoError(t, env.sessions.Create(ctx, &models.Session{AccountID: a.ID, AccessToken: "at", RefreshToken: "rt"}))
	require.NoError(t, env.sessions.Create(ctx, &models.Session{AccountID: other.ID, AccessToken: "at2", RefreshToken: "rt2"}))
	require.NoError(t, env.water.Create(ctx, &models.WaterEntry{AccountID: a.ID, Amount: 250, Time: env.now}))
	require.NoError(t, env.water.Create(ctx, &models.WaterEntry{AccountID: other.ID, Amount: 250, Time: env.now}))

	require.NoError(t, env.svc.Delete(ctx, a))

	gone, err := env.accounts.FindOne(ctx, models.AccountFilter{ID: a.ID})
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Zero(t, env.sessions.CountByAccount(a.ID))
	assert.Equal(t, 1, env.sessions.CountByAccount(other.ID))
	assert.Zero(t, env.storage.count())

	day := models.DayRange(a.ID, env.now)
	entries, err := env.water.Find(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, entries)

	day.AccountID = other.ID
	entries, err = env.water.Find(ctx, day)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
