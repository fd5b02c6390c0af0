package memstore

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/models"
)

func TestAccountsUniqueEmail(t *testing.T) {
	ctx := context.Background()
	s := NewAccounts()

	first := &models.Account{Email: "kate@example.com"}
	require.NoError(t, s.Create(ctx, first))
	assert.True(t, primitive.IsValidObjectID(first.ID))

	err := s.Create(ctx, &models.Account{Email: "kate@example.com"})
	assert.True(t, apperror.Is(err, http.StatusConflict))

	other := &models.Account{Email: "bob@example.com"}
	require.NoError(t, s.Create(ctx, other))
	taken := "kate@example.com"
	_, err = s.FindOneAndUpdate(ctx, models.AccountFilter{ID: other.ID}, models.AccountUpdate{Email: &taken})
	assert.True(t, apperror.Is(err, http.StatusConflict))
}

func TestAccountsFindOneAndUpdateMissing(t *testing.T) {
	name := "Nobody"
	got, err := NewAccounts().FindOneAndUpdate(context.Background(),
		models.AccountFilter{ID: "nope"}, models.AccountUpdate{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionsRotateOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewSessions()

	old := &models.Session{AccountID: "a1", AccessToken: "at", RefreshToken: "rt"}
	require.NoError(t, s.Create(ctx, old))

	ok, err := s.Rotate(ctx, old.ID, "rt", &models.Session{AccountID: "a1", AccessToken: "at2", RefreshToken: "rt2"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Rotate(ctx, old.ID, "rt", &models.Session{AccountID: "a1", AccessToken: "at3", RefreshToken: "rt3"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.CountByAccount("a1"))
}

func TestWaterScopedToAccount(t *testing.T) {
	ctx := context.Background()
	s := NewWater()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	e := &models.WaterEntry{AccountID: "a1", Amount: 250, Time: day.Add(9 * time.Hour)}
	require.NoError(t, s.Create(ctx, e))

	amount := 300
	got, err := s.FindOneAndUpdate(ctx, "a2", e.ID, models.WaterEntryUpdate{Amount: &amount})
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err := s.DeleteOne(ctx, "a2", e.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	entries, err := s.Find(ctx, models.WaterRange{AccountID: "a1", From: day, To: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
