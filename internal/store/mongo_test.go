package store

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/models"
)

func TestAccountQuery(t *testing.T) {
	oid := primitive.NewObjectID()

	q, ok := accountQuery(models.AccountFilter{ID: oid.Hex(), Email: "kate@example.com"})
	assert.True(t, ok)
	assert.Equal(t, bson.M{"_id": oid, "email": "kate@example.com"}, q)

	_, ok = accountQuery(models.AccountFilter{ID: "not-hex"})
	assert.False(t, ok, "malformed ids can never match")

	_, ok = accountQuery(models.AccountFilter{})
	assert.False(t, ok, "empty filter matches nothing")
}

func TestSessionQuery(t *testing.T) {
	oid := primitive.NewObjectID()

	q, ok := sessionQuery(models.SessionFilter{ID: oid.Hex(), RefreshToken: "rt"})
	assert.True(t, ok)
	assert.Equal(t, bson.M{"_id": oid, "refreshToken": "rt"}, q)

	q, ok = sessionQuery(models.SessionFilter{AccessToken: "at", AccountID: "acc"})
	assert.True(t, ok)
	assert.Equal(t, bson.M{"accessToken": "at", "accountId": "acc"}, q)

	_, ok = sessionQuery(models.SessionFilter{ID: "xyz"})
	assert.False(t, ok)
	_, ok = sessionQuery(models.SessionFilter{})
	assert.False(t, ok)
}

func TestAccountSet(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	name := "Kate"
	gender := models.GenderMan
	goal := 2500

	set := accountSet(models.AccountUpdate{Name: &name, Gender: &gender, DailyGoal: &goal}, now)
	assert.Equal(t, bson.M{
		"updatedAt": now,
		"name":      "Kate",
		"gender":    "man",
		"dailyGoal": 2500,
	}, set)
}

func TestEntrySetAndRange(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	amount := 300
	assert.Equal(t, bson.M{"updatedAt": now, "amount": 300},
		entrySet(models.WaterEntryUpdate{Amount: &amount}, now))

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	assert.Equal(t, bson.M{
		"accountId": "acc",
		"time":      bson.M{"$gte": from, "$lt": to},
	}, rangeQuery(models.WaterRange{AccountID: "acc", From: from, To: to}))
}

func TestClassifyWrite(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	err := classifyWrite(dup, "insert account")
	assert.True(t, apperror.Is(err, http.StatusConflict))
	assert.Equal(t, "Email in use", apperror.SafeMessage(err))

	other := classifyWrite(errors.New("boom"), "insert account")
	assert.False(t, apperror.Is(other, http.StatusConflict))
	assert.ErrorContains(t, other, "mongo insert account")
}

func TestObjectURLRoundTrip(t *testing.T) {
	url := objectURL("http://localhost:9000/", "avatars", "avatars/acc/file.png")
	assert.Equal(t, "http://localhost:9000/avatars/avatars/acc/file.png", url)

	key, ok := objectKey("http://localhost:9000", "avatars", url)
	assert.True(t, ok)
	assert.Equal(t, "avatars/acc/file.png", key)

	_, ok = objectKey("http://localhost:9000", "avatars", "https://cdn.example.com/a.png")
	assert.False(t, ok)
	_, ok = objectKey("http://localhost:9000", "avatars", "")
	assert.False(t, ok)
}
