package store

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/models"
)

func TestAccountWhere(t *testing.T) {
	w, ok := accountWhere(models.AccountFilter{ID: "abc", Email: "kate@example.com"})
	assert.True(t, ok)
	assert.Equal(t, "id = $1 AND email = $2", w.String())
	assert.Equal(t, []any{"abc", "kate@example.com"}, w.args)

	_, ok = accountWhere(models.AccountFilter{})
	assert.False(t, ok)
}

func TestSessionWhere(t *testing.T) {
	w, ok := sessionWhere(models.SessionFilter{ID: "s1", RefreshToken: "rt"})
	assert.True(t, ok)
	assert.Equal(t, "id = $1 AND refresh_token = $2", w.String())

	_, ok = sessionWhere(models.SessionFilter{})
	assert.False(t, ok)
}

func TestAccountAssignmentsContinuePlaceholders(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	w, _ := accountWhere(models.AccountFilter{ID: "abc"})
	name := "Kate"
	goal := 1800

	set := accountAssignments(models.AccountUpdate{Name: &name, DailyGoal: &goal}, now, w)
	assert.Equal(t, "updated_at = $2, name = $3, daily_goal = $4", set)
	assert.Equal(t, "id = $1", w.String())
	assert.Equal(t, []any{"abc", now, "Kate", 1800}, w.args)
}

func TestClassifyPg(t *testing.T) {
	err := classifyPg(&pgconn.PgError{Code: uniqueViolation}, "insert account")
	assert.True(t, apperror.Is(err, http.StatusConflict))

	err = classifyPg(errors.New("conn reset"), "insert account")
	assert.False(t, apperror.Is(err, http.StatusConflict))
	assert.ErrorContains(t, err, "postgres insert account")
}
