package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionExpiryBoundaries(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		until          time.Time
		accessExpired  bool
		refreshExpired bool
	}{
		{"one hour ahead", now.Add(time.Hour), false, false},
		{"exactly now", now, true, false},
		{"one millisecond ago", now.Add(-time.Millisecond), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{AccessTokenValidUntil: tt.until, RefreshTokenValidUntil: tt.until}
			assert.Equal(t, tt.accessExpired, s.AccessExpired(now))
			assert.Equal(t, tt.refreshExpired, s.RefreshExpired(now))
		})
	}
}

func TestSessionFilterMatches(t *testing.T) {
	s := &Session{ID: "s1", AccountID: "a1", AccessToken: "at", RefreshToken: "rt"}

	assert.False(t, SessionFilter{}.Matches(s), "empty filter matches nothing")
	assert.True(t, SessionFilter{ID: "s1"}.Matches(s))
	assert.True(t, SessionFilter{ID: "s1", RefreshToken: "rt"}.Matches(s))
	assert.False(t, SessionFilter{ID: "s1", RefreshToken: "other"}.Matches(s))
	assert.False(t, SessionFilter{AccessToken: "rt"}.Matches(s))
	assert.True(t, SessionFilter{AccountID: "a1"}.Matches(s))
	assert.False(t, SessionFilter{ID: "s1"}.Matches(nil))
}

func TestAccountDefaultsAndUpdate(t *testing.T) {
	a := &Account{Email: "kate@example.com"}
	a.ApplyDefaults()

	assert.Equal(t, "kate@example.com", a.Name)
	assert.Equal(t, GenderWoman, a.Gender)
	assert.Equal(t, DefaultDailyGoal, a.DailyGoal)

	name := "Kate"
	goal := 2500
	u := AccountUpdate{Name: &name, DailyGoal: &goal}
	assert.False(t, u.Empty())
	u.Apply(a)
	assert.Equal(t, "Kate", a.Name)
	assert.Equal(t, 2500, a.DailyGoal)
	assert.Equal(t, "kate@example.com", a.Email)
	assert.True(t, AccountUpdate{}.Empty())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "kate@example.com", NormalizeEmail("  Kate@Example.COM "))
}

func TestGenderValid(t *testing.T) {
	assert.True(t, GenderMan.Valid())
	assert.True(t, GenderWoman.Valid())
	assert.False(t, Gender("other").Valid())
}

func TestWaterRangeContains(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	r := WaterRange{AccountID: "a1", From: from, To: from.AddDate(0, 1, 0)}

	assert.True(t, r.Contains(&WaterEntry{AccountID: "a1", Time: from}))
	assert.False(t, r.Contains(&WaterEntry{AccountID: "a1", Time: from.AddDate(0, 1, 0)}))
	assert.False(t, r.Contains(&WaterEntry{AccountID: "a2", Time: from.Add(time.Hour)}))
}

func TestDayAndMonthRange(t *testing.T) {
	at := time.Date(2024, 2, 29, 23, 30, 0, 0, time.FixedZone("plus2", 2*60*60))

	day := DayRange("acc", at)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), day.From)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), day.To)

	month := MonthRange("acc", 2024, time.December)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), month.From)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), month.To)
}
