package models

import "time"

// Single-entry amount bounds, in milliliters.
const (
	MinEntryAmount = 50
	MaxEntryAmount = 5000
)

// WaterEntry is one logged drink.
type WaterEntry struct {
	ID        string    `json:"id"`
	AccountID string    `json:"-"`
	Amount    int       `json:"amount"`
	Time      time.Time `json:"time"`
	// DailyGoal is the account's goal when the entry was logged.
	DailyGoal int       `json:"dailyGoal"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WaterEntryUpdate is a partial update; nil fields are left untouched.
type WaterEntryUpdate struct {
	Amount *int
	Time   *time.Time
}

// WaterRange selects an account's entries with From <= Time < To.
type WaterRange struct {
	AccountID string
	From      time.Time
	To        time.Time
}

// Contains reports whether e falls inside r.
func (r WaterRange) Contains(e *WaterEntry) bool {
	return e.AccountID == r.AccountID && !e.Time.Before(r.From) && e.Time.Before(r.To)
}

// WaterEntryRequest is the JSON body for POST /water/entries.
type WaterEntryRequest struct {
	Amount int    `json:"amount" validate:"required,min=50,max=5000"`
	Time   string `json:"time"`
}

// WaterEntryPatchRequest is the JSON body for PATCH /water/entries/{id}.
type WaterEntryPatchRequest struct {
	Amount *int    `json:"amount" validate:"omitempty,min=50,max=5000"`
	Time   *string `json:"time"`
}

// DailyGoalRequest is the JSON body for PATCH /water/daily-goal.
type DailyGoalRequest struct {
	DailyGoal int `json:"dailyGoal" validate:"required,min=50,max=15000"`
}

// DayRange selects the account's entries on the UTC calendar day of t.
func DayRange(accountID string, t time.Time) WaterRange {
	y, m, d := t.UTC().Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return WaterRange{AccountID: accountID, From: from, To: from.AddDate(0, 0, 1)}
}

// MonthRange selects the account's entries in the given UTC month.
func MonthRange(accountID string, year int, month time.Month) WaterRange {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return WaterRange{AccountID: accountID, From: from, To: from.AddDate(0, 1, 0)}
}
