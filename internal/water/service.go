// Package water records drinks and aggregates them per day and per month
// against the account's daily goal.
package water

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/models"
)

const (
	msgEntryNotFound   = "Water entry not found"
	msgUserNotFound    = "User not found"
	msgNothingToUpdate = "Nothing to update."
	msgInvalidTime     = "time must be an RFC 3339 timestamp or YYYY-MM-DDTHH:MM."
	msgInvalidDate     = "date must be formatted as YYYY-MM-DD."
	msgInvalidMonth    = "month must be formatted as YYYY-MM."
)

// Accepted layouts for an entry's time, tried in order. Layouts without a
// zone are read as UTC.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"}

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// EntryStore persists water entries. Lookups by id are scoped to the owning
// account and return nil, nil when nothing matches.
type EntryStore interface {
	Create(ctx context.Context, entry *models.WaterEntry) error
	FindOneAndUpdate(ctx context.Context, accountID, id string, update models.WaterEntryUpdate) (*models.WaterEntry, error)
	DeleteOne(ctx context.Context, accountID, id string) (bool, error)
	Find(ctx context.Context, r models.WaterRange) ([]models.WaterEntry, error)
	UpdateGoalInRange(ctx context.Context, r models.WaterRange, goal int) (int64, error)
}

// AccountStore updates the account's daily goal.
type AccountStore interface {
	FindOneAndUpdate(ctx context.Context, filter models.AccountFilter, update models.AccountUpdate) (*models.Account, error)
}

// DaySummary is the consumption of one day against the current goal.
type DaySummary struct {
	Date        string              `json:"date"`
	DailyGoal   int                 `json:"dailyGoal"`
	TotalAmount int                 `json:"totalAmount"`
	Progress    int                 `json:"progress"`
	Entries     []models.WaterEntry `json:"entries"`
}

// DayStats is one day of a monthly report, measured against the goal that
// was in force when the day's first entry was logged.
type DayStats struct {
	Date         string `json:"date"`
	DailyGoal    int    `json:"dailyGoal"`
	TotalAmount  int    `json:"totalAmount"`
	Percentage   int    `json:"percentage"`
	EntriesCount int    `json:"entriesCount"`
}

// Service implements the water operations.
type Service struct {
	entries  EntryStore
	accounts AccountStore
	now      func() time.Time
}

func NewService(entries EntryStore, accounts AccountStore) *Service {
	return &Service{entries: entries, accounts: accounts, now: time.Now}
}

// Add logs a drink. The entry keeps a copy of the account's current goal.
func (s *Service) Add(ctx context.Context, account *models.Account, req models.WaterEntryRequest) (*models.WaterEntry, error) {
	now := s.now().UTC()
	at := now
	if req.Time != "" {
		t, err := ParseTime(req.Time)
		if err != nil {
			return nil, err
		}
		at = t
	}

	goal := account.DailyGoal
	if goal == 0 {
		goal = models.DefaultDailyGoal
	}
	entry := &models.WaterEntry{
		AccountID: account.ID,
		Amount:    req.Amount,
		Time:      at,
		DailyGoal: goal,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating water entry: %w", err))
	}
	return entry, nil
}

// Update edits the amount or time of one of the account's entries.
func (s *Service) Update(ctx context.Context, account *models.Account, id string, req models.WaterEntryPatchRequest) (*models.WaterEntry, error) {
	var update models.WaterEntryUpdate
	update.Amount = req.Amount
	if req.Time != nil {
		t, err := ParseTime(*req.Time)
		if err != nil {
			return nil, err
		}
		update.Time = &t
	}
	if update.Amount == nil && update.Time == nil {
		return nil, apperror.NewValidation(msgNothingToUpdate)
	}

	entry, err := s.entries.FindOneAndUpdate(ctx, account.ID, id, update)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("updating water entry: %w", err))
	}
	if entry == nil {
		return nil, apperror.NewNotFound(msgEntryNotFound)
	}
	return entry, nil
}

// Delete removes one of the account's entries.
func (s *Service) Delete(ctx context.Context, account *models.Account, id string) error {
	deleted, err := s.entries.DeleteOne(ctx, account.ID, id)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting water entry: %w", err))
	}
	if !deleted {
		return apperror.NewNotFound(msgEntryNotFound)
	}
	return nil
}

// Day summarizes the UTC day containing day, newest entry first.
func (s *Service) Day(ctx context.Context, account *models.Account, day time.Time) (*DaySummary, error) {
	rng := models.DayRange(account.ID, day)
	entries, err := s.entries.Find(ctx, rng)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("finding water entries: %w", err))
	}

	total := 0
	for _, e := range entries {
		total += e.Amount
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Time.After(entries[j].Time) })
	if entries == nil {
		entries = []models.WaterEntry{}
	}

	return &DaySummary{
		Date:        rng.From.Format(dateLayout),
		DailyGoal:   account.DailyGoal,
		TotalAmount: total,
		Progress:    Progress(total, account.DailyGoal),
		Entries:     entries,
	}, nil
}

// Today is Day for the current UTC date.
func (s *Service) Today(ctx context.Context, account *models.Account) (*DaySummary, error) {
	return s.Day(ctx, account, s.now())
}

// Month reports per-day totals for the given month, days in ascending
// order. Days without entries are omitted.
func (s *Service) Month(ctx context.Context, account *models.Account, year int, month time.Month) ([]DayStats, error) {
	entries, err := s.entries.Find(ctx, models.MonthRange(account.ID, year, month))
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("finding water entries: %w", err))
	}

	byDay := make(map[string]*DayStats)
	var days []string
	for _, e := range entries {
		key := e.Time.UTC().Format(dateLayout)
		st, ok := byDay[key]
		if !ok {
			goal := e.DailyGoal
			if goal == 0 {
				goal = models.DefaultDailyGoal
			}
			st = &DayStats{Date: key, DailyGoal: goal}
			byDay[key] = st
			days = append(days, key)
		}
		st.TotalAmount += e.Amount
		st.EntriesCount++
	}

	sort.Strings(days)
	out := make([]DayStats, 0, len(days))
	for _, key := range days {
		st := byDay[key]
		st.Percentage = Progress(st.TotalAmount, st.DailyGoal)
		out = append(out, *st)
	}
	return out, nil
}

// UpdateDailyGoal stores the account's new goal and applies it to the
// entries already logged today.
func (s *Service) UpdateDailyGoal(ctx context.Context, account *models.Account, goal int) (int, error) {
	updated, err := s.accounts.FindOneAndUpdate(ctx, models.AccountFilter{ID: account.ID}, models.AccountUpdate{DailyGoal: &goal})
	if err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("updating daily goal: %w", err))
	}
	if updated == nil {
		return 0, apperror.NewNotFound(msgUserNotFound)
	}
	if _, err := s.entries.UpdateGoalInRange(ctx, models.DayRange(account.ID, s.now()), goal); err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("updating today's entries: %w", err))
	}
	return updated.DailyGoal, nil
}

// Progress is total as a whole percentage of goal, capped at 100.
func Progress(total, goal int) int {
	if goal <= 0 {
		return 0
	}
	p := int(math.Round(float64(total) / float64(goal) * 100))
	return min(p, 100)
}

// ParseTime reads an entry time in one of the accepted layouts.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperror.NewValidation(msgInvalidTime)
}

// ParseDate reads a YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperror.NewValidation(msgInvalidDate)
	}
	return t, nil
}

// ParseMonth reads a YYYY-MM month.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return 0, 0, apperror.NewValidation(msgInvalidMonth)
	}
	return t.Year(), t.Month(), nil
}
