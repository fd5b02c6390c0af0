// Package memstore keeps accounts, sessions and water entries in process
// memory. It backs DATA_BACKEND=memory for local runs and serves as the
// store fake in tests. Ids are generated as Mongo ObjectID hex strings so
// that they pass the same validation as ids from the Mongo backend.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/models"
)

func newID() string {
	return primitive.NewObjectID().Hex()
}

// Accounts is an in-memory account store with a unique email constraint.
type Accounts struct {
	mu   sync.RWMutex
	byID map[string]models.Account
}

func NewAccounts() *Accounts {
	return &Accounts{byID: make(map[string]models.Account)}
}

func (s *Accounts) FindOne(_ context.Context, filter models.AccountFilter) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(filter), nil
}

func (s *Accounts) find(filter models.AccountFilter) *models.Account {
	for _, a := range s.byID {
		if filter.Matches(&a) {
			return &a
		}
	}
	return nil
}

func (s *Accounts) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(models.AccountFilter{Email: account.Email}) != nil {
		return apperror.NewConflict("Email in use")
	}
	account.ID = newID()
	s.byID[account.ID] = *account
	return nil
}

func (s *Accounts) FindOneAndUpdate(_ context.Context, filter models.AccountFilter, update models.AccountUpdate) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.find(filter)
	if current == nil {
		return nil, nil
	}
	if update.Email != nil && *update.Email != current.Email {
		if s.find(models.AccountFilter{Email: *update.Email}) != nil {
			return nil, apperror.NewConflict("Email in use")
		}
	}
	update.Apply(current)
	current.UpdatedAt = time.Now().UTC()
	s.byID[current.ID] = *current
	return current, nil
}

func (s *Accounts) DeleteOne(_ context.Context, filter models.AccountFilter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.find(filter)
	if current == nil {
		return false, nil
	}
	delete(s.byID, current.ID)
	return true, nil
}

// Sessions is an in-memory session store.
type Sessions struct {
	mu   sync.RWMutex
	byID map[string]models.Session
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]models.Session)}
}

func (s *Sessions) FindOne(_ context.Context, filter models.SessionFilter) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(filter), nil
}

func (s *Sessions) find(filter models.SessionFilter) *models.Session {
	if filter.ID != "" {
		sess, ok := s.byID[filter.ID]
		if !ok || !filter.Matches(&sess) {
			return nil
		}
		return &sess
	}
	for _, sess := range s.byID {
		if filter.Matches(&sess) {
			return &sess
		}
	}
	return nil
}

func (s *Sessions) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.ID = newID()
	s.byID[session.ID] = *session
	return nil
}

func (s *Sessions) DeleteOne(_ context.Context, filter models.SessionFilter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.find(filter)
	if sess == nil {
		return false, nil
	}
	delete(s.byID, sess.ID)
	return true, nil
}

func (s *Sessions) DeleteByAccount(_ context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.byID {
		if sess.AccountID == accountID {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

func (s *Sessions) Rotate(_ context.Context, id, refreshToken string, next *models.Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(models.SessionFilter{ID: id, RefreshToken: refreshToken}) == nil {
		return false, nil
	}
	delete(s.byID, id)
	next.ID = newID()
	s.byID[next.ID] = *next
	return true, nil
}

// CountByAccount returns the number of sessions owned by accountID.
func (s *Sessions) CountByAccount(accountID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sess := range s.byID {
		if sess.AccountID == accountID {
			n++
		}
	}
	return n
}

// Water is an in-memory water entry store.
type Water struct {
	mu   sync.RWMutex
	byID map[string]models.WaterEntry
}

func NewWater() *Water {
	return &Water{byID: make(map[string]models.WaterEntry)}
}

func (s *Water) Create(_ context.Context, entry *models.WaterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = newID()
	s.byID[entry.ID] = *entry
	return nil
}

func (s *Water) FindOneAndUpdate(_ context.Context, accountID, id string, update models.WaterEntryUpdate) (*models.WaterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok || e.AccountID != accountID {
		return nil, nil
	}
	if update.Amount != nil {
		e.Amount = *update.Amount
	}
	if update.Time != nil {
		e.Time = *update.Time
	}
	e.UpdatedAt = time.Now().UTC()
	s.byID[id] = e
	return &e, nil
}

func (s *Water) DeleteOne(_ context.Context, accountID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok || e.AccountID != accountID {
		return false, nil
	}
	delete(s.byID, id)
	return true, nil
}

func (s *Water) Find(_ context.Context, rng models.WaterRange) ([]models.WaterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.WaterEntry
	for _, e := range s.byID {
		if rng.Contains(&e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (s *Water) UpdateGoalInRange(_ context.Context, rng models.WaterRange, goal int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.byID {
		if rng.Contains(&e) {
			e.DailyGoal = goal
			s.byID[id] = e
			n++
		}
	}
	return n, nil
}

func (s *Water) DeleteByAccount(_ context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.byID {
		if e.AccountID == accountID {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}
