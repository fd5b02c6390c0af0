package water

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/middleware"
	"github.com/ayush/water-tracker/backend/internal/models"
	"github.com/ayush/water-tracker/backend/internal/web"
)

type dailyGoalResponse struct {
	DailyGoal int `json:"dailyGoal"`
}

// Handler holds the water HTTP handlers.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns the water routes behind gate, to be mounted under /water.
func (h *Handler) Routes(gate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(gate)
	r.Post("/entries", h.Add)
	r.With(middleware.ValidObjectID("id")).Patch("/entries/{id}", h.Update)
	r.With(middleware.ValidObjectID("id")).Delete("/entries/{id}", h.Delete)
	r.Get("/today", h.Today)
	r.Get("/month/{month}", h.Month)
	r.Patch("/daily-goal", h.UpdateDailyGoal)
	return r
}

func account(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	a, ok := middleware.AccountFrom(r.Context())
	if !ok {
		web.Error(w, r, apperror.NewUnauthorized(msgUserNotFound))
	}
	return a, ok
}

// Add logs a drink.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	a, ok := account(w, r)
	if !ok {
		return
	}
	var req models.WaterEntryRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.Error(w, r, err)
		return
	}

	entry, err := h.svc.Add(r.Context(), a, req)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.Respond(w, http.StatusCreated, "Successfully added a water entry!", entry)
}

// Update edits an entry.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := account(w, r)
	if !ok {
		return
	}
	var req models.WaterEntryPatchRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.Error(w, r, err)
		return
	}

	entry, err := h.svc.Update(r.Context(), a, chi.URLParam(r, "id"), req)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.Respond(w, http.StatusOK, "Successfully updated a water entry!", entry)
}

// Delete removes an entry.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := account(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), a, chi.URLParam(r, "id")); err != nil {
		web.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Today summarizes the current day, or the day given by ?date=YYYY-MM-DD.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	a, ok := account(w, r)
	if !ok {
		return
	}

	var (
		summary *DaySummary
		err     error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		day, perr := ParseDate(date)
		if perr != nil {
			web.Error(w, r, perr)
			return
		}
		summary, err = h.svc.Day(r.Context(), a, day)
	} else {
		summary, err = h.svc.Today(r.Context(), a)
	}
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.Respond(w, http.StatusOK, "Successfully found daily water data!", summary)
}

// Month reports per-day totals for /month/{YYYY-MM}.
func (h *Handler) Month(w http.ResponseWriter, r *http.Request) {
	a, ok := account(w, r)
	if !ok {
		return
	}
	year, month, err := ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		web.Error(w, r, err)
		return
	}

	stats, err := h.svc.Month(r.Context(), a, year, month)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.Respond(w, http.StatusOK, "Successfully found monthly water data!", stats)
}

// UpdateDailyGoal sets the account's daily goal.
func (h *Handler) UpdateDailyGoal(w http.ResponseWriter, r *http.Request) {
	a, ok := account(w, r)
	if !ok {
		return
	}
	var req models.DailyGoalRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.Error(w, r, err)
		return
	}

	goal, err := h.svc.UpdateDailyGoal(r.Context(), a, req.DailyGoal)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.Respond(w, http.StatusOK, "Successfully updated daily goal!", dailyGoalResponse{DailyGoal: goal})
}
