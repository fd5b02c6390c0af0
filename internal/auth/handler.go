package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/water-tracker/backend/internal/models"
	"github.com/ayush/water-tracker/backend/internal/web"
)

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc     *Service
	cookies CookieConfig
}

func NewHandler(svc *Service, cookies CookieConfig) *Handler {
	return &Handler{svc: svc, cookies: cookies}
}

// Routes returns the public auth routes, to be mounted under /auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.Register)
	r.Post("/signin", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
	return r
}

// Register creates a new account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.Error(w, r, err)
		return
	}

	account, err := h.svc.Register(r.Context(), req)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.Respond(w, http.StatusCreated, "Successfully registered a user!", account)
}

// Login authenticates the credentials and starts a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.Error(w, r, err)
		return
	}

	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	h.cookies.setSessionCookies(w, session)
	web.Respond(w, http.StatusOK, "Successfully logged in a user!", tokenResponse{AccessToken: session.AccessToken})
}

// Refresh rotates the session named by the cookies.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Refresh(r.Context(),
		cookieValue(r, SessionIDCookie),
		cookieValue(r, RefreshTokenCookie),
	)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	h.cookies.setSessionCookies(w, session)
	web.Respond(w, http.StatusOK, "Successfully refreshed a session!", tokenResponse{AccessToken: session.AccessToken})
}

// Logout destroys the current session, if any, and clears the cookies.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), cookieValue(r, SessionIDCookie)); err != nil {
		web.Error(w, r, err)
		return
	}
	h.cookies.ClearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}
