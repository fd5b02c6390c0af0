package users

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/auth"
	"github.com/ayush/water-tracker/backend/internal/middleware"
	"github.com/ayush/water-tracker/backend/internal/models"
	"github.com/ayush/water-tracker/backend/internal/web"
)

// avatarField is the multipart form field carrying the avatar file.
const avatarField = "avatar"

// multipartOverhead is allowed on top of the file size for the rest of the
// multipart body.
const multipartOverhead = 64 << 10

type avatarResponse struct {
	AvatarURL string `json:"avatarURL"`
}

// Handler holds the profile HTTP handlers.
type Handler struct {
	svc     *Service
	cookies auth.CookieConfig
}

func NewHandler(svc *Service, cookies auth.CookieConfig) *Handler {
	return &Handler{svc: svc, cookies: cookies}
}

// Routes returns the profile routes behind gate, to be mounted under /users.
func (h *Handler) Routes(gate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(gate)
	r.Get("/current", h.Current)
	r.Patch("/current", h.Update)
	r.Patch("/avatar", h.UpdateAvatar)
	r.Delete("/current", h.Delete)
	return r
}

// Current returns the authenticated account.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFrom(r.Context())
	if !ok {
		web.Error(w, r, apperror.NewUnauthorized(msgUserNotFound))
		return
	}
	web.Respond(w, http.StatusOK, "Successfully found user!", account)
}

// Update edits profile fields and optionally changes the password.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFrom(r.Context())
	if !ok {
		web.Error(w, r, apperror.NewUnauthorized(msgUserNotFound))
		return
	}
	var req models.UpdateProfileRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.Error(w, r, err)
		return
	}

	updated, err := h.svc.UpdateProfile(r.Context(), account, req)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.Respond(w, http.StatusOK, "Successfully updated user!", updated)
}

// UpdateAvatar accepts a multipart upload in the "avatar" field.
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFrom(r.Context())
	if !ok {
		web.Error(w, r, apperror.NewUnauthorized(msgUserNotFound))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.svc.maxAvatarBytes+multipartOverhead)
	file, header, err := r.FormFile(avatarField)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			web.Error(w, r, apperror.NewTooLarge(msgAvatarTooLarge))
		default:
			web.Error(w, r, apperror.NewValidation("avatar file is required."))
		}
		return
	}
	defer file.Close()

	url, err := h.svc.UpdateAvatar(r.Context(), account, file, header.Filename, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.Respond(w, http.StatusOK, "Successfully updated avatar!", avatarResponse{AvatarURL: url})
}

// Delete removes the account and clears the session cookies.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFrom(r.Context())
	if !ok {
		web.Error(w, r, apperror.NewUnauthorized(msgUserNotFound))
		return
	}
	if err := h.svc.Delete(r.Context(), account); err != nil {
		web.Error(w, r, err)
		return
	}
	h.cookies.ClearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}
