package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ayush/water-tracker/backend/internal/apperror"
	"github.com/ayush/water-tracker/backend/internal/auth"
	"github.com/ayush/water-tracker/backend/internal/models"
	"github.com/ayush/water-tracker/backend/internal/web"
)

// Rejection messages, one per guard.
const (
	msgMissingHeader   = "Authorization header not found."
	msgMalformedHeader = "Authorization header must be Bearer type."
	msgSessionNotFound = auth.MsgSessionNotFound
	msgAccessExpired   = "Access token expired."
	msgUserNotFound    = "User not found."
)

// Authenticator resolves access tokens to sessions and sessions to accounts.
// Both lookups return nil, nil when nothing matches.
type Authenticator interface {
	GetSession(ctx context.Context, filter models.SessionFilter) (*models.Session, error)
	GetUser(ctx context.Context, filter models.AccountFilter) (*models.Account, error)
}

type accountKey struct{}

// WithAccount returns a copy of ctx carrying the authenticated account.
func WithAccount(ctx context.Context, account *models.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// AccountFrom returns the account stored by RequireAuth.
func AccountFrom(ctx context.Context) (*models.Account, bool) {
	account, ok := ctx.Value(accountKey{}).(*models.Account)
	return account, ok && account != nil
}

// RequireAuth is middleware that resolves the bearer token to a session and
// the session to an account, and injects the account into the request
// context. Any failed step ends the request with 401.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return requireAuth(authn, time.Now)
}

func requireAuth(authn Authenticator, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reject := func(message, reason string) {
				slog.WarnContext(r.Context(), "authentication rejected",
					slog.String("reason", reason),
					slog.String("path", r.URL.Path),
					slog.String("request_id", chimw.GetReqID(r.Context())),
				)
				web.Error(w, r, apperror.NewUnauthorized(message))
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				reject(msgMissingHeader, "missing credentials")
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			token = strings.TrimSpace(token)
			if !ok || scheme != "Bearer" || token == "" {
				reject(msgMalformedHeader, "malformed credential")
				return
			}

			session, err := authn.GetSession(r.Context(), models.SessionFilter{AccessToken: token})
			if err != nil {
				web.Error(w, r, apperror.NewInternal(fmt.Errorf("finding session: %w", err)))
				return
			}
			if session == nil {
				reject(msgSessionNotFound, "session not found")
				return
			}
			if session.AccessExpired(now()) {
				reject(msgAccessExpired, "access token expired")
				return
			}

			account, err := authn.GetUser(r.Context(), models.AccountFilter{ID: session.AccountID})
			if err != nil {
				web.Error(w, r, apperror.NewInternal(fmt.Errorf("finding account: %w", err)))
				return
			}
			if account == nil {
				reject(msgUserNotFound, "user not found")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}
