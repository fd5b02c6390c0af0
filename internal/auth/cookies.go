package auth

import (
	"net/http"
	"time"

	"github.com/ayush/water-tracker/backend/internal/models"
)

// Cookie names carrying the refresh credentials.
const (
	SessionIDCookie    = "sessionId"
	RefreshTokenCookie = "refreshToken"
)

// CookieConfig controls the attributes of the session cookies.
type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
}

// ParseSameSite maps "strict", "none" and "lax" onto http.SameSite, with
// lax as the default.
func ParseSameSite(s string) http.SameSite {
	switch s {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// setSessionCookies stores the session id and refresh token as HttpOnly
// cookies that expire together with the refresh token.
func (c CookieConfig) setSessionCookies(w http.ResponseWriter, s *models.Session) {
	for _, kv := range [][2]string{
		{SessionIDCookie, s.ID},
		{RefreshTokenCookie, s.RefreshToken},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     kv[0],
			Value:    kv[1],
			Path:     "/",
			Expires:  s.RefreshTokenValidUntil,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: c.SameSite,
		})
	}
}

// ClearSessionCookies expires both session cookies.
func (c CookieConfig) ClearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{SessionIDCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: c.SameSite,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
