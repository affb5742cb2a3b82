package handlers

import (
	"net/http"
	"time"

	"github.com/openboard/server/internal/middleware"
)

const guestCookieTTL = 24 * time.Hour

// Cookies writes the session and guest cookies with the process-wide policy.
// Secure is only set in production so local development over plain HTTP works.
type Cookies struct {
	Secure     bool
	SessionTTL time.Duration
}

// SetSession attaches the session token cookie. SameSite=None because the
// frontend is served from a different origin.
func (c Cookies) SetSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearSession expires the session cookie.
func (c Cookies) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}

// SetGuest attaches the guest identifier cookie. Deliberately not HttpOnly:
// the frontend reads it to know a guest session exists.
func (c Cookies) SetGuest(w http.ResponseWriter, key string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.GuestCookieName,
		Value:    key,
		Path:     "/",
		MaxAge:   int(guestCookieTTL / time.Second),
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
