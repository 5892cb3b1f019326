package httpserver

import (
	"net/http"
	"time"

	"github.com/Skotchmaster/restaurant/services/auth/internal/middleware"
)

// CookieConfig describes the refresh cookie. It is only ever sent back to
// the refresh endpoint.
type CookieConfig struct {
	Path   string
	MaxAge time.Duration
}

func (cc CookieConfig) refreshCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.RefreshCookieName,
		Value:    token,
		Path:     cc.Path,
		Expires:  expires,
		MaxAge:   int(cc.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (cc CookieConfig) clearedRefreshCookie() *http.Cookie {
	return &http.Cookie{
		Name:     middleware.RefreshCookieName,
		Value:    "",
		Path:     cc.Path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
