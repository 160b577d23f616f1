package middleware

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	ForgotTokenCookie  = "forgotToken"
	SessionCookie      = "metflix.sid"

	SessionCookieMaxAge = 7 * 24 * time.Hour
	ForgotCookieMaxAge  = 15 * time.Minute
)

// Cookies writes http-only cookies with the flags required for the
// deployment: cross-site Secure cookies in production, Lax otherwise.
type Cookies struct {
	Production bool
}

// Set writes name=value with the given lifetime
func (c Cookies) Set(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	cookie := c.base(name)
	cookie.Value = value
	cookie.MaxAge = int(maxAge.Seconds())
	cookie.Expires = time.Now().Add(maxAge)
	http.SetCookie(w, cookie)
}

// Clear expires name in the client
func (c Cookies) Clear(w http.ResponseWriter, name string) {
	cookie := c.base(name)
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
}

func (c Cookies) base(name string) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if c.Production {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}
