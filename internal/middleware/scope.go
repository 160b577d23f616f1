package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/metflix/server/internal/auth"
)

var clientIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// FavoritesScope resolves whose favorites a request operates on and attaches
// the scope key to the context. In order of preference:
//
//	user:<id>     a valid accessToken cookie
//	client:<id>   the X-User-ID header
//	session:<id>  the metflix.sid cookie, issued when missing
func FavoritesScope(jwtService *auth.JWTService, cookies Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, ok := userScope(jwtService, r)
			if !ok {
				if header, present := r.Header[http.CanonicalHeaderKey("X-User-ID")]; present {
					id := strings.TrimSpace(strings.Join(header, ""))
					if id == "" {
						respondWithError(w, http.StatusBadRequest, "User ID is required in X-User-ID header")
						return
					}
					if !clientIDPattern.MatchString(id) {
						respondWithError(w, http.StatusBadRequest, "Invalid User ID format")
						return
					}
					scope = "client:" + id
				} else {
					scope = "session:" + sessionID(w, r, cookies)
				}
			}

			ctx := context.WithValue(r.Context(), scopeKey, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetScope returns the favorites scope attached by FavoritesScope
func GetScope(ctx context.Context) (string, bool) {
	scope, ok := ctx.Value(scopeKey).(string)
	return scope, ok && scope != ""
}

func userScope(jwtService *auth.JWTService, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	claims, err := jwtService.VerifyToken(cookie.Value, auth.PurposeAccess)
	if err != nil || claims.UserID == "" {
		return "", false
	}
	return "user:" + claims.UserID, true
}

func sessionID(w http.ResponseWriter, r *http.Request, cookies Cookies) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	cookies.Set(w, SessionCookie, id, SessionCookieMaxAge)
	return id
}
