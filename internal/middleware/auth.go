package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/metflix/server/internal/auth"
	"github.com/metflix/server/internal/model"
	"github.com/metflix/server/internal/repo"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	userKey  contextKey = "user"
	scopeKey contextKey = "favorites_scope"
)

const (
	msgAccessForbidden    = "You do not have permission to perform this action."
	msgInvalidAccessToken = "Unauthorized access. Please authenticate again."
)

// RequireUser validates the accessToken cookie, loads the user, and attaches
// it to the context. Only the listed roles pass; blocked accounts get 403.
func RequireUser(jwtService *auth.JWTService, userRepo repo.UserRepo, roles ...model.Role) func(http.Handler) http.Handler {
	if len(roles) == 0 {
		roles = []model.Role{model.RoleUser, model.RoleAdmin}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AccessTokenCookie)
			if err != nil || cookie.Value == "" {
				respondWithError(w, http.StatusUnauthorized, msgAccessForbidden)
				return
			}

			claims, err := jwtService.VerifyToken(cookie.Value, auth.PurposeAccess)
			if err != nil {
				log.Ctx(r.Context()).Debug().Err(err).Msg("access token rejected")
				respondWithError(w, http.StatusUnauthorized, msgInvalidAccessToken)
				return
			}
			if !slices.Contains(roles, claims.Role) {
				respondWithError(w, http.StatusUnauthorized, msgAccessForbidden)
				return
			}

			user, err := userRepo.GetByID(r.Context(), claims.UserID)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, msgInvalidAccessToken)
				return
			}
			if user.IsBlocked {
				respondWithError(w, http.StatusForbidden, "Account is blocked")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, &user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser returns the user attached to the request context (set by RequireUser)
func GetUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// respondWithError sends the JSON error envelope
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
