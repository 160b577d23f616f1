package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/metflix/server/internal/auth"
	"github.com/metflix/server/internal/http/handlers"
	"github.com/metflix/server/internal/middleware"
	"github.com/metflix/server/internal/repo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Deps carries what the router needs to build its middleware chain
type Deps struct {
	AuthHandler  *handlers.AuthHandler
	MovieHandler *handlers.MovieHandler
	JWTService   *auth.JWTService
	UserRepo     repo.UserRepo
	Logger       zerolog.Logger
	CORSOrigins  []string
	Production   bool
	// OTP endpoints allow OTPRateLimit requests per OTPRateWindow per IP.
	OTPRateLimit  int
	OTPRateWindow time.Duration
}

// NewRouter creates a new HTTP router with all routes configured. ctx bounds
// the background sweep of the rate limiters.
func NewRouter(ctx context.Context, d Deps) *chi.Mux {
	if d.OTPRateLimit <= 0 {
		d.OTPRateLimit = 10
	}
	if d.OTPRateWindow <= 0 {
		d.OTPRateWindow = 10 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(d.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("req_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID", "the-verify-token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.HandleHealth)

	otpLimiter := middleware.NewRateLimiter(ctx, d.OTPRateWindow, d.OTPRateLimit)
	limitOTP := middleware.RateLimit(otpLimiter, middleware.IPKey)

	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			a := d.AuthHandler
			r.With(limitOTP).Post("/signup", a.HandleSignup)
			r.With(limitOTP).Post("/resendOtp", a.HandleResendOtp)
			r.With(limitOTP).Post("/createUser", a.HandleCreateUser)
			r.Post("/login", a.HandleLogin)
			r.Post("/googleLogin", a.HandleGoogleLogin)
			r.Post("/logout", a.HandleLogout)
			r.With(limitOTP).Post("/verifyEmail", a.HandleVerifyEmail)
			r.With(limitOTP).Post("/verifyResetOtp", a.HandleVerifyResetOtp)
			r.With(limitOTP).Post("/forgotResendOtp", a.HandleForgotResendOtp)
			r.Post("/resetPassword", a.HandleResetPassword)
			r.Post("/refresh", a.HandleRefresh)

			// Protected routes (require a valid access cookie)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser(d.JWTService, d.UserRepo))
				r.Get("/me", a.HandleMe)
			})
		})

		r.Route("/movies", func(r chi.Router) {
			r.Use(middleware.FavoritesScope(d.JWTService, middleware.Cookies{Production: d.Production}))
			m := d.MovieHandler
			r.Get("/search", m.HandleSearch)
			r.Get("/popular", m.HandlePopular)
			r.Get("/favourites", m.HandleFavorites)
			r.Post("/toggleFavourite", m.HandleToggleFavorite)
		})

		r.NotFound(handlers.HandleAPINotFound)
		r.MethodNotAllowed(handlers.HandleAPINotFound)
	})

	return r
}
