package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/metflix/server/internal/auth"
	"github.com/metflix/server/internal/logger"
	"github.com/metflix/server/internal/middleware"
	"github.com/rs/zerolog/log"
)

const verifyTokenHeader = "the-verify-token"

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *auth.AuthService
	cookies     middleware.Cookies
	errs        errorResponder
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.AuthService, production bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     middleware.Cookies{Production: production},
		errs:        errorResponder{production: production},
	}
}

// signupRequest is the request body for POST /api/user/signup
type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// emailRequest is the body of the endpoints that only take an email
type emailRequest struct {
	Email string `json:"email"`
}

// createUserRequest is the request body for POST /api/user/createUser
type createUserRequest struct {
	OTP string `json:"otp"`
}

// loginRequest is the request body for POST /api/user/login
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// verifyResetOtpRequest is the request body for POST /api/user/verifyResetOtp
type verifyResetOtpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// resetPasswordRequest is the request body for POST /api/user/resetPassword
type resetPasswordRequest struct {
	Password string `json:"password"`
}

// googleLoginRequest is the request body for POST /api/user/googleLogin
type googleLoginRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Credential string `json:"credential"`
}

// HandleSignup handles POST /api/user/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.authService.Signup(r.Context(), auth.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}

	log.Ctx(r.Context()).Info().Str("email", logger.MaskEmail(req.Email)).Msg("signup pending verification")
	respondSuccess(w, r, http.StatusCreated, "Signup successful", envelope{"token": token})
}

// HandleResendOtp handles POST /api/user/resendOtp
func (h *AuthHandler) HandleResendOtp(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authService.ResendOtp(r.Context(), req.Email); err != nil {
		h.errs.respond(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, "OTP sent successfully", nil)
}

// HandleCreateUser handles POST /api/user/createUser. The pending-signup
// token travels in the the-verify-token header.
func (h *AuthHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.OTP) == "" {
		respondWithError(w, r, http.StatusBadRequest, "OTP is required")
		return
	}
	token := strings.TrimSpace(r.Header.Get(verifyTokenHeader))

	user, session, err := h.authService.CreateUser(r.Context(), token, req.OTP)
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}

	h.setSession(w, session)
	respondSuccess(w, r, http.StatusCreated, "User created successfully", envelope{"user": toUserResponse(user)})
}

// HandleLogin handles POST /api/user/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	user, session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrUserNotFound) {
		respondWithError(w, r, http.StatusNotFound, "user is not exist with this email")
		return
	}
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) || errors.Is(err, auth.ErrAccountBlocked) {
			log.Ctx(r.Context()).Info().Err(err).Str("email", logger.MaskEmail(req.Email)).Msg("login rejected")
		}
		h.errs.respond(w, r, err)
		return
	}

	h.setSession(w, session)
	respondSuccess(w, r, http.StatusOK, "Login successful", envelope{"user": toUserResponse(user)})
}

// HandleGoogleLogin handles POST /api/user/googleLogin
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	user, session, err := h.authService.FederatedLogin(r.Context(), auth.IdentityAssertion{
		Name:       req.Name,
		Email:      req.Email,
		Credential: req.Credential,
	})
	if err != nil {
		if errors.Is(err, auth.ErrIdentityNotVerified) {
			log.Ctx(r.Context()).Warn().Err(err).Str("email", logger.MaskEmail(req.Email)).Msg("federated login rejected")
		}
		h.errs.respond(w, r, err)
		return
	}

	h.setSession(w, session)
	respondSuccess(w, r, http.StatusOK, "Google login successful", envelope{"user": toUserResponse(user)})
}

// HandleLogout handles POST /api/user/logout. It always succeeds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w, middleware.AccessTokenCookie)
	h.cookies.Clear(w, middleware.RefreshTokenCookie)
	respondSuccess(w, r, http.StatusOK, "Logout successful", nil)
}

// HandleVerifyEmail handles POST /api/user/verifyEmail, the first step of
// the forgot-password flow
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authService.VerifyEmail(r.Context(), req.Email)
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, "Redirecting to OTP page", envelope{
		"data": map[string]string{"email": user.Email, "username": user.Username},
	})
}

// HandleVerifyResetOtp handles POST /api/user/verifyResetOtp
func (h *AuthHandler) HandleVerifyResetOtp(w http.ResponseWriter, r *http.Request) {
	var req verifyResetOtpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.authService.VerifyResetOtp(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}

	h.cookies.Set(w, middleware.ForgotTokenCookie, token, middleware.ForgotCookieMaxAge)
	respondSuccess(w, r, http.StatusOK, "Redirecting to password reset page", nil)
}

// HandleForgotResendOtp handles POST /api/user/forgotResendOtp
func (h *AuthHandler) HandleForgotResendOtp(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authService.ForgotResendOtp(r.Context(), req.Email); err != nil {
		h.errs.respond(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, "OTP sent successfully", nil)
}

// HandleResetPassword handles POST /api/user/resetPassword. The reset token
// comes from the forgotToken cookie.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	var token string
	if cookie, err := r.Cookie(middleware.ForgotTokenCookie); err == nil {
		token = cookie.Value
	}

	if err := h.authService.ResetPassword(r.Context(), token, req.Password); err != nil {
		h.errs.respond(w, r, err)
		return
	}

	h.cookies.Clear(w, middleware.ForgotTokenCookie)
	respondSuccess(w, r, http.StatusOK, "Password reset successful", nil)
}

// HandleRefresh handles POST /api/user/refresh: a valid refreshToken cookie
// buys a new accessToken cookie
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		respondWithError(w, r, http.StatusUnauthorized, "Unauthorized access. Session verification required.")
		return
	}

	user, accessToken, err := h.authService.Refresh(r.Context(), cookie.Value)
	if errors.Is(err, auth.ErrInvalidToken) {
		respondWithError(w, r, http.StatusUnauthorized, "Session verification failed. Please log in again.")
		return
	}
	if err != nil {
		h.errs.respond(w, r, err)
		return
	}

	h.cookies.Set(w, middleware.AccessTokenCookie, accessToken, middleware.SessionCookieMaxAge)
	respondSuccess(w, r, http.StatusOK, "Token refreshed", envelope{"user": toUserResponse(user)})
}

// HandleMe handles GET /api/user/me (protected). Returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondSuccess(w, r, http.StatusOK, "User retrieved successfully", envelope{"user": toUserResponse(*user)})
}

func (h *AuthHandler) setSession(w http.ResponseWriter, s auth.Session) {
	h.cookies.Set(w, middleware.AccessTokenCookie, s.AccessToken, middleware.SessionCookieMaxAge)
	h.cookies.Set(w, middleware.RefreshTokenCookie, s.RefreshToken, middleware.SessionCookieMaxAge)
}
