package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/metflix/server/internal/auth"
	"github.com/metflix/server/internal/model"
	"github.com/rs/zerolog/log"
)

const msgInternal = "internal server error"

// envelope is the uniform response body: {success, message, ...payload}
type envelope map[string]any

// userResponse is the public projection of a user
type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	IsBlocked bool   `json:"isBlocked"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Username:  u.Username,
		Role:      string(u.Role),
		IsBlocked: u.IsBlocked,
	}
}

func respondJSON(w http.ResponseWriter, r *http.Request, statusCode int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func respondSuccess(w http.ResponseWriter, r *http.Request, statusCode int, message string, payload envelope) {
	body := envelope{"success": true, "message": message}
	for k, v := range payload {
		body[k] = v
	}
	respondJSON(w, r, statusCode, body)
}

// respondWithError sends the JSON error envelope
func respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	respondJSON(w, r, statusCode, envelope{"success": false, "message": message})
}

// errorResponder maps service errors to status codes in one place
type errorResponder struct {
	production bool
}

func (e errorResponder) respond(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusForError(err)
	if message != msgInternal {
		if status >= http.StatusInternalServerError {
			log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		}
		respondWithError(w, r, status, message)
		return
	}

	log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("unexpected error")
	body := envelope{"success": false, "message": msgInternal}
	if !e.production {
		body["error"] = err.Error()
	}
	respondJSON(w, r, status, body)
}

func statusForError(err error) (int, string) {
	var validation *auth.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, auth.ErrSignupPending):
		return http.StatusConflict, "Verification already pending for this email"
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, auth.ErrAccountBlocked):
		return http.StatusForbidden, "Account is blocked"
	case errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusUnauthorized, "Invalid password"
	case errors.Is(err, auth.ErrIncorrectOTP):
		return http.StatusBadRequest, "Incorrect OTP"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid or expired token."
	case errors.Is(err, auth.ErrResetTokenRequired):
		return http.StatusUnauthorized, "Reset token is required"
	case errors.Is(err, auth.ErrIdentityNotVerified):
		return http.StatusUnauthorized, "Identity could not be verified"
	case errors.Is(err, auth.ErrOtpIssue):
		return http.StatusInternalServerError, "Failed to create OTP"
	case errors.Is(err, auth.ErrPasswordResetFailed):
		return http.StatusInternalServerError, "Failed to reset password"
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst zeroed so
// field validation reports what is missing.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
