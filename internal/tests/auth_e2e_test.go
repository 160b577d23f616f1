package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEmail = "alice@example.com"

func cookieNamed(client *http.Client, base, name string) *http.Cookie {
	u, _ := url.Parse(base)
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// TestAuthE2E runs the complete flow over in-memory stores: health, signup,
// createUser, me, login, refresh, logout, forgot password, federated login.
func TestAuthE2E(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	base := ts.Server.URL

	t.Run("A_Health", func(t *testing.T) {
		resp, err := http.Get(base + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, "GET /health must return 200")
		var body map[string]bool
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body["ok"])
	})

	t.Run("B_UnknownAPIRoute", func(t *testing.T) {
		status, res := ts.call(t, ts.newClient(t), http.MethodGet, "/api/nope", nil, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.False(t, res.Success)
		assert.Equal(t, "API route not found", res.Message)
	})

	t.Run("C_SignupCreateUserMe", func(t *testing.T) {
		client := ts.newClient(t)

		status, res := ts.call(t, client, http.MethodPost, "/api/user/signup", map[string]string{
			"email": testEmail, "password": "pw123456", "username": "alice",
		}, nil)
		require.Equal(t, http.StatusCreated, status, res.Message)
		require.NotEmpty(t, res.Token)
		code := ts.Mailer.LastCode(testEmail)
		require.Len(t, code, 6)

		status, res = ts.call(t, client, http.MethodPost, "/api/user/createUser", map[string]string{"otp": code},
			map[string]string{"the-verify-token": res.Token})
		require.Equal(t, http.StatusCreated, status, res.Message)
		require.NotNil(t, res.User)
		assert.Equal(t, testEmail, res.User.Email)
		assert.Equal(t, "USER", res.User.Role)
		assert.NotNil(t, cookieNamed(client, base, "accessToken"))
		assert.NotNil(t, cookieNamed(client, base, "refreshToken"))

		status, res = ts.call(t, client, http.MethodGet, "/api/user/me", nil, nil)
		require.Equal(t, http.StatusOK, status, res.Message)
		assert.Equal(t, testEmail, res.User.Email)
	})

	t.Run("D_SignupConflict", func(t *testing.T) {
		status, res := ts.call(t, ts.newClient(t), http.MethodPost, "/api/user/signup", map[string]string{
			"email": testEmail, "password": "x", "username": "y",
		}, nil)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "User already exists", res.Message)
	})

	t.Run("D_SignupPendingConflict", func(t *testing.T) {
		const email = "carol@example.com"
		client := ts.newClient(t)
		body := map[string]string{"email": email, "password": "pw", "username": "carol"}

		status, first := ts.call(t, client, http.MethodPost, "/api/user/signup", body, nil)
		require.Equal(t, http.StatusCreated, status, first.Message)

		status, res := ts.call(t, client, http.MethodPost, "/api/user/signup", body, nil)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "Verification already pending for this email", res.Message)
		assert.Equal(t, 1, ts.Mailer.Sent(email), "a rejected signup sends no code")

		status, _ = ts.call(t, client, http.MethodPost, "/api/user/resendOtp", map[string]string{"email": email}, nil)
		require.Equal(t, http.StatusOK, status, "resend still works while a signup is pending")

		status, res = ts.call(t, client, http.MethodPost, "/api/user/createUser", map[string]string{"otp": ts.Mailer.LastCode(email)},
			map[string]string{"the-verify-token": first.Token})
		require.Equal(t, http.StatusCreated, status, res.Message)
	})

	t.Run("E_SignupValidation", func(t *testing.T) {
		status, res := ts.call(t, ts.newClient(t), http.MethodPost, "/api/user/signup", map[string]string{"email": "x@example.com"}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Email is required, Password is required, and Username is required", res.Message)
	})

	t.Run("F_CreateUserErrors", func(t *testing.T) {
		client := ts.newClient(t)
		status, res := ts.call(t, client, http.MethodPost, "/api/user/createUser", map[string]string{}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "OTP is required", res.Message)

		status, res = ts.call(t, client, http.MethodPost, "/api/user/createUser", map[string]string{"otp": "123456"}, nil)
		assert.Equal(t, http.StatusUnauthorized, status, "a missing token is unauthorized")
		assert.Equal(t, "Invalid or expired token.", res.Message)

		status, _ = ts.call(t, client, http.MethodPost, "/api/user/createUser", map[string]string{"otp": "123456"},
			map[string]string{"the-verify-token": "garbage"})
		assert.Equal(t, http.StatusUnauthorized, status)

		_, signup := ts.call(t, client, http.MethodPost, "/api/user/signup", map[string]string{
			"email": "bob@example.com", "password": "pw", "username": "bob",
		}, nil)
		wrong := "000000"
		if ts.Mailer.LastCode("bob@example.com") == wrong {
			wrong = "111111"
		}
		status, res = ts.call(t, client, http.MethodPost, "/api/user/createUser", map[string]string{"otp": wrong},
			map[string]string{"the-verify-token": signup.Token})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Incorrect OTP", res.Message)
	})

	t.Run("G_Login", func(t *testing.T) {
		client := ts.newClient(t)

		status, res := ts.call(t, client, http.MethodPost, "/api/user/login", map[string]string{"email": testEmail, "password": "wrong"}, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Invalid password", res.Message)

		status, res = ts.call(t, client, http.MethodPost, "/api/user/login", map[string]string{"email": "ghost@example.com", "password": "x"}, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "user is not exist with this email", res.Message)

		status, res = ts.call(t, client, http.MethodPost, "/api/user/login", map[string]string{"email": testEmail, "password": "pw123456"}, nil)
		require.Equal(t, http.StatusOK, status, res.Message)
		assert.Equal(t, "Login successful", res.Message)

		status, res = ts.call(t, client, http.MethodPost, "/api/user/refresh", nil, nil)
		require.Equal(t, http.StatusOK, status, res.Message)
		assert.Equal(t, testEmail, res.User.Email)

		status, _ = ts.call(t, client, http.MethodPost, "/api/user/logout", nil, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Nil(t, cookieNamed(client, base, "accessToken"))

		status, _ = ts.call(t, client, http.MethodGet, "/api/user/me", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = ts.call(t, client, http.MethodPost, "/api/user/refresh", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("H_ForgotPassword", func(t *testing.T) {
		client := ts.newClient(t)

		status, res := ts.call(t, client, http.MethodPost, "/api/user/verifyEmail", map[string]string{"email": "ghost@example.com"}, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "User not found", res.Message)

		status, res = ts.call(t, client, http.MethodPost, "/api/user/verifyEmail", map[string]string{"email": testEmail}, nil)
		require.Equal(t, http.StatusOK, status, res.Message)
		var data map[string]string
		require.NoError(t, json.Unmarshal(res.Data, &data))
		assert.Equal(t, testEmail, data["email"])
		assert.Equal(t, "alice", data["username"])

		status, _ = ts.call(t, client, http.MethodPost, "/api/user/forgotResendOtp", map[string]string{"email": testEmail}, nil)
		require.Equal(t, http.StatusOK, status)

		status, _ = ts.call(t, client, http.MethodPost, "/api/user/resetPassword", map[string]string{"password": "new-pass"}, nil)
		assert.Equal(t, http.StatusUnauthorized, status, "no forgotToken cookie yet")

		status, res = ts.call(t, client, http.MethodPost, "/api/user/verifyResetOtp", map[string]string{
			"email": testEmail, "otp": ts.Mailer.LastCode(testEmail),
		}, nil)
		require.Equal(t, http.StatusOK, status, res.Message)
		require.NotNil(t, cookieNamed(client, base, "forgotToken"))

		status, res = ts.call(t, client, http.MethodPost, "/api/user/resetPassword", map[string]string{}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Password is required", res.Message)

		status, res = ts.call(t, client, http.MethodPost, "/api/user/resetPassword", map[string]string{"password": "new-pass"}, nil)
		require.Equal(t, http.StatusOK, status, res.Message)
		assert.Nil(t, cookieNamed(client, base, "forgotToken"))

		status, _ = ts.call(t, client, http.MethodPost, "/api/user/login", map[string]string{"email": testEmail, "password": "new-pass"}, nil)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("I_GoogleLogin", func(t *testing.T) {
		client := ts.newClient(t)

		status, res := ts.call(t, client, http.MethodPost, "/api/user/googleLogin", map[string]string{"email": "g@example.com"}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Name and email are required", res.Message)

		status, res = ts.call(t, client, http.MethodPost, "/api/user/googleLogin", map[string]string{"name": "Gina", "email": "g@example.com"}, nil)
		require.Equal(t, http.StatusOK, status, res.Message)
		assert.Equal(t, "Gina", res.User.Username)

		status, _ = ts.call(t, client, http.MethodPost, "/api/user/login", map[string]string{"email": "g@example.com", "password": "x"}, nil)
		assert.Equal(t, http.StatusUnauthorized, status, "federated-only accounts have no password")
	})

	t.Run("J_BlockedAccount", func(t *testing.T) {
		client := ts.newClient(t)
		status, _ := ts.call(t, client, http.MethodPost, "/api/user/login", map[string]string{"email": testEmail, "password": "new-pass"}, nil)
		require.Equal(t, http.StatusOK, status)

		require.NoError(t, ts.Users.SetBlocked(context.Background(), testEmail, true))

		for _, pw := range []string{"new-pass", "wrong"} {
			status, res := ts.call(t, ts.newClient(t), http.MethodPost, "/api/user/login", map[string]string{"email": testEmail, "password": pw}, nil)
			assert.Equal(t, http.StatusForbidden, status)
			assert.Equal(t, "Account is blocked", res.Message)
		}

		status, _ = ts.call(t, client, http.MethodGet, "/api/user/me", nil, nil)
		assert.Equal(t, http.StatusForbidden, status)
		status, _ = ts.call(t, client, http.MethodPost, "/api/user/refresh", nil, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})
}

func TestOTPRateLimit(t *testing.T) {
	ts := newTestServer(t, serverOptions{otpRateLimit: 3})
	client := ts.newClient(t)

	var last int
	for i := 0; i < 4; i++ {
		last, _ = ts.call(t, client, http.MethodPost, "/api/user/resendOtp", map[string]string{"email": testEmail}, nil)
	}
	assert.Equal(t, http.StatusTooManyRequests, last, "4th OTP request must return 429")
	assert.Equal(t, 3, ts.Mailer.Sent(testEmail))

	status, _ := ts.call(t, client, http.MethodPost, "/api/user/logout", nil, nil)
	assert.Equal(t, http.StatusOK, status, "non-OTP routes are not limited")
}

func TestMoviesE2E(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	client := ts.newClient(t)

	t.Run("Search", func(t *testing.T) {
		status, res := ts.call(t, client, http.MethodGet, "/api/movies/search?q=batman&page=1", nil, nil)
		require.Equal(t, http.StatusOK, status, res.Message)

		var data struct {
			Search       []movieItem `json:"Search"`
			TotalResults string      `json:"totalResults"`
		}
		require.NoError(t, json.Unmarshal(res.Data, &data))
		assert.Len(t, data.Search, 10)
		assert.Equal(t, "42", data.TotalResults)
		require.NotNil(t, res.Pagination)
		assert.Equal(t, 1, res.Pagination.CurrentPage)
		assert.Equal(t, 42, res.Pagination.TotalResults)
		assert.Equal(t, 10, res.Pagination.ResultsPerPage)
		assert.True(t, res.Pagination.HasMore)
		assert.NotNil(t, cookieNamed(client, ts.Server.URL, "metflix.sid"), "anonymous callers get a session")
	})

	t.Run("SearchErrors", func(t *testing.T) {
		status, res := ts.call(t, client, http.MethodGet, "/api/movies/search?q=zzqqxx", nil, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Movie not found!", res.Message)

		status, _ = ts.call(t, client, http.MethodGet, "/api/movies/search?q="+url.QueryEscape("a b"), nil, nil)
		assert.Equal(t, http.StatusBadRequest, status, "Too many results maps to 400")

		status, _ = ts.call(t, client, http.MethodGet, "/api/movies/search?q=a", nil, nil)
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = ts.call(t, client, http.MethodGet, "/api/movies/search", nil, nil)
		assert.Equal(t, http.StatusBadRequest, status)

		status, res = ts.call(t, client, http.MethodGet, "/api/movies/search?q=batman&page=0", nil, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Page must be a positive number", res.Message)
	})

	t.Run("ToggleAndFavourites", func(t *testing.T) {
		status, res := ts.call(t, client, http.MethodPost, "/api/movies/toggleFavourite", map[string]string{"imdbID": "tt0111161"}, nil)
		require.Equal(t, http.StatusOK, status, res.Message)
		var toggled struct {
			ImdbID string `json:"imdbID"`
			Added  bool   `json:"added"`
			Action string `json:"action"`
		}
		require.NoError(t, json.Unmarshal(res.Data, &toggled))
		assert.True(t, toggled.Added)
		assert.Equal(t, "added_to_favorites", toggled.Action)

		status, res = ts.call(t, client, http.MethodGet, "/api/movies/favourites", nil, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 1, res.Count)

		other := ts.newClient(t)
		_, res = ts.call(t, other, http.MethodGet, "/api/movies/favourites", nil, nil)
		assert.Equal(t, 0, res.Count, "sessions do not share favorites")
		assert.Equal(t, "No favorites found", res.Message)

		status, res = ts.call(t, client, http.MethodPost, "/api/movies/toggleFavourite", map[string]string{"imdbID": "tt0111161"}, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Movie removed from favorites", res.Message)

		status, _ = ts.call(t, client, http.MethodPost, "/api/movies/toggleFavourite", map[string]string{"imdbID": "nm123"}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("ClientHeaderScope", func(t *testing.T) {
		hdr := map[string]string{"X-User-ID": "device_42"}
		status, _ := ts.call(t, ts.newClient(t), http.MethodPost, "/api/movies/toggleFavourite", map[string]string{"imdbID": "tt0068646"}, hdr)
		require.Equal(t, http.StatusOK, status)

		_, res := ts.call(t, ts.newClient(t), http.MethodGet, "/api/movies/favourites", nil, hdr)
		assert.Equal(t, 1, res.Count, "the header scope survives across cookie jars")

		status, res = ts.call(t, ts.newClient(t), http.MethodGet, "/api/movies/favourites", nil, map[string]string{"X-User-ID": "bad id"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid User ID format", res.Message)
	})

	t.Run("PopularPartialFailure", func(t *testing.T) {
		ts.OMDB.Break("tt0468569", "tt0110912")
		defer ts.OMDB.Reset()

		_, _ = ts.call(t, client, http.MethodPost, "/api/movies/toggleFavourite", map[string]string{"imdbID": "tt1375666"}, nil)

		status, res := ts.call(t, client, http.MethodGet, "/api/movies/popular", nil, nil)
		require.Equal(t, http.StatusOK, status, res.Message)
		assert.Equal(t, 6, res.Count)

		var data struct {
			Movies []movieItem `json:"movies"`
		}
		require.NoError(t, json.Unmarshal(res.Data, &data))
		require.Len(t, data.Movies, 6)
		for _, m := range data.Movies {
			assert.Equal(t, m.ImdbID == "tt1375666", m.IsFavorite, m.ImdbID)
			assert.True(t, strings.HasPrefix(m.Title, "Title "))
		}
	})
}
