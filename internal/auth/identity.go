package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GoogleTokenInfoEndpoint validates Google ID tokens server-side
var GoogleTokenInfoEndpoint = "https://oauth2.googleapis.com/tokeninfo"

// IdentityAssertion is what a client presents for federated login
type IdentityAssertion struct {
	Name       string
	Email      string
	Credential string
}

// IdentityVerifier checks that an assertion really comes from the identity provider
type IdentityVerifier interface {
	Verify(ctx context.Context, a IdentityAssertion) error
}

// TrustingVerifier accepts every assertion. It is only wired when no Google
// client ID is configured, which config refuses in production.
type TrustingVerifier struct{}

func (TrustingVerifier) Verify(context.Context, IdentityAssertion) error { return nil }

// GoogleVerifier checks a Google ID token against the tokeninfo endpoint
type GoogleVerifier struct {
	clientID   string
	endpoint   string
	httpClient *http.Client
}

// NewGoogleVerifier creates a verifier accepting ID tokens issued for clientID
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{
		clientID:   clientID,
		endpoint:   GoogleTokenInfoEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type googleTokenInfo struct {
	Aud           string `json:"aud"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
}

// Verify requires the credential's audience to be our client, its email to be
// verified by Google, and that email to match the asserted one
func (v *GoogleVerifier) Verify(ctx context.Context, a IdentityAssertion) error {
	if a.Credential == "" {
		return fmt.Errorf("%w: credential is required", ErrIdentityNotVerified)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+"?id_token="+url.QueryEscape(a.Credential), nil)
	if err != nil {
		return fmt.Errorf("build tokeninfo request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tokeninfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: tokeninfo status %d", ErrIdentityNotVerified, resp.StatusCode)
	}

	var info googleTokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("decode tokeninfo: %w", err)
	}

	switch {
	case info.Aud != v.clientID:
		return fmt.Errorf("%w: audience mismatch", ErrIdentityNotVerified)
	case info.EmailVerified != "true":
		return fmt.Errorf("%w: email not verified", ErrIdentityNotVerified)
	case !strings.EqualFold(info.Email, a.Email):
		return fmt.Errorf("%w: email mismatch", ErrIdentityNotVerified)
	}
	return nil
}
