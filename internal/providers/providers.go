// Package providers defines the contract shared by all provider REST
// clients: the token set they are configured with and the error shape they
// return, so the session layer can tell an expired credential apart from any
// other failure.
package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Tokens is one provider's credential set. RefreshToken and ExpiresAt are
// optional; a provider is usable iff AccessToken is non-empty.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the token set carries a usable access token.
func (t Tokens) Valid() bool {
	return t.AccessToken != ""
}

// APIError is a failed provider API call with its HTTP status.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Status, e.Message)
}

// Vendor error strings that mean the credential is no longer accepted even
// when the HTTP status is 200 (Slack) or non-401.
var unauthorizedMarkers = []string{
	"unauthorized",
	"invalid_auth",
	"token_expired",
	"token_revoked",
	"invalid_grant",
}

// IsUnauthorized reports whether err indicates an expired or rejected
// credential, either via HTTP 401 or a vendor unauthorized string.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusUnauthorized {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range unauthorizedMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
