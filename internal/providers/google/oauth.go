// Package google provides the Google OAuth flow and the Calendar and Gmail
// REST clients. Calendar and Gmail share one credential set; the session
// layer is responsible for keeping both clients on the same tokens.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ampdesk/amp/internal/providers"
)

const tokenURL = "https://oauth2.googleapis.com/token"

// OAuth exchanges and refreshes Google user credentials.
type OAuth struct {
	clientID     string
	clientSecret string
	redirectURI  string
	tokenURL     string
	httpClient   *http.Client
}

// NewOAuth creates the OAuth helper with explicit app credentials.
func NewOAuth(clientID, clientSecret, redirectURI string) *OAuth {
	return &OAuth{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		tokenURL:     tokenURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// ExchangeCode trades an authorization code for a token set.
func (o *OAuth) ExchangeCode(ctx context.Context, code string) (providers.Tokens, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", o.clientID)
	data.Set("client_secret", o.clientSecret)
	data.Set("redirect_uri", o.redirectURI)

	return o.tokenRequest(ctx, data)
}

// RefreshToken obtains a fresh access token. Google refresh responses omit
// the refresh token, so the returned set keeps the one passed in.
func (o *OAuth) RefreshToken(ctx context.Context, refreshToken string) (providers.Tokens, error) {
	if refreshToken == "" {
		return providers.Tokens{}, fmt.Errorf("google: no refresh token available")
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", o.clientID)
	data.Set("client_secret", o.clientSecret)

	tokens, err := o.tokenRequest(ctx, data)
	if err != nil {
		return providers.Tokens{}, err
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

func (o *OAuth) tokenRequest(ctx context.Context, data url.Values) (providers.Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", o.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return providers.Tokens{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return providers.Tokens{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Tokens{}, fmt.Errorf("read token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return providers.Tokens{}, fmt.Errorf("parse token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || tr.Error != "" {
		msg := tr.Error
		if tr.ErrorDesc != "" {
			msg += ": " + tr.ErrorDesc
		}
		if msg == "" {
			msg = string(body)
		}
		return providers.Tokens{}, &providers.APIError{Provider: "google", Status: resp.StatusCode, Message: msg}
	}

	return providers.Tokens{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
