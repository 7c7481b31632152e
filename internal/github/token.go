package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andywolf/delimreport/internal/version"
)

// InstallationToken represents a GitHub App installation access token.
type InstallationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenExchanger exchanges GitHub App JWTs for installation access tokens.
type TokenExchanger struct {
	httpClient *http.Client
	baseURL    string
}

// NewTokenExchanger creates a new TokenExchanger with the given options.
func NewTokenExchanger(opts ...Option) *TokenExchanger {
	o := newOptions(opts)
	return &TokenExchanger{
		httpClient: o.httpClient,
		baseURL:    o.baseURL,
	}
}

// ExchangeToken exchanges a GitHub App JWT for an installation access token.
// The returned token is valid for 1 hour.
func (t *TokenExchanger) ExchangeToken(ctx context.Context, jwt string, installationID int64) (*InstallationToken, error) {
	if jwt == "" {
		return nil, fmt.Errorf("JWT cannot be empty")
	}
	if installationID <= 0 {
		return nil, fmt.Errorf("installation ID must be positive")
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", t.baseURL, installationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+jwt)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var token InstallationToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.Token == "" {
		return nil, fmt.Errorf("token response did not contain a token")
	}

	return &token, nil
}

// apiError represents an error response from the GitHub API.
type apiError struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

// parseAPIError parses a GitHub API error response from the token endpoint.
func parseAPIError(statusCode int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return fmt.Errorf("API error (status %d): %s", statusCode, string(body))
	}
	return statusError(statusCode, apiErr.Message, "check JWT validity and expiration", "check installation ID")
}

// statusError turns an HTTP status and GitHub message into an error with a hint.
func statusError(statusCode int, message, authHint, notFoundHint string) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: %s (%s)", message, authHint)
	case http.StatusForbidden:
		return fmt.Errorf("forbidden: %s (check App or token permissions)", message)
	case http.StatusNotFound:
		return fmt.Errorf("not found: %s (%s)", message, notFoundHint)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("validation failed: %s", message)
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, message)
	}
}
