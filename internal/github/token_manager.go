package github

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TokenRefreshBuffer is how long before expiry a cached installation token is
// replaced.
const TokenRefreshBuffer = 5 * time.Minute

// TokenSource supplies the bearer token for API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a personal access token or the workflow's
// GITHUB_TOKEN.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("token cannot be empty")
	}
	return string(s), nil
}

// TokenManager is a TokenSource for a GitHub App installation. It caches the
// installation token and refreshes it shortly before it expires.
type TokenManager struct {
	mu sync.Mutex

	installationID int64
	token          string
	expiresAt      time.Time

	jwtGenerator   *JWTGenerator
	tokenExchanger *TokenExchanger
	nowFunc        func() time.Time
}

// TokenManagerOption configures a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithNowFunc sets a custom time function for testing.
func WithNowFunc(fn func() time.Time) TokenManagerOption {
	return func(tm *TokenManager) {
		tm.nowFunc = fn
	}
}

// WithTokenExchanger sets the exchanger used to obtain installation tokens.
func WithTokenExchanger(exchanger *TokenExchanger) TokenManagerOption {
	return func(tm *TokenManager) {
		tm.tokenExchanger = exchanger
	}
}

// NewTokenManager creates a TokenManager for the given App credentials. The
// private key is parsed immediately so a bad key fails before any request.
func NewTokenManager(appID, installationID int64, privateKey []byte, opts ...TokenManagerOption) (*TokenManager, error) {
	if installationID <= 0 {
		return nil, fmt.Errorf("installation ID must be positive")
	}
	if len(privateKey) == 0 {
		return nil, fmt.Errorf("private key cannot be empty")
	}

	jwtGen, err := NewJWTGenerator(appID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT generator: %w", err)
	}

	tm := &TokenManager{
		installationID: installationID,
		jwtGenerator:   jwtGen,
		tokenExchanger: NewTokenExchanger(),
		nowFunc:        time.Now,
	}

	for _, opt := range opts {
		opt(tm)
	}

	return tm, nil
}

// Token returns a valid installation token, refreshing it if necessary.
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.isValidLocked() {
		return tm.token, nil
	}
	return tm.refreshLocked(ctx)
}

// Refresh forces a token refresh regardless of current token validity.
func (tm *TokenManager) Refresh(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.refreshLocked(ctx)
}

// ExpiresAt returns the expiration time of the current token, or the zero
// time if none has been fetched.
func (tm *TokenManager) ExpiresAt() time.Time {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.expiresAt
}

func (tm *TokenManager) refreshLocked(ctx context.Context) (string, error) {
	jwt, err := tm.jwtGenerator.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate JWT: %w", err)
	}

	installToken, err := tm.tokenExchanger.ExchangeToken(ctx, jwt, tm.installationID)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}

	tm.token = installToken.Token
	tm.expiresAt = installToken.ExpiresAt

	return tm.token, nil
}

// isValidLocked reports whether the cached token outlives the refresh buffer.
func (tm *TokenManager) isValidLocked() bool {
	if tm.token == "" {
		return false
	}
	return tm.expiresAt.After(tm.nowFunc().Add(TokenRefreshBuffer))
}
