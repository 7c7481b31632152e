package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// tokenServer serves installation tokens numbered from 1, each valid for one
// hour after the current fake time.
func tokenServer(t *testing.T, now func() time.Time, calls *int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Errorf("missing bearer JWT")
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      fmt.Sprintf("ghs_token_%d", n),
			"expires_at": now().Add(time.Hour).UTC().Format(time.RFC3339),
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewTokenManager(t *testing.T) {
	_, pemData := generateTestKeyPair(t)

	tests := []struct {
		name           string
		appID          int64
		installationID int64
		privateKey     []byte
		errContain     string
	}{
		{name: "valid parameters", appID: 12345, installationID: 67890, privateKey: pemData},
		{name: "zero app ID", appID: 0, installationID: 67890, privateKey: pemData, errContain: "app ID must be positive"},
		{name: "zero installation ID", appID: 12345, installationID: 0, privateKey: pemData, errContain: "installation ID must be positive"},
		{name: "negative installation ID", appID: 12345, installationID: -1, privateKey: pemData, errContain: "installation ID must be positive"},
		{name: "empty private key", appID: 12345, installationID: 67890, privateKey: []byte{}, errContain: "private key cannot be empty"},
		{name: "invalid private key", appID: 12345, installationID: 67890, privateKey: []byte("garbage"), errContain: "failed to create JWT generator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, err := NewTokenManager(tt.appID, tt.installationID, tt.privateKey)
			if tt.errContain != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContain) {
					t.Errorf("expected error containing %q, got %q", tt.errContain, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tm == nil {
				t.Fatal("expected manager, got nil")
			}
			if !tm.ExpiresAt().IsZero() {
				t.Error("expected zero expiry before the first fetch")
			}
		})
	}
}

func TestTokenManager_CachesUntilBuffer(t *testing.T) {
	_, pemData := generateTestKeyPair(t)

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	var calls int32
	server := tokenServer(t, clock, &calls)

	tm, err := NewTokenManager(12345, 67890, pemData,
		WithNowFunc(clock),
		WithTokenExchanger(NewTokenExchanger(WithBaseURL(server.URL))),
	)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	ctx := context.Background()

	token, err := tm.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "ghs_token_1" {
		t.Errorf("expected ghs_token_1, got %s", token)
	}
	if want := now.Add(time.Hour); !tm.ExpiresAt().Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", tm.ExpiresAt(), want)
	}

	// Still outside the refresh buffer.
	now = now.Add(50 * time.Minute)
	token, err = tm.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "ghs_token_1" {
		t.Errorf("expected cached ghs_token_1, got %s", token)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 exchange, got %d", got)
	}

	// Inside the buffer: a new token is fetched.
	now = now.Add(6 * time.Minute)
	token, err = tm.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "ghs_token_2" {
		t.Errorf("expected ghs_token_2, got %s", token)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 exchanges, got %d", got)
	}
}

func TestTokenManager_Refresh(t *testing.T) {
	_, pemData := generateTestKeyPair(t)

	clock := func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }

	var calls int32
	server := tokenServer(t, clock, &calls)

	tm, err := NewTokenManager(12345, 67890, pemData,
		WithNowFunc(clock),
		WithTokenExchanger(NewTokenExchanger(WithBaseURL(server.URL))),
	)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	ctx := context.Background()
	if _, err := tm.Token(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := tm.Refresh(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "ghs_token_2" {
		t.Errorf("expected forced refresh to return ghs_token_2, got %s", token)
	}
}

func TestTokenManager_ExchangeFailure(t *testing.T) {
	_, pemData := generateTestKeyPair(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
	}))
	defer server.Close()

	tm, err := NewTokenManager(12345, 67890, pemData,
		WithTokenExchanger(NewTokenExchanger(WithBaseURL(server.URL))),
	)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	_, err = tm.Token(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to exchange token") {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "Bad credentials") {
		t.Errorf("expected API message in error, got %v", err)
	}
}

func TestStaticToken(t *testing.T) {
	token, err := StaticToken("ghp_abc").Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "ghp_abc" {
		t.Errorf("expected ghp_abc, got %s", token)
	}

	if _, err := StaticToken("").Token(context.Background()); err == nil {
		t.Error("expected error for empty token")
	}
}
