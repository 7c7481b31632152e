package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewTokenExchanger(t *testing.T) {
	exchanger := NewTokenExchanger()
	if exchanger == nil {
		t.Fatal("expected exchanger, got nil")
	}
	if exchanger.baseURL != DefaultBaseURL {
		t.Errorf("expected default baseURL, got %s", exchanger.baseURL)
	}
	if exchanger.httpClient == nil {
		t.Error("expected http client, got nil")
	}
}

func TestNewTokenExchanger_WithOptions(t *testing.T) {
	customClient := &http.Client{Timeout: 60 * time.Second}

	exchanger := NewTokenExchanger(
		WithHTTPClient(customClient),
		WithBaseURL("https://ghe.example.com/api/v3/"),
	)

	if exchanger.httpClient != customClient {
		t.Error("expected custom http client")
	}
	if exchanger.baseURL != "https://ghe.example.com/api/v3" {
		t.Errorf("expected trailing slash trimmed, got %s", exchanger.baseURL)
	}
}

func TestExchangeToken_Success(t *testing.T) {
	expiresAt := time.Now().Add(1 * time.Hour).UTC().Truncate(time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/app/installations/12345/access_tokens" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-jwt" {
			t.Errorf("unexpected auth header: %s", auth)
		}
		if accept := r.Header.Get("Accept"); accept != "application/vnd.github+json" {
			t.Errorf("unexpected accept header: %s", accept)
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      "ghs_test_token_123",
			"expires_at": expiresAt.Format(time.RFC3339),
		})
	}))
	defer server.Close()

	exchanger := NewTokenExchanger(WithBaseURL(server.URL))
	token, err := exchanger.ExchangeToken(context.Background(), "test-jwt", 12345)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.Token != "ghs_test_token_123" {
		t.Errorf("expected token ghs_test_token_123, got %s", token.Token)
	}
	if !token.ExpiresAt.Equal(expiresAt) {
		t.Errorf("expected expires_at %v, got %v", expiresAt, token.ExpiresAt)
	}
}

func TestExchangeToken_Validation(t *testing.T) {
	exchanger := NewTokenExchanger()

	tests := []struct {
		name           string
		jwt            string
		installationID int64
		errContain     string
	}{
		{name: "empty JWT", jwt: "", installationID: 12345, errContain: "JWT cannot be empty"},
		{name: "zero installation ID", jwt: "test-jwt", installationID: 0, errContain: "installation ID must be positive"},
		{name: "negative installation ID", jwt: "test-jwt", installationID: -1, errContain: "installation ID must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := exchanger.ExchangeToken(context.Background(), tt.jwt, tt.installationID)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContain) {
				t.Errorf("expected error containing %q, got %q", tt.errContain, err.Error())
			}
			if token != nil {
				t.Error("expected nil token on error")
			}
		})
	}
}

func TestExchangeToken_APIErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		errContain string
	}{
		{
			name:       "unauthorized",
			statusCode: http.StatusUnauthorized,
			body:       `{"message": "A JSON web token could not be decoded"}`,
			errContain: "unauthorized: A JSON web token could not be decoded (check JWT validity and expiration)",
		},
		{
			name:       "forbidden",
			statusCode: http.StatusForbidden,
			body:       `{"message": "Resource not accessible by integration"}`,
			errContain: "forbidden",
		},
		{
			name:       "not found",
			statusCode: http.StatusNotFound,
			body:       `{"message": "Integration not found"}`,
			errContain: "check installation ID",
		},
		{
			name:       "server error",
			statusCode: http.StatusInternalServerError,
			body:       `{"message": "Internal server error"}`,
			errContain: "API error (status 500)",
		},
		{
			name:       "non-JSON error body",
			statusCode: http.StatusBadGateway,
			body:       `<html>bad gateway</html>`,
			errContain: "API error (status 502): <html>bad gateway</html>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			exchanger := NewTokenExchanger(WithBaseURL(server.URL))
			token, err := exchanger.ExchangeToken(context.Background(), "test-jwt", 12345)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContain) {
				t.Errorf("expected error containing %q, got %q", tt.errContain, err.Error())
			}
			if token != nil {
				t.Error("expected nil token on error")
			}
		})
	}
}

func TestExchangeToken_InvalidResponse(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		errContain string
	}{
		{name: "not JSON", body: "not valid json", errContain: "failed to parse token response"},
		{name: "missing token", body: `{"expires_at": "2030-01-01T00:00:00Z"}`, errContain: "did not contain a token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			exchanger := NewTokenExchanger(WithBaseURL(server.URL))
			token, err := exchanger.ExchangeToken(context.Background(), "test-jwt", 12345)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContain) {
				t.Errorf("unexpected error: %v", err)
			}
			if token != nil {
				t.Error("expected nil token on error")
			}
		})
	}
}

func TestExchangeToken_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exchanger := NewTokenExchanger(WithBaseURL(server.URL))
	_, err := exchanger.ExchangeToken(ctx, "test-jwt", 12345)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to make request") {
		t.Errorf("unexpected error: %v", err)
	}
}
