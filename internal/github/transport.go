package github

import (
	"fmt"
	"net/http"
	"time"
)

// Transport adds a bearer token from Source to every request.
type Transport struct {
	Source TokenSource
	// Base is the underlying RoundTripper; http.DefaultTransport when nil.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Source.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, fmt.Errorf("failed to obtain GitHub token: %w", err)
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token)
	authed.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	return t.base().RoundTrip(authed)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// NewHTTPClient returns an HTTP client authenticating with source. Requests
// time out after timeout, or DefaultTimeout when timeout is not positive.
func NewHTTPClient(source TokenSource, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: &Transport{Source: source},
		Timeout:   timeout,
	}
}
