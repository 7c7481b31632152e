// Package github talks to the GitHub REST API: the issue endpoints used by the
// reporter and the GitHub App endpoints used to authenticate it.
package github

import (
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

// DefaultTimeout bounds a single API request.
const DefaultTimeout = 30 * time.Second

type options struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client or a TokenExchanger.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithBaseURL sets the API root, e.g. https://ghe.example.com/api/v3.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimRight(url, "/")
	}
}

func newOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.baseURL == "" {
		o.baseURL = DefaultBaseURL
	}
	return o
}
