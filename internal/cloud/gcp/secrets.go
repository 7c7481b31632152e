// Package gcp reads the GitHub App private key from GCP Secret Manager.
package gcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

const (
	defaultMetadataURL = "http://metadata.google.internal/computeMetadata/v1/project/project-id"
	fetchTimeout       = 10 * time.Second
)

// projectEnvVars are checked in order before falling back to the metadata
// server.
var projectEnvVars = []string{"GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT"}

// SecretFetcher defines the interface for fetching secrets
type SecretFetcher interface {
	FetchSecret(ctx context.Context, secretPath string) (string, error)
	Close() error
}

// secretAccessor is the subset of the Secret Manager API the client uses.
type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// SecretManagerClient wraps the GCP Secret Manager client. The project is only
// looked up when a bare secret name has to be expanded, so full resource names
// work off GCP without any project configuration.
type SecretManagerClient struct {
	client      secretAccessor
	projectID   string
	getenv      func(string) string
	metadataURL string
	httpClient  *http.Client
}

var _ SecretFetcher = (*SecretManagerClient)(nil)

// NewSecretManagerClient creates a new Secret Manager client
func NewSecretManagerClient(ctx context.Context, opts ...option.ClientOption) (*SecretManagerClient, error) {
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return newSecretManagerClient(client), nil
}

func newSecretManagerClient(client secretAccessor) *SecretManagerClient {
	return &SecretManagerClient{
		client:      client,
		getenv:      os.Getenv,
		metadataURL: defaultMetadataURL,
		httpClient:  &http.Client{Timeout: 2 * time.Second},
	}
}

// FetchSecret retrieves a secret from GCP Secret Manager
// secretPath can be in one of the following formats:
// - projects/PROJECT_ID/secrets/SECRET_NAME/versions/VERSION
// - projects/PROJECT_ID/secrets/SECRET_NAME (defaults to latest)
// - SECRET_NAME (project from environment or metadata server)
func (c *SecretManagerClient) FetchSecret(ctx context.Context, secretPath string) (string, error) {
	secretPath = strings.TrimSpace(secretPath)
	if secretPath == "" {
		return "", fmt.Errorf("secret path cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	name := secretPath
	if !strings.HasPrefix(secretPath, "projects/") {
		projectID, err := c.project(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get project ID: %w", err)
		}
		name = fmt.Sprintf("projects/%s/secrets/%s", projectID, path.Base(secretPath))
	}
	name = normalizeSecretPath(name)

	result, err := c.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", name, err)
	}

	data := result.GetPayload().GetData()
	if len(data) == 0 {
		return "", fmt.Errorf("secret %s is empty", name)
	}

	return string(data), nil
}

// normalizeSecretPath appends /versions/latest to a secret resource name
// without a version.
func normalizeSecretPath(name string) string {
	if strings.Contains(name, "/versions/") {
		return name
	}
	return strings.TrimSuffix(name, "/") + "/versions/latest"
}

// project returns the GCP project ID from the environment or, failing that,
// the metadata server. The result is cached.
func (c *SecretManagerClient) project(ctx context.Context) (string, error) {
	if c.projectID != "" {
		return c.projectID, nil
	}

	for _, name := range projectEnvVars {
		if projectID := c.getenv(name); projectID != "" {
			c.projectID = projectID
			return projectID, nil
		}
	}

	projectID, err := c.projectFromMetadata(ctx)
	if err != nil {
		return "", err
	}
	c.projectID = projectID
	return projectID, nil
}

// projectFromMetadata fetches the project ID from the GCP metadata server
func (c *SecretManagerClient) projectFromMetadata(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.metadataURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata request: %w", err)
	}

	// Required header for GCP metadata server
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch project ID from metadata server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metadata response: %w", err)
	}

	projectID := strings.TrimSpace(string(body))
	if projectID == "" {
		return "", fmt.Errorf("empty project ID from metadata server")
	}

	return projectID, nil
}

// Close closes the Secret Manager client
func (c *SecretManagerClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
