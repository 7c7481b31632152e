package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/andywolf/delimreport/internal/github"
	"github.com/andywolf/delimreport/internal/reporter"
)

// Auth modes reported by Config.AuthMode.
const (
	AuthToken = "token"
	AuthApp   = "app"
)

const redacted = "[REDACTED]"

// Config represents the full delimreport configuration
type Config struct {
	Repository string       `mapstructure:"repository" yaml:"repository"`
	Versions   string       `mapstructure:"versions" yaml:"versions,omitempty"`
	Label      string       `mapstructure:"label" yaml:"label"`
	Title      string       `mapstructure:"title" yaml:"title"`
	DryRun     bool         `mapstructure:"dry_run" yaml:"dry_run"`
	OutputFile string       `mapstructure:"output_file" yaml:"output_file,omitempty"`
	Verbose    bool         `mapstructure:"verbose" yaml:"verbose"`
	GitHub     GitHubConfig `mapstructure:"github" yaml:"github"`
}

// GitHubConfig contains API endpoint and authentication settings
type GitHubConfig struct {
	APIURL  string        `mapstructure:"api_url" yaml:"api_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Static token mode.
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	// GitHub App mode.
	AppID            int64  `mapstructure:"app_id" yaml:"app_id,omitempty"`
	InstallationID   int64  `mapstructure:"installation_id" yaml:"installation_id,omitempty"`
	PrivateKeyPath   string `mapstructure:"private_key_path" yaml:"private_key_path,omitempty"`
	PrivateKeySecret string `mapstructure:"private_key_secret" yaml:"private_key_secret,omitempty"`
}

// SetDefaults registers every key with its default. Keys unknown to viper are
// skipped by Unmarshal even when their environment variable is set.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("repository", "")
	v.SetDefault("versions", "")
	v.SetDefault("label", reporter.DefaultLabel)
	v.SetDefault("title", reporter.DefaultTitle)
	v.SetDefault("dry_run", false)
	v.SetDefault("output_file", "")
	v.SetDefault("verbose", false)
	v.SetDefault("github.api_url", github.DefaultBaseURL)
	v.SetDefault("github.timeout", github.DefaultTimeout)
	v.SetDefault("github.token", "")
	v.SetDefault("github.app_id", 0)
	v.SetDefault("github.installation_id", 0)
	v.SetDefault("github.private_key_path", "")
	v.SetDefault("github.private_key_secret", "")
}

// BindEnvironment maps DELIMREPORT_* variables onto config keys and binds the
// variables a GitHub Actions runner provides.
func BindEnvironment(v *viper.Viper) error {
	v.SetEnvPrefix("DELIMREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"versions":       {"DELIMREPORT_VERSIONS", "VERSIONS"},
		"repository":     {"DELIMREPORT_REPOSITORY", "GITHUB_REPOSITORY"},
		"github.token":   {"DELIMREPORT_GITHUB_TOKEN", "GITHUB_TOKEN", "GH_TOKEN"},
		"github.api_url": {"DELIMREPORT_GITHUB_API_URL", "GITHUB_API_URL"},
		"output_file":    {"DELIMREPORT_OUTPUT_FILE", "GITHUB_OUTPUT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills fields left empty by the config file or environment
func applyDefaults(cfg *Config) {
	cfg.Repository = strings.TrimSpace(cfg.Repository)
	cfg.GitHub.Token = strings.TrimSpace(cfg.GitHub.Token)

	if cfg.Label == "" {
		cfg.Label = reporter.DefaultLabel
	}

	if cfg.Title == "" {
		cfg.Title = reporter.DefaultTitle
	}

	if cfg.GitHub.APIURL == "" {
		cfg.GitHub.APIURL = github.DefaultBaseURL
	}

	if cfg.GitHub.Timeout == 0 {
		cfg.GitHub.Timeout = github.DefaultTimeout
	}
}

// AuthMode returns AuthToken when a token is configured and AuthApp otherwise.
func (c *Config) AuthMode() string {
	if c.GitHub.Token != "" {
		return AuthToken
	}
	return AuthApp
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Repository == "" {
		return fmt.Errorf("repository is required (set --repo or GITHUB_REPOSITORY)")
	}
	if _, _, err := github.SplitRepository(c.Repository); err != nil {
		return err
	}

	if c.GitHub.Timeout < 0 {
		return fmt.Errorf("invalid github.timeout: %s (must be positive)", c.GitHub.Timeout)
	}

	if c.AuthMode() == AuthToken {
		return nil
	}

	gh := c.GitHub
	if gh.AppID == 0 && gh.InstallationID == 0 && gh.PrivateKeyPath == "" && gh.PrivateKeySecret == "" {
		return fmt.Errorf("no GitHub credentials: set GITHUB_TOKEN or configure a GitHub App")
	}

	if gh.AppID <= 0 {
		return fmt.Errorf("GitHub App ID is required")
	}

	if gh.InstallationID <= 0 {
		return fmt.Errorf("GitHub App Installation ID is required")
	}

	switch {
	case gh.PrivateKeyPath == "" && gh.PrivateKeySecret == "":
		return fmt.Errorf("GitHub App private key is required (private_key_path or private_key_secret)")
	case gh.PrivateKeyPath != "" && gh.PrivateKeySecret != "":
		return fmt.Errorf("set only one of private_key_path and private_key_secret")
	}

	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if out.GitHub.Token != "" {
		out.GitHub.Token = redacted
	}
	return out
}
