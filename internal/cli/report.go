package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/andywolf/delimreport/internal/cloud/gcp"
	"github.com/andywolf/delimreport/internal/config"
	"github.com/andywolf/delimreport/internal/github"
	"github.com/andywolf/delimreport/internal/logging"
	"github.com/andywolf/delimreport/internal/reporter"
	"github.com/andywolf/delimreport/internal/security"
)

// newSecretFetcher opens Secret Manager; replaced in tests.
var newSecretFetcher = func(ctx context.Context) (gcp.SecretFetcher, error) {
	return gcp.NewSecretManagerClient(ctx)
}

func newReportCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report new unsupported versions",
		Long: `Report the versions in VERSIONS (a JSON object) to the repository's
tracking issue.

Opens the issue if none is open, comments with the versions the issue does not
mention yet otherwise, and does nothing when every version is already known.
Prints "Create <url>" or "Comment <url>" on success.

Example:
  delimreport report --repo octo/widgets --versions '{"v1": {"a": 1}}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, v)
		},
	}

	cmd.Flags().String("repo", "", "GitHub repository as owner/name (default $GITHUB_REPOSITORY)")
	cmd.Flags().String("versions", "", "JSON object of unsupported versions (default $VERSIONS)")
	cmd.Flags().String("label", reporter.DefaultLabel, "label identifying the tracking issue")
	cmd.Flags().String("title", reporter.DefaultTitle, "title of a newly opened issue")
	cmd.Flags().Bool("dry-run", false, "read the tracker and print what would be written without writing")
	cmd.Flags().String("output-file", "", "append action/url/issue-number outputs to this file (default $GITHUB_OUTPUT)")
	cmd.Flags().String("token", "", "GitHub token (default $GITHUB_TOKEN or $GH_TOKEN)")
	cmd.Flags().String("api-url", github.DefaultBaseURL, "GitHub REST API root (default $GITHUB_API_URL)")
	cmd.Flags().Duration("timeout", github.DefaultTimeout, "timeout for each GitHub API request")

	bindFlags(v, cmd.Flags(), map[string]string{
		"repo":        "repository",
		"versions":    "versions",
		"label":       "label",
		"title":       "title",
		"dry-run":     "dry_run",
		"output-file": "output_file",
		"token":       "github.token",
		"api-url":     "github.api_url",
		"timeout":     "github.timeout",
	})

	return cmd
}

func runReport(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()

	cfg, err := config.LoadFrom(v)
	if err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Versions) == "" {
		return fmt.Errorf("%w: VERSIONS is not set", reporter.ErrInvalidInput)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sanitizer := security.NewLogSanitizer()
	sanitizer.AddSecret(cfg.GitHub.Token)

	logger := logging.New(logging.Options{
		Verbose:    cfg.Verbose,
		Writer:     cmd.ErrOrStderr(),
		RunID:      uuid.NewString(),
		Repository: cfg.Repository,
		Sanitizer:  sanitizer,
	})
	defer func() { _ = logger.Sync() }()

	input, err := reporter.ParseInput(cfg.Versions)
	if err != nil {
		return err
	}
	if input.Empty() {
		logger.Info("no unsupported versions to report")
		return finishReport(cmd, cfg, logger, &reporter.Result{Action: reporter.ActionNone, DryRun: cfg.DryRun})
	}

	source, err := tokenSource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := github.NewClient(cfg.Repository,
		github.WithBaseURL(cfg.GitHub.APIURL),
		github.WithHTTPClient(github.NewHTTPClient(source, cfg.GitHub.Timeout)),
	)
	if err != nil {
		return err
	}

	rep := reporter.New(client, logger, reporter.Options{
		Label:  cfg.Label,
		Title:  cfg.Title,
		DryRun: cfg.DryRun,
	})

	result, err := rep.RunInput(ctx, input)
	if err != nil {
		logger.Error("report failed", zap.Error(err))
		return err
	}

	return finishReport(cmd, cfg, logger, result)
}

// finishReport prints result and appends the step outputs.
func finishReport(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, result *reporter.Result) error {
	printResult(cmd.OutOrStdout(), result)

	if cfg.OutputFile != "" {
		if err := writeOutputs(cfg.OutputFile, result); err != nil {
			return err
		}
		logger.Debug("wrote step outputs", zap.String("path", cfg.OutputFile))
	}

	return nil
}

// printResult writes the one-line summary CI logs show for a run.
func printResult(w io.Writer, result *reporter.Result) {
	if result.DryRun && result.Action != reporter.ActionNone {
		target := "new issue"
		if result.Action == reporter.ActionComment {
			target = fmt.Sprintf("issue #%d", result.IssueNumber)
		}
		fmt.Fprintf(w, "Dry run: would %s on %s:\n%s\n", result.Action, target, result.Body)
		return
	}

	switch result.Action {
	case reporter.ActionCreate:
		fmt.Fprintf(w, "Create %s\n", result.URL)
	case reporter.ActionComment:
		fmt.Fprintf(w, "Comment %s\n", result.URL)
	}
}

// tokenSource picks the configured authentication mode.
func tokenSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (github.TokenSource, error) {
	if cfg.AuthMode() == config.AuthToken {
		logger.Debug("authenticating with token")
		return github.StaticToken(cfg.GitHub.Token), nil
	}

	key, err := privateKey(ctx, cfg.GitHub)
	if err != nil {
		return nil, err
	}

	exchanger := github.NewTokenExchanger(
		github.WithBaseURL(cfg.GitHub.APIURL),
		github.WithHTTPClient(&http.Client{Timeout: cfg.GitHub.Timeout}),
	)
	manager, err := github.NewTokenManager(cfg.GitHub.AppID, cfg.GitHub.InstallationID, key,
		github.WithTokenExchanger(exchanger))
	if err != nil {
		return nil, fmt.Errorf("failed to set up GitHub App authentication: %w", err)
	}

	logger.Debug("authenticating as GitHub App",
		zap.Int64("app_id", cfg.GitHub.AppID),
		zap.Int64("installation_id", cfg.GitHub.InstallationID))
	return manager, nil
}

// privateKey loads the App private key from a file or Secret Manager.
func privateKey(ctx context.Context, gh config.GitHubConfig) ([]byte, error) {
	if gh.PrivateKeyPath != "" {
		key, err := os.ReadFile(gh.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		return key, nil
	}

	fetcher, err := newSecretFetcher(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fetcher.Close() }()

	key, err := fetcher.FetchSecret(ctx, gh.PrivateKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch private key: %w", err)
	}
	return []byte(key), nil
}
