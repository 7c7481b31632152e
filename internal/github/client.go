package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/andywolf/delimreport/internal/tracker"
	"github.com/andywolf/delimreport/internal/version"
	gh "github.com/google/go-github/v72/github"
)

// pageSize is the largest page the REST API serves.
const pageSize = 100

// Client implements tracker.Tracker for one repository.
type Client struct {
	api   *gh.Client
	owner string
	repo  string
}

var _ tracker.Tracker = (*Client)(nil)

// SplitRepository splits "owner/name" into its parts.
func SplitRepository(repository string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(repository), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q (expected owner/name)", repository)
	}
	return parts[0], parts[1], nil
}

// NewClient creates a Client for repository ("owner/name"). Authentication is
// the job of the HTTP client passed with WithHTTPClient.
func NewClient(repository string, opts ...Option) (*Client, error) {
	owner, repo, err := SplitRepository(repository)
	if err != nil {
		return nil, err
	}

	o := newOptions(opts)
	api := gh.NewClient(o.httpClient)
	api.UserAgent = version.UserAgent()
	if o.baseURL != DefaultBaseURL {
		base, err := url.Parse(o.baseURL + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", o.baseURL, err)
		}
		api.BaseURL = base
	}

	return &Client{api: api, owner: owner, repo: repo}, nil
}

// ListOpenIssues returns every open issue carrying label, oldest first. Pull
// requests, which the issues endpoint also returns, are skipped.
func (c *Client) ListOpenIssues(ctx context.Context, label string) ([]tracker.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "open",
		Labels:      []string{label},
		Sort:        "created",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: pageSize},
	}

	var issues []tracker.Issue
	for {
		page, resp, err := c.api.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, wrapAPIError(err)
		}
		for _, issue := range page {
			if issue.IsPullRequest() {
				continue
			}
			issues = append(issues, toIssue(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	tracker.SortIssues(issues)
	return issues, nil
}

// CreateIssue opens an issue.
func (c *Client) CreateIssue(ctx context.Context, issue tracker.NewIssue) (*tracker.Issue, error) {
	labels := issue.Labels
	req := &gh.IssueRequest{
		Title:  gh.Ptr(issue.Title),
		Body:   gh.Ptr(issue.Body),
		Labels: &labels,
	}

	created, _, err := c.api.Issues.Create(ctx, c.owner, c.repo, req)
	if err != nil {
		return nil, wrapAPIError(err)
	}

	result := toIssue(created)
	return &result, nil
}

// ListComments returns every comment on the issue, oldest first.
func (c *Client) ListComments(ctx context.Context, number int) ([]tracker.Comment, error) {
	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: pageSize},
	}

	var comments []tracker.Comment
	for {
		page, resp, err := c.api.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, wrapAPIError(err)
		}
		for _, comment := range page {
			comments = append(comments, toComment(comment))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	tracker.SortComments(comments)
	return comments, nil
}

// CreateComment posts a comment on the issue.
func (c *Client) CreateComment(ctx context.Context, number int, body string) (*tracker.Comment, error) {
	created, _, err := c.api.Issues.CreateComment(ctx, c.owner, c.repo, number, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}

	result := toComment(created)
	return &result, nil
}

func toIssue(issue *gh.Issue) tracker.Issue {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	return tracker.Issue{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		Labels:    labels,
		URL:       issue.GetHTMLURL(),
		CreatedAt: issue.GetCreatedAt().Time,
	}
}

func toComment(comment *gh.IssueComment) tracker.Comment {
	return tracker.Comment{
		ID:        comment.GetID(),
		Body:      comment.GetBody(),
		URL:       comment.GetHTMLURL(),
		CreatedAt: comment.GetCreatedAt().Time,
	}
}

// wrapAPIError adds a hint to common GitHub failures while keeping the original
// error in the chain.
func wrapAPIError(err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("rate limited until %s: %w", rateErr.Rate.Reset.Time.Format(time.RFC3339), err)
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("secondary rate limit hit: %w", err)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		hint := statusError(respErr.Response.StatusCode, respErr.Message,
			"check the token", "check the repository name and token scope")
		return fmt.Errorf("%v: %w", hint, err)
	}

	return err
}
