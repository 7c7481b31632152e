// Package reporter keeps an open issue in sync with the set of unsupported
// version delimiters reported by a build.
//
// A run either opens a labelled issue holding the full set, or comments on the
// newest open labelled issue with only the versions not yet mentioned in its
// body and comments. Everything the reporter knows about earlier runs is read
// back from those bodies, so a body is always a single fenced json block.
package reporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/andywolf/delimreport/internal/markdown"
	"github.com/andywolf/delimreport/internal/tracker"
	"github.com/andywolf/delimreport/internal/versionset"
	"go.uber.org/zap"
)

const (
	// DefaultLabel marks issues owned by the reporter.
	DefaultLabel = "unsupported-version"

	// DefaultTitle is the title of issues opened by the reporter.
	DefaultTitle = "Unsupported version delimiters"
)

var (
	// ErrInvalidInput is returned when the reported versions are missing or
	// are not a JSON object.
	ErrInvalidInput = errors.New("invalid versions input")

	// ErrCorruptHistory is returned when a json block in the target issue or
	// one of its comments cannot be parsed.
	ErrCorruptHistory = errors.New("unreadable version history")
)

// Action is what a run did to the tracker.
type Action string

const (
	ActionNone    Action = "none"
	ActionCreate  Action = "create"
	ActionComment Action = "comment"
)

// Result describes the outcome of a run.
type Result struct {
	Action      Action
	IssueNumber int
	// URL of the created issue or comment. Empty for ActionNone and dry runs.
	URL string
	// Body written, or that would have been written on a dry run.
	Body string
	// Versions reported by this run: the full input on create, the delta on comment.
	Versions *versionset.Set
	DryRun   bool
}

// Options configures a Reporter.
type Options struct {
	Label  string
	Title  string
	DryRun bool
}

// Reporter posts version deltas to a tracker.
type Reporter struct {
	tracker tracker.Tracker
	logger  *zap.Logger
	label   string
	title   string
	dryRun  bool
}

// New creates a Reporter. Empty label and title fall back to the defaults.
func New(t tracker.Tracker, logger *zap.Logger, opts Options) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	return &Reporter{
		tracker: t,
		logger:  logger,
		label:   opts.Label,
		title:   opts.Title,
		dryRun:  opts.DryRun,
	}
}

// Input is a parsed VERSIONS value together with its literal text, which
// becomes the body of a newly opened issue.
type Input struct {
	raw      string
	versions *versionset.Set
}

// ParseInput parses input, a JSON object of version identifiers. Failures wrap
// ErrInvalidInput.
func ParseInput(input string) (*Input, error) {
	versions, err := versionset.Parse([]byte(input))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return &Input{raw: input, versions: versions}, nil
}

// Empty reports whether the input names no versions.
func (in *Input) Empty() bool {
	return in.versions.Len() == 0
}

// Versions returns the parsed version set.
func (in *Input) Versions() *versionset.Set {
	return in.versions
}

// Run reports input, a JSON object of version identifiers, to the tracker.
// Input errors are returned before any tracker call.
func (r *Reporter) Run(ctx context.Context, input string) (*Result, error) {
	in, err := ParseInput(input)
	if err != nil {
		return nil, err
	}
	return r.RunInput(ctx, in)
}

// RunInput reports an already parsed input. An empty input ends the run
// without touching the tracker.
func (r *Reporter) RunInput(ctx context.Context, in *Input) (*Result, error) {
	if in.Empty() {
		r.logger.Info("no unsupported versions to report")
		return &Result{Action: ActionNone, DryRun: r.dryRun}, nil
	}

	versions := in.Versions()
	r.logger.Debug("parsed reported versions", zap.Strings("versions", versions.Keys()))

	issues, err := r.tracker.ListOpenIssues(ctx, r.label)
	if err != nil {
		return nil, fmt.Errorf("failed to list open issues: %w", err)
	}

	target := latestIssue(issues)
	if target == nil {
		return r.create(ctx, in.raw, versions)
	}

	return r.comment(ctx, target, versions)
}

// latestIssue returns the most recently created issue, or nil.
func latestIssue(issues []tracker.Issue) *tracker.Issue {
	if len(issues) == 0 {
		return nil
	}
	sorted := make([]tracker.Issue, len(issues))
	copy(sorted, issues)
	tracker.SortIssues(sorted)
	return &sorted[len(sorted)-1]
}

func (r *Reporter) create(ctx context.Context, input string, versions *versionset.Set) (*Result, error) {
	body := markdown.Fence(markdown.LangJSON, input)
	result := &Result{
		Action:   ActionCreate,
		Body:     body,
		Versions: versions,
		DryRun:   r.dryRun,
	}

	if r.dryRun {
		r.logger.Info("dry run: would create issue", zap.String("label", r.label), zap.Int("versions", versions.Len()))
		return result, nil
	}

	issue, err := r.tracker.CreateIssue(ctx, tracker.NewIssue{
		Title:  r.title,
		Body:   body,
		Labels: []string{r.label},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	result.IssueNumber = issue.Number
	result.URL = issue.URL
	r.logger.Info("created issue",
		zap.Int("issue", issue.Number),
		zap.String("url", issue.URL),
		zap.Int("versions", versions.Len()),
	)
	return result, nil
}

func (r *Reporter) comment(ctx context.Context, issue *tracker.Issue, versions *versionset.Set) (*Result, error) {
	logger := r.logger.With(zap.Int("issue", issue.Number))

	comments, err := r.tracker.ListComments(ctx, issue.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments of issue #%d: %w", issue.Number, err)
	}

	mentioned, err := MentionedVersions(History(issue, comments))
	if err != nil {
		return nil, fmt.Errorf("issue #%d: %w", issue.Number, err)
	}

	delta := versions.Diff(mentioned)
	if delta.Len() == 0 {
		logger.Info("all versions already reported", zap.Int("mentioned", mentioned.Len()))
		return &Result{Action: ActionNone, IssueNumber: issue.Number, DryRun: r.dryRun}, nil
	}

	payload, err := delta.MarshalIndent()
	if err != nil {
		return nil, fmt.Errorf("failed to encode new versions: %w", err)
	}

	body := markdown.Fence(markdown.LangJSON, string(payload))
	result := &Result{
		Action:      ActionComment,
		IssueNumber: issue.Number,
		Body:        body,
		Versions:    delta,
		DryRun:      r.dryRun,
	}

	if r.dryRun {
		logger.Info("dry run: would comment", zap.Strings("versions", delta.Keys()))
		return result, nil
	}

	comment, err := r.tracker.CreateComment(ctx, issue.Number, body)
	if err != nil {
		return nil, fmt.Errorf("failed to comment on issue #%d: %w", issue.Number, err)
	}

	result.URL = comment.URL
	logger.Info("commented on issue", zap.String("url", comment.URL), zap.Strings("versions", delta.Keys()))
	return result, nil
}
