// Package tracker defines the issue tracker operations the reporter needs.
package tracker

import (
	"context"
	"sort"
	"time"
)

// Issue is an issue as returned by the tracker.
type Issue struct {
	Number    int
	Title     string
	Body      string
	Labels    []string
	URL       string
	CreatedAt time.Time
}

// Comment is a comment posted on an issue.
type Comment struct {
	ID        int64
	Body      string
	URL       string
	CreatedAt time.Time
}

// NewIssue holds the fields used to open an issue.
type NewIssue struct {
	Title  string
	Body   string
	Labels []string
}

// Tracker is the subset of an issue tracker API used by the reporter.
// Implementations return every page of a listing.
type Tracker interface {
	ListOpenIssues(ctx context.Context, label string) ([]Issue, error)
	CreateIssue(ctx context.Context, issue NewIssue) (*Issue, error)
	ListComments(ctx context.Context, number int) ([]Comment, error)
	CreateComment(ctx context.Context, number int, body string) (*Comment, error)
}

// SortIssues orders issues by creation time, oldest first. Issues created at
// the same instant are ordered by number.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].CreatedAt.Equal(issues[j].CreatedAt) {
			return issues[i].Number < issues[j].Number
		}
		return issues[i].CreatedAt.Before(issues[j].CreatedAt)
	})
}

// SortComments orders comments by creation time, oldest first, keeping the
// tracker's order for comments created at the same instant.
func SortComments(comments []Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}
