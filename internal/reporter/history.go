package reporter

import (
	"fmt"

	"github.com/andywolf/delimreport/internal/markdown"
	"github.com/andywolf/delimreport/internal/tracker"
	"github.com/andywolf/delimreport/internal/versionset"
)

// Blob is one body of an issue thread.
type Blob struct {
	// Source names the body in errors, e.g. "issue body" or "comment 123".
	Source string
	Body   string
}

// History returns the issue body followed by the comment bodies, oldest first.
func History(issue *tracker.Issue, comments []tracker.Comment) []Blob {
	sorted := make([]tracker.Comment, len(comments))
	copy(sorted, comments)
	tracker.SortComments(sorted)

	blobs := make([]Blob, 0, len(sorted)+1)
	blobs = append(blobs, Blob{Source: "issue body", Body: issue.Body})
	for _, c := range sorted {
		blobs = append(blobs, Blob{Source: fmt.Sprintf("comment %d", c.ID), Body: c.Body})
	}
	return blobs
}

// MentionedVersions merges the json blocks of blobs in order. A version
// mentioned more than once takes its latest value.
func MentionedVersions(blobs []Blob) (*versionset.Set, error) {
	mentioned := versionset.New()
	for _, blob := range blobs {
		for i, block := range markdown.FencedBlocks(blob.Body, markdown.LangJSON) {
			fragment, err := versionset.Parse([]byte(block))
			if err != nil {
				return nil, fmt.Errorf("%w: %s, json block %d: %w", ErrCorruptHistory, blob.Source, i+1, err)
			}
			mentioned.Merge(fragment)
		}
	}
	return mentioned, nil
}
