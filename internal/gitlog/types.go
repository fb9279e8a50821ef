// Package gitlog reads commit, diff, blame and author data from git by
// running it as a subprocess and parsing its text output.
//
// Only a missing git executable is reported as an error
// (ErrToolUnavailable). Any other failure, such as a bad repository, a
// timeout or an oversized output, is logged and returned as an empty
// result so that callers computing metrics degrade to zero values.
package gitlog

import (
	"errors"
	"time"
)

var (
	// ErrToolUnavailable means the git executable could not be found.
	ErrToolUnavailable = errors.New("git is not installed or not in PATH")

	// ErrNotARepository means the working directory is not inside a git
	// work tree.
	ErrNotARepository = errors.New("not a git repository")

	// ErrOutputTooLarge means git wrote more than the configured limit.
	ErrOutputTooLarge = errors.New("git output exceeds buffer limit")
)

// Commit is one history entry.
type Commit struct {
	Hash         string     `json:"hash"`
	Author       string     `json:"author"`
	Date         time.Time  `json:"date"`
	Message      string     `json:"message"`
	Body         string     `json:"body,omitempty"`
	FilesChanged int        `json:"filesChanged"`
	LinesAdded   int        `json:"linesAdded"`
	LinesRemoved int        `json:"linesRemoved"`
	CoAuthors    []string   `json:"coAuthors,omitempty"`
	Files        []FileDiff `json:"files,omitempty"`
}

// Authors returns the commit author followed by its co-authors.
func (c Commit) Authors() []string {
	return append([]string{c.Author}, c.CoAuthors...)
}

// ChangeType classifies a file entry in numstat output.
type ChangeType string

const (
	ChangeModified ChangeType = "modified"
	ChangeRenamed  ChangeType = "renamed"
)

// FileDiff is the added/removed line count of one file.
type FileDiff struct {
	Path         string     `json:"path"`
	OldPath      string     `json:"oldPath,omitempty"`
	LinesAdded   int        `json:"linesAdded"`
	LinesRemoved int        `json:"linesRemoved"`
	ChangeType   ChangeType `json:"changeType"`
}

// Diff aggregates a numstat listing.
type Diff struct {
	Files             []FileDiff `json:"files"`
	TotalLinesAdded   int        `json:"totalLinesAdded"`
	TotalLinesRemoved int        `json:"totalLinesRemoved"`
	NetChange         int        `json:"netChange"`
}

// BlameLine attributes one line of a file to a commit.
type BlameLine struct {
	LineNumber int       `json:"lineNumber"`
	CommitHash string    `json:"commitHash"`
	Author     string    `json:"author"`
	Date       time.Time `json:"date"`
	Content    string    `json:"content"`
}

// Author is the commit count of one contributor.
type Author struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Commits int    `json:"commits"`
}

// CommitOptions filters a log query.
type CommitOptions struct {
	Since         string // any date expression git accepts
	Until         string
	Author        string // substring of author name or email
	Path          string
	MaxCount      int // 0 means no limit
	IncludeMerges bool
}
