// Package task defines the task record shared by every other package:
// the status and type enums, the storage capability, and the error
// conditions raised by lifecycle and storage operations.
//
// Packages that persist tasks (taskstore, syncclient) implement Storage;
// packages that act on tasks (lifecycle, syncserver, tools, metrics)
// depend only on the interface.
package task

import (
	"fmt"
	"strings"
	"time"
)

// --- Status enum ---

// Status is the progress state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
	StatusCanceled   Status = "canceled"
)

// validStatuses is the set of allowed statuses.
var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusDone:       true,
	StatusBlocked:    true,
	StatusCanceled:   true,
}

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusDone, StatusBlocked, StatusCanceled}

// ValidateStatus returns an error if the status is not recognized.
func ValidateStatus(s Status) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid status %q: must be one of: pending, in-progress, done, blocked, canceled", s)
	}
	return nil
}

// ParseStatus lowercases and trims s before validating it.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if err := ValidateStatus(st); err != nil {
		return "", err
	}
	return st, nil
}

// --- Type enum ---

// Type categorizes the kind of work a task represents.
type Type string

const (
	TypeFeat     Type = "feat"
	TypeFix      Type = "fix"
	TypeRefactor Type = "refactor"
	TypeDocs     Type = "docs"
	TypeTest     Type = "test"
	TypeChore    Type = "chore"
)

var validTypes = map[Type]bool{
	TypeFeat:     true,
	TypeFix:      true,
	TypeRefactor: true,
	TypeDocs:     true,
	TypeTest:     true,
	TypeChore:    true,
}

// Types lists every valid type in display order.
var Types = []Type{TypeFeat, TypeFix, TypeRefactor, TypeDocs, TypeTest, TypeChore}

// ValidateType returns an error if the type is not recognized.
func ValidateType(t Type) error {
	if !validTypes[t] {
		return fmt.Errorf("invalid task type %q: must be one of: feat, fix, refactor, docs, test, chore", t)
	}
	return nil
}

// ParseType lowercases and trims s before validating it.
func ParseType(s string) (Type, error) {
	tt := Type(strings.ToLower(strings.TrimSpace(s)))
	if err := ValidateType(tt); err != nil {
		return "", err
	}
	return tt, nil
}

// --- Core record ---

// Task is one unit of work backed by a task document.
type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   Status `json:"status"`
	Type     Type   `json:"type"`
	Assignee string `json:"assignee,omitempty"`
	// ModifiedAt is the last write to the backing document. Documents
	// carry no creation date, and every transition rewrites the file.
	ModifiedAt time.Time `json:"modifiedAt"`
	FilePath   string    `json:"filePath,omitempty"`
	Content    string    `json:"content,omitempty"`
}

// Summary is the compact view returned by the tool-calling bridge.
type Summary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status Status `json:"status"`
	Type   Type   `json:"type"`
}

// Summary returns the id/title/status/type view of t.
func (t *Task) Summary() Summary {
	return Summary{ID: t.ID, Title: t.Title, Status: t.Status, Type: t.Type}
}

// Clone returns a shallow copy of t.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}
