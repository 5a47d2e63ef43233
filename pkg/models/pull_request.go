package models

import (
	"fmt"
	"regexp"
	"time"
)

// Status represents the review lifecycle state of a pull request.
// The set is closed; use Valid to reject anything outside it.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusAssigned  Status = "assigned"
	StatusReviewing Status = "reviewing"
	StatusCommented Status = "commented"
	StatusApproved  Status = "approved"
	StatusMerged    Status = "merged"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusAssigned, StatusReviewing, StatusCommented, StatusApproved, StatusMerged:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// Priority represents the urgency of a pull request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func (p Priority) String() string { return string(p) }

// Developer identifies a person referenced by pull requests and comments.
// Immutable once created.
type Developer struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// Comment is a review comment with optional nested replies. The resolved
// flag is meaningful at the top level only; replies carry it but it is
// ignored when counting unresolved comments.
type Comment struct {
	ID        string    `json:"id"`
	Author    Developer `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Resolved  bool      `json:"resolved"`
	Replies   []Comment `json:"replies,omitempty"`
}

// PullRequest is the aggregate the automation engine operates on.
type PullRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Author           Developer  `json:"author"`
	AssignedReviewer *Developer `json:"assigned_reviewer,omitempty"`

	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Branch       string `json:"branch"`
	TargetBranch string `json:"target_branch"`

	Comments []Comment `json:"comments,omitempty"`

	FilesChanged int `json:"files_changed"`
	LinesAdded   int `json:"lines_added"`
	LinesDeleted int `json:"lines_deleted"`

	AutomationEnabled bool `json:"automation_enabled"`

	NextAction     string     `json:"next_action,omitempty"`
	NextActionDate *time.Time `json:"next_action_date,omitempty"`

	HasConflicts  bool     `json:"has_conflicts"`
	ConflictFiles []string `json:"conflict_files,omitempty"`

	ExternalNumber int    `json:"external_number,omitempty"`
	ExternalURL    string `json:"external_url,omitempty"`

	TicketKeys []string `json:"ticket_keys,omitempty"`
	Labels     []string `json:"labels,omitempty"`
}

// DaysWaiting returns whole days elapsed since the PR was created,
// never negative. It is derived, not stored.
func (pr *PullRequest) DaysWaiting(now time.Time) int {
	if pr.CreatedAt.IsZero() || now.Before(pr.CreatedAt) {
		return 0
	}
	return int(now.Sub(pr.CreatedAt).Hours() / 24)
}

// UnresolvedComments counts top-level comments not yet resolved.
func (pr *PullRequest) UnresolvedComments() int {
	n := 0
	for _, c := range pr.Comments {
		if !c.Resolved {
			n++
		}
	}
	return n
}

// Ref is a short human-readable reference for logs and notifications.
func (pr *PullRequest) Ref() string {
	if pr.ExternalNumber > 0 {
		return fmt.Sprintf("#%d", pr.ExternalNumber)
	}
	return pr.ID
}

var ticketKeyRe = regexp.MustCompile(`[A-Z]+-\d+`)

// ExtractTicketKeys finds tracker ticket keys (PROJ-123 style) in text,
// deduplicated in order of first appearance.
func ExtractTicketKeys(text string) []string {
	matches := ticketKeyRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var keys []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			keys = append(keys, m)
		}
	}
	return keys
}
