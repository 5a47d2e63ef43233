// Package notify fans notification events out to configured sinks.
// Delivery is best-effort: a failing sink is logged and isolated, nothing
// is retried, and no error reaches the caller. Deduplication is the
// responsibility of whoever decides to dispatch.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pr-autopilot/pkg/models"
)

// EventType identifies the kind of notification being sent.
type EventType string

const (
	EventReviewerAssigned  EventType = "reviewer_assigned"
	EventCommentsAddressed EventType = "comments_addressed"
	EventAuthorNotified    EventType = "author_notified"
	EventReviewReminder    EventType = "review_reminder"
	EventConflictDetected  EventType = "conflict_detected"
	EventUrgentPR          EventType = "urgent_pr"
)

// Fact is one name/value pair rendered by sinks that support structured
// fields.
type Fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Payload is the channel-agnostic notification document. Each sink decides
// how to render it.
type Payload struct {
	Event EventType `json:"event"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Facts []Fact    `json:"facts,omitempty"`
	Link  string    `json:"link,omitempty"`
}

// Sink is one notification channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, p Payload) error
}

// BuildPayload composes the payload for an event about a PR. action is
// only meaningful for EventAuthorNotified ("approved", "merged", ...).
func BuildPayload(ev EventType, pr *models.PullRequest, action string) Payload {
	p := Payload{
		Event: ev,
		Title: titleFor(ev),
		Link:  pr.ExternalURL,
	}

	switch ev {
	case EventReviewerAssigned:
		name := "a reviewer"
		if pr.AssignedReviewer != nil {
			name = pr.AssignedReviewer.Name
		}
		p.Body = fmt.Sprintf("%s has been assigned to review %q", name, pr.Title)
	case EventCommentsAddressed:
		p.Body = fmt.Sprintf("Comments have been addressed in %q. Please review.", pr.Title)
	case EventAuthorNotified:
		p.Body = fmt.Sprintf("PR %q has been %s", pr.Title, action)
	case EventReviewReminder:
		p.Body = fmt.Sprintf("Reminder: please review %q", pr.Title)
	case EventConflictDetected:
		p.Body = fmt.Sprintf("Merge conflicts detected in %q. %d files affected.", pr.Title, len(pr.ConflictFiles))
	case EventUrgentPR:
		p.Body = fmt.Sprintf("Urgent PR %q requires immediate attention!", pr.Title)
	}

	p.Facts = []Fact{
		{Name: "PR Title", Value: pr.Title},
		{Name: "Author", Value: pr.Author.Name},
		{Name: "Branch", Value: pr.Branch + " -> " + pr.TargetBranch},
		{Name: "Priority", Value: strings.ToUpper(pr.Priority.String())},
	}
	if pr.AssignedReviewer != nil {
		p.Facts = append(p.Facts, Fact{Name: "Reviewer", Value: pr.AssignedReviewer.Name})
	}
	if pr.HasConflicts {
		p.Facts = append(p.Facts, Fact{Name: "Conflicts", Value: fmt.Sprintf("%d files", len(pr.ConflictFiles))})
	}
	if len(pr.TicketKeys) > 0 {
		p.Facts = append(p.Facts, Fact{Name: "Tickets", Value: strings.Join(pr.TicketKeys, ", ")})
	}
	return p
}

func titleFor(ev EventType) string {
	switch ev {
	case EventReviewerAssigned:
		return "Reviewer Assigned"
	case EventCommentsAddressed:
		return "Comments Addressed"
	case EventAuthorNotified:
		return "PR Update"
	case EventReviewReminder:
		return "Review Reminder"
	case EventConflictDetected:
		return "Merge Conflict Detected"
	case EventUrgentPR:
		return "Urgent PR Alert"
	default:
		return "PR Update"
	}
}

// DefaultSendTimeout bounds each sink delivery so one stalled channel
// cannot starve the evaluation loop.
const DefaultSendTimeout = 10 * time.Second
