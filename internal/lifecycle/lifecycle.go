// Package lifecycle implements the pull request state machine. Apply is
// pure; it decides transitions and nothing else. Side effects (persistence,
// notifications) belong to the caller.
package lifecycle

import (
	"fmt"

	"pr-autopilot/pkg/models"
)

// Event is something that happened to a pull request and may move it to a
// new status.
type Event string

const (
	ReviewerAssigned    Event = "reviewer_assigned"
	CommentAdded        Event = "comment_added"
	AllCommentsResolved Event = "all_comments_resolved"
	Approved            Event = "approved"
	Merged              Event = "merged"
)

// InvalidTransitionError reports an event applied to a status outside its
// allowed source set. The PR state is unchanged when this is returned.
type InvalidTransitionError struct {
	From  models.Status
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q not applicable to status %q", e.Event, e.From)
}

// transitions maps each event to its allowed source states and target.
var transitions = map[Event]struct {
	from   []models.Status
	target models.Status
}{
	ReviewerAssigned:    {[]models.Status{models.StatusWaiting}, models.StatusAssigned},
	CommentAdded:        {[]models.Status{models.StatusAssigned, models.StatusReviewing}, models.StatusCommented},
	AllCommentsResolved: {[]models.Status{models.StatusCommented}, models.StatusReviewing},
	Approved:            {[]models.Status{models.StatusReviewing, models.StatusAssigned}, models.StatusApproved},
	Merged:              {[]models.Status{models.StatusApproved}, models.StatusMerged},
}

// Apply returns the status that results from ev occurring while the PR is
// in current. Merged is terminal; no event leaves it. An event presented
// against a status outside its allowed set returns an
// InvalidTransitionError and the unchanged status, so callers can tell
// "nothing to do" apart from a policy error.
func Apply(current models.Status, ev Event) (models.Status, error) {
	t, ok := transitions[ev]
	if !ok {
		return current, &InvalidTransitionError{From: current, Event: ev}
	}
	for _, s := range t.from {
		if s == current {
			return t.target, nil
		}
	}
	return current, &InvalidTransitionError{From: current, Event: ev}
}

// CanResolve reports whether the AllCommentsResolved event is eligible for
// the PR: it must already be in the commented state with zero unresolved
// top-level comments.
func CanResolve(pr *models.PullRequest) bool {
	return pr.Status == models.StatusCommented && pr.UnresolvedComments() == 0
}
