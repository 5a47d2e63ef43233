// Package automation decides what automated action, if any, is due next
// for a pull request. The evaluator is pure over its inputs, so calling it
// twice with unchanged state yields the same decision.
package automation

import (
	"time"

	"pr-autopilot/pkg/models"
)

// Action is the kind of automated action the evaluator can schedule.
type Action string

const (
	ActionNone   Action = "none"
	ActionAssign Action = "assign"
	ActionRemind Action = "remind"
	ActionMerge  Action = "merge"
)

// Decision is the evaluator's output for one PR. Warning carries
// configuration problems (such as an empty reviewer pool when an
// assignment is due); automation for the PR is skipped for the tick but
// the condition is surfaced rather than swallowed.
type Decision struct {
	Action   Action
	DueAt    time.Time
	Reviewer string
	Warning  string
}

// ReviewerLoad maps reviewer IDs to their count of currently assigned
// active pull requests, used to load-balance assignments.
type ReviewerLoad map[string]int

// Evaluator computes due actions against a policy.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator creates an evaluator. now may be nil, defaulting to
// time.Now.
func NewEvaluator(now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{now: now}
}

// NextAction applies the policy rules in priority order; the first match
// wins. load feeds reviewer selection and may be nil when no assignment
// can be due.
func (e *Evaluator) NextAction(pr *models.PullRequest, settings models.AutomationSettings, load ReviewerLoad) Decision {
	now := e.now()

	if settings.AuthorExcluded(pr.Author.ID) || !pr.AutomationEnabled || pr.Status == models.StatusMerged {
		return Decision{Action: ActionNone}
	}

	if pr.Status == models.StatusWaiting && settings.AutoAssign && pr.DaysWaiting(now) >= settings.WaitDays {
		reviewer := pickReviewer(settings.ReviewerPool, load, pr.Author.ID)
		if reviewer == "" {
			return Decision{Action: ActionNone, Warning: "auto-assign due but reviewer pool is empty"}
		}
		return Decision{
			Action:   ActionAssign,
			DueAt:    pr.CreatedAt.Add(time.Duration(settings.WaitDays) * 24 * time.Hour),
			Reviewer: reviewer,
		}
	}

	if (pr.Status == models.StatusAssigned || pr.Status == models.StatusReviewing) && settings.AutoReview {
		interval := time.Duration(settings.ReminderInterval) * time.Hour
		if now.Sub(pr.UpdatedAt) >= interval {
			return Decision{Action: ActionRemind, DueAt: pr.UpdatedAt.Add(interval)}
		}
	}

	if pr.Status == models.StatusApproved && settings.AutoMerge {
		return Decision{Action: ActionMerge, DueAt: now}
	}

	return Decision{Action: ActionNone}
}

// pickReviewer chooses the pool member with the fewest active assignments,
// breaking ties by pool order. The PR author is never eligible.
func pickReviewer(pool []string, load ReviewerLoad, authorID string) string {
	best := ""
	bestLoad := -1
	for _, id := range pool {
		if id == "" || id == authorID {
			continue
		}
		n := load[id]
		if bestLoad < 0 || n < bestLoad {
			best = id
			bestLoad = n
		}
	}
	return best
}
