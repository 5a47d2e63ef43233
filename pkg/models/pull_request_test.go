package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysWaiting(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt time.Time
		want      int
	}{
		{"created now", now, 0},
		{"created yesterday", now.Add(-25 * time.Hour), 1},
		{"created a week ago", now.Add(-8 * 24 * time.Hour), 8},
		{"created in the future", now.Add(24 * time.Hour), 0},
		{"zero created time", time.Time{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := PullRequest{CreatedAt: tt.createdAt}
			assert.Equal(t, tt.want, pr.DaysWaiting(now))
		})
	}
}

func TestDaysWaitingMonotonic(t *testing.T) {
	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	pr := PullRequest{CreatedAt: created}

	prev := -1
	for d := 0; d < 10; d++ {
		got := pr.DaysWaiting(created.Add(time.Duration(d) * 24 * time.Hour))
		assert.GreaterOrEqual(t, got, prev)
		assert.GreaterOrEqual(t, got, 0)
		prev = got
	}
}

func TestUnresolvedComments(t *testing.T) {
	pr := PullRequest{
		Comments: []Comment{
			{ID: "c1", Resolved: true},
			{ID: "c2", Resolved: false},
			// A resolved reply under an unresolved comment must not count.
			{ID: "c3", Resolved: false, Replies: []Comment{{ID: "r1", Resolved: false}}},
		},
	}
	assert.Equal(t, 2, pr.UnresolvedComments())
}

func TestExtractTicketKeys(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single key", "Fix login PROJ-123", []string{"PROJ-123"}},
		{"multiple keys", "PROJ-1 and INFRA-22", []string{"PROJ-1", "INFRA-22"}},
		{"duplicates collapse", "PROJ-9 dup PROJ-9", []string{"PROJ-9"}},
		{"no keys", "just a title", nil},
		{"lowercase not matched", "proj-123", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTicketKeys(tt.text))
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusWaiting, StatusAssigned, StatusReviewing, StatusCommented, StatusApproved, StatusMerged} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("open").Valid())
	assert.False(t, Status("").Valid())
}

func TestPriorityValid(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent} {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Priority("normal").Valid())
}

func TestRef(t *testing.T) {
	assert.Equal(t, "#42", (&PullRequest{ID: "github-1", ExternalNumber: 42}).Ref())
	assert.Equal(t, "pr-7", (&PullRequest{ID: "pr-7"}).Ref())
}

func TestAuthorExcluded(t *testing.T) {
	s := AutomationSettings{ExcludedAuthors: []string{"alice", "bob"}}
	assert.True(t, s.AuthorExcluded("alice"))
	assert.False(t, s.AuthorExcluded("carol"))
}

func TestDefaultAutomationSettings(t *testing.T) {
	def := DefaultAutomationSettings()
	assert.Equal(t, 2, def.WaitDays)
	assert.Equal(t, 24, def.ReminderInterval)
	assert.True(t, def.AutoAssign)
	assert.True(t, def.AutoReview)
	assert.True(t, def.AutoMerge)
}
