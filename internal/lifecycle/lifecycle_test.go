package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pr-autopilot/pkg/models"
)

var allEvents = []Event{ReviewerAssigned, CommentAdded, AllCommentsResolved, Approved, Merged}

func TestApplyAllowedTransitions(t *testing.T) {
	tests := []struct {
		from  models.Status
		event Event
		want  models.Status
	}{
		{models.StatusWaiting, ReviewerAssigned, models.StatusAssigned},
		{models.StatusAssigned, CommentAdded, models.StatusCommented},
		{models.StatusReviewing, CommentAdded, models.StatusCommented},
		{models.StatusCommented, AllCommentsResolved, models.StatusReviewing},
		{models.StatusReviewing, Approved, models.StatusApproved},
		{models.StatusAssigned, Approved, models.StatusApproved},
		{models.StatusApproved, Merged, models.StatusMerged},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := Apply(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyRejectsInvalidTransitions(t *testing.T) {
	tests := []struct {
		from  models.Status
		event Event
	}{
		{models.StatusWaiting, Approved},
		{models.StatusWaiting, Merged},
		{models.StatusWaiting, CommentAdded},
		{models.StatusCommented, Approved},
		{models.StatusReviewing, Merged},
		{models.StatusApproved, CommentAdded},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := Apply(tt.from, tt.event)

			var invalid *InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.from, invalid.From)
			assert.Equal(t, tt.event, invalid.Event)
			// State unchanged on rejection.
			assert.Equal(t, tt.from, got)
		})
	}
}

func TestMergedIsTerminal(t *testing.T) {
	for _, ev := range allEvents {
		got, err := Apply(models.StatusMerged, ev)
		assert.Error(t, err, ev)
		assert.Equal(t, models.StatusMerged, got, ev)
	}
}

func TestApplyUnknownEvent(t *testing.T) {
	got, err := Apply(models.StatusWaiting, Event("rebased"))
	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, models.StatusWaiting, got)
}

func TestCanResolve(t *testing.T) {
	unresolved := models.Comment{ID: "c1"}
	resolved := models.Comment{ID: "c2", Resolved: true}

	tests := []struct {
		name string
		pr   models.PullRequest
		want bool
	}{
		{"commented with all resolved", models.PullRequest{Status: models.StatusCommented, Comments: []models.Comment{resolved}}, true},
		{"commented with outstanding", models.PullRequest{Status: models.StatusCommented, Comments: []models.Comment{resolved, unresolved}}, false},
		{"reviewing with all resolved", models.PullRequest{Status: models.StatusReviewing, Comments: []models.Comment{resolved}}, false},
		{"commented with no comments", models.PullRequest{Status: models.StatusCommented}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanResolve(&tt.pr))
		})
	}
}
