package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pr-autopilot/internal/automation"
	"pr-autopilot/internal/conflict"
	"pr-autopilot/internal/monitor"
	"pr-autopilot/internal/notify"
	"pr-autopilot/internal/storage"
	"pr-autopilot/pkg/models"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "autopilot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := func() time.Time { return testNow }
	settings := models.DefaultAutomationSettings()
	settings.ReviewerPool = []string{"bob", "carol"}
	mon := monitor.New(
		settings,
		monitor.Config{CheckInterval: time.Minute, AutoNotify: true},
		nil,
		conflict.NewDetector(conflict.WithClock(now), conflict.WithSeed(1)),
		automation.NewEvaluator(now),
		notify.NewDispatcher(time.Second, notify.NewLogSink()),
		store,
		now,
	)

	server := httptest.NewServer(NewHandlers(mon).Router())
	t.Cleanup(server.Close)
	return server, store
}

func storePR(t *testing.T, store *storage.Store, pr models.PullRequest) {
	t.Helper()
	require.NoError(t, store.UpsertPR(&pr))
}

func reviewingPR(id string) models.PullRequest {
	created := testNow.Add(-24 * time.Hour)
	return models.PullRequest{
		ID:                id,
		Title:             "PROJ-7: tighten validation",
		Author:            models.Developer{ID: "alice", Name: "Alice"},
		AssignedReviewer:  &models.Developer{ID: "bob", Name: "Bob"},
		Branch:            "feature/validation",
		TargetBranch:      "develop",
		Status:            models.StatusReviewing,
		Priority:          models.PriorityMedium,
		AutomationEnabled: true,
		TicketKeys:        []string{"PROJ-7"},
		CreatedAt:         created,
		UpdatedAt:         testNow,
	}
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestGetSettings(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	settings := decode[models.AutomationSettings](t, resp)
	assert.Equal(t, 2, settings.WaitDays)
	assert.Equal(t, 24, settings.ReminderInterval)
	assert.True(t, settings.AutoAssign)
}

func TestPutSettingsClampsAndApplies(t *testing.T) {
	server, _ := newTestServer(t)

	body := models.AutomationSettings{
		WaitDays:         30,
		ReminderInterval: 0,
		AutoAssign:       true,
		ReviewerPool:     []string{"bob"},
	}
	resp := doJSON(t, http.MethodPut, server.URL+"/api/v1/settings", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	settings := decode[models.AutomationSettings](t, resp)
	assert.Equal(t, 7, settings.WaitDays)
	assert.Equal(t, 1, settings.ReminderInterval)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/settings", nil)
	current := decode[models.AutomationSettings](t, resp)
	assert.Equal(t, 7, current.WaitDays)
	assert.False(t, current.AutoMerge)
}

func TestPutSettingsRejectsBadJSON(t *testing.T) {
	server, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/v1/settings", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListPullRequests(t *testing.T) {
	server, store := newTestServer(t)
	storePR(t, store, reviewingPR("pr-1"))
	storePR(t, store, reviewingPR("pr-2"))

	resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/pullrequests", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	prs := decode[[]models.PullRequest](t, resp)
	assert.Len(t, prs, 2)
}

func TestConflictSummary(t *testing.T) {
	server, store := newTestServer(t)
	pr := reviewingPR("pr-1")
	pr.HasConflicts = true
	pr.ConflictFiles = []string{"go.sum", "internal/api/router.go"}
	storePR(t, store, pr)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/conflicts/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sum := decode[conflict.Summary](t, resp)
	assert.Equal(t, 1, sum.TotalConflicted)
	assert.Equal(t, 2, sum.TotalConflictFiles)
}

func TestCommentEndpoints(t *testing.T) {
	server, store := newTestServer(t)
	storePR(t, store, reviewingPR("pr-1"))

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/pullrequests/pr-1/comments", addCommentRequest{
		AuthorID: "bob", AuthorName: "Bob", Content: "needs a test",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pr := decode[models.PullRequest](t, resp)
	assert.Equal(t, models.StatusCommented, pr.Status)
	require.Len(t, pr.Comments, 1)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/pullrequests/pr-1/comments/"+pr.Comments[0].ID+"/resolve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pr = decode[models.PullRequest](t, resp)
	assert.Equal(t, models.StatusReviewing, pr.Status)
	assert.True(t, pr.Comments[0].Resolved)
}

func TestAddCommentValidation(t *testing.T) {
	server, store := newTestServer(t)
	storePR(t, store, reviewingPR("pr-1"))

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/pullrequests/pr-1/comments", addCommentRequest{
		AuthorID: "bob", Content: "",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/pullrequests/missing/comments", addCommentRequest{
		AuthorID: "bob", Content: "hello",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddCommentOutsideReviewStillStored(t *testing.T) {
	server, store := newTestServer(t)
	pr := reviewingPR("pr-1")
	pr.Status = models.StatusWaiting
	pr.AssignedReviewer = nil
	storePR(t, store, pr)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/pullrequests/pr-1/comments", addCommentRequest{
		AuthorID: "bob", AuthorName: "Bob", Content: "early note",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[models.PullRequest](t, resp)
	assert.Equal(t, models.StatusWaiting, got.Status)
	assert.Len(t, got.Comments, 1)
}

func TestApproveEndpoint(t *testing.T) {
	server, store := newTestServer(t)
	storePR(t, store, reviewingPR("pr-1"))

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/pullrequests/pr-1/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pr := decode[models.PullRequest](t, resp)
	assert.Equal(t, models.StatusApproved, pr.Status)

	// Already approved; approving again is a state conflict.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/pullrequests/pr-1/approve", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/pullrequests/missing/approve", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTicketsUnavailableWithoutJira(t *testing.T) {
	server, store := newTestServer(t)
	storePR(t, store, reviewingPR("pr-1"))

	resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/pullrequests/pr-1/tickets", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTickEndpoint(t *testing.T) {
	server, store := newTestServer(t)
	pr := reviewingPR("pr-1")
	pr.Status = models.StatusApproved
	storePR(t, store, pr)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/tick", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err := store.GetPR("pr-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusMerged, got.Status)
}
