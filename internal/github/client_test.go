package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pr-autopilot/internal/config"
	"pr-autopilot/pkg/models"
)

func testClient(baseURL string) *Client {
	cfg := &config.Config{}
	cfg.GitHub.Owner = "acme"
	cfg.GitHub.Repo = "platform"
	cfg.GitHub.Token = "tok"
	cfg.GitHub.BaseURL = baseURL
	return NewClient(cfg)
}

const prListBody = `[
  {
    "id": 101, "number": 7,
    "title": "Fix auth PROJ-12",
    "body": "Also touches PROJ-12 and INFRA-3",
    "state": "open", "draft": false,
    "user": {"login": "alice"},
    "assignees": [{"login": "bob"}],
    "head": {"ref": "feature/auth"},
    "base": {"ref": "main"},
    "created_at": "2026-08-20T10:00:00Z",
    "updated_at": "2026-08-29T10:00:00Z",
    "html_url": "https://example.com/pr/7",
    "mergeable": false, "mergeable_state": "dirty",
    "labels": [{"name": "hotfix"}],
    "comments": 2, "additions": 600, "deletions": 12, "changed_files": 14
  },
  {
    "id": 102, "number": 8,
    "title": "Docs update",
    "body": "",
    "state": "open", "draft": true,
    "user": {"login": "carol"},
    "assignees": [],
    "head": {"ref": "docs/readme"},
    "base": {"ref": "develop"},
    "created_at": "2026-08-28T10:00:00Z",
    "updated_at": "2026-08-28T10:00:00Z",
    "html_url": "https://example.com/pr/8",
    "mergeable": true, "mergeable_state": "clean",
    "labels": [{"name": "low"}],
    "comments": 0, "additions": 5, "deletions": 1, "changed_files": 1
  }
]`

func TestListPullRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if r.URL.Query().Get("page") != "1" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(prListBody))
	}))
	defer server.Close()

	prs, err := testClient(server.URL).ListPullRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, prs, 2)

	first := prs[0]
	assert.Equal(t, "github-101", first.ID)
	assert.Equal(t, 7, first.ExternalNumber)
	assert.Equal(t, "alice", first.Author.ID)
	assert.Equal(t, models.StatusAssigned, first.Status)
	assert.Equal(t, models.PriorityUrgent, first.Priority, "hotfix label maps to urgent")
	require.NotNil(t, first.AssignedReviewer)
	assert.Equal(t, "bob", first.AssignedReviewer.ID)
	assert.True(t, first.HasConflicts)
	assert.Equal(t, 14, first.FilesChanged)
	assert.Equal(t, []string{"PROJ-12", "INFRA-3"}, first.TicketKeys)
	assert.True(t, first.AutomationEnabled)

	second := prs[1]
	assert.Equal(t, models.StatusWaiting, second.Status, "draft maps to waiting")
	assert.Equal(t, models.PriorityLow, second.Priority)
	assert.False(t, second.HasConflicts)
	assert.Nil(t, second.AssignedReviewer)
}

func TestListPullRequestsSkipsMalformedEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"id": "not-a-number"}, {"id": 5, "number": 1, "title": "ok", "user": {"login": "a"}, "head": {"ref": "x"}, "base": {"ref": "main"}}]`))
	}))
	defer server.Close()

	prs, err := testClient(server.URL).ListPullRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, "github-5", prs[0].ID)
}

func TestListPullRequestsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := testClient(server.URL).ListPullRequests(context.Background())
	assert.Error(t, err)
}

func TestFetchConflictStatusDirty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/platform/pulls/7":
			w.Write([]byte(`{"id": 101, "number": 7, "mergeable": false, "mergeable_state": "dirty", "user": {"login": "a"}, "head": {"ref": "x"}, "base": {"ref": "main"}}`))
		case "/repos/acme/platform/pulls/7/files":
			w.Write([]byte(`[{"filename": "go.mod", "status": "modified"}, {"filename": "new.go", "status": "added"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	status, err := testClient(server.URL).FetchConflictStatus(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, status.Mergeable)
	assert.Equal(t, []string{"go.mod"}, status.ConflictingFiles)
}

func TestFetchConflictStatusClean(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 101, "number": 7, "mergeable": true, "mergeable_state": "clean", "user": {"login": "a"}, "head": {"ref": "x"}, "base": {"ref": "main"}}`))
	}))
	defer server.Close()

	status, err := testClient(server.URL).FetchConflictStatus(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, status.Mergeable)
	assert.Empty(t, status.ConflictingFiles)
}

func TestTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/platform", r.URL.Path)
		w.Write([]byte(`{"id": 1}`))
	}))
	defer server.Close()

	assert.NoError(t, testClient(server.URL).TestConnection(context.Background()))
}
