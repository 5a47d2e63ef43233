// Package github is the pull request source. It lists open PRs and probes
// mergeability through the REST API, mapping everything into the engine's
// own model.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pr-autopilot/internal/config"
	"pr-autopilot/pkg/models"
)

// Client represents a GitHub API client
type Client struct {
	Config  *config.Config
	Client  *http.Client
	BaseURL string // overridable for tests
}

// NewClient creates a new GitHub client
func NewClient(cfg *config.Config) *Client {
	baseURL := cfg.GitHub.BaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Client{
		Config:  cfg,
		Client:  &http.Client{Timeout: 15 * time.Second},
		BaseURL: baseURL,
	}
}

// apiPR mirrors the fields of the REST pull request document we consume.
type apiPR struct {
	ID     int    `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"`
	Draft  bool   `json:"draft"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Assignees []struct {
		Login string `json:"login"`
	} `json:"assignees"`
	Head struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	HTMLURL        string    `json:"html_url"`
	Mergeable      *bool     `json:"mergeable"`
	MergeableState string    `json:"mergeable_state"`
	Labels         []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Comments     int `json:"comments"`
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	ChangedFiles int `json:"changed_files"`
}

// TestConnection checks that the repository is reachable with the
// configured credentials.
func (c *Client) TestConnection(ctx context.Context) error {
	url := fmt.Sprintf("%s/repos/%s/%s", c.BaseURL, c.Config.GitHub.Owner, c.Config.GitHub.Repo)
	body, err := c.get(ctx, url)
	if err != nil {
		return fmt.Errorf("GitHub connection test failed: %w", err)
	}
	_ = body
	return nil
}

// ListPullRequests fetches open PRs and maps them to the engine model.
// A malformed entry is skipped with a warning; the rest proceed.
func (c *Client) ListPullRequests(ctx context.Context) ([]models.PullRequest, error) {
	var prs []models.PullRequest
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/pulls?state=open&per_page=100&page=%d",
			c.BaseURL, c.Config.GitHub.Owner, c.Config.GitHub.Repo, page)

		body, err := c.get(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("error fetching PRs: %w", err)
		}

		var raw []json.RawMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("error parsing PR list: %w", err)
		}
		if len(raw) == 0 {
			break
		}

		for _, entry := range raw {
			var pr apiPR
			if err := json.Unmarshal(entry, &pr); err != nil {
				slog.Warn("Skipping malformed PR entry", "error", err)
				continue
			}
			prs = append(prs, convert(&pr))
		}

		if len(raw) < 100 {
			break
		}
	}
	return prs, nil
}

// ConflictStatus is the source's own view of mergeability.
type ConflictStatus struct {
	Mergeable        bool
	ConflictingFiles []string
}

// FetchConflictStatus asks the API whether the PR is mergeable and, when
// it is not, which files are involved.
func (c *Client) FetchConflictStatus(ctx context.Context, number int) (ConflictStatus, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.BaseURL, c.Config.GitHub.Owner, c.Config.GitHub.Repo, number)
	body, err := c.get(ctx, url)
	if err != nil {
		return ConflictStatus{Mergeable: true}, err
	}

	var pr apiPR
	if err := json.Unmarshal(body, &pr); err != nil {
		return ConflictStatus{Mergeable: true}, fmt.Errorf("error parsing PR: %w", err)
	}

	status := ConflictStatus{Mergeable: pr.Mergeable == nil || *pr.Mergeable}
	if pr.Mergeable != nil && !*pr.Mergeable && pr.MergeableState == "dirty" {
		status.Mergeable = false
		files, err := c.fetchModifiedFiles(ctx, number)
		if err != nil {
			slog.Warn("Could not fetch conflicting files", "pr_number", number, "error", err)
		} else {
			status.ConflictingFiles = files
		}
	}
	return status, nil
}

func (c *Client) fetchModifiedFiles(ctx context.Context, number int) ([]string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files", c.BaseURL, c.Config.GitHub.Owner, c.Config.GitHub.Repo, number)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var files []struct {
		Filename string `json:"filename"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, fmt.Errorf("error parsing file list: %w", err)
	}

	var names []string
	for _, f := range files {
		if f.Status == "modified" {
			names = append(names, f.Filename)
		}
	}
	return names, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.Config.GitHub.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.GitHub.Token)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API error: %s (URL: %s, Body: %s)", resp.Status, url, string(body))
	}
	return body, nil
}

// convert maps an API document to the engine model.
func convert(pr *apiPR) models.PullRequest {
	out := models.PullRequest{
		ID:          fmt.Sprintf("github-%d", pr.ID),
		Title:       pr.Title,
		Description: pr.Body,
		Author: models.Developer{
			ID:    pr.User.Login,
			Name:  pr.User.Login,
			Email: pr.User.Login + "@github.local",
		},
		Status:            determineStatus(pr),
		Priority:          determinePriority(pr),
		CreatedAt:         pr.CreatedAt,
		UpdatedAt:         pr.UpdatedAt,
		Branch:            pr.Head.Ref,
		TargetBranch:      pr.Base.Ref,
		FilesChanged:      pr.ChangedFiles,
		LinesAdded:        pr.Additions,
		LinesDeleted:      pr.Deletions,
		AutomationEnabled: true,
		HasConflicts:      pr.Mergeable != nil && !*pr.Mergeable,
		ExternalNumber:    pr.Number,
		ExternalURL:       pr.HTMLURL,
		TicketKeys:        models.ExtractTicketKeys(pr.Title + " " + pr.Body),
	}

	if len(pr.Assignees) > 0 {
		out.AssignedReviewer = &models.Developer{
			ID:    pr.Assignees[0].Login,
			Name:  pr.Assignees[0].Login,
			Email: pr.Assignees[0].Login + "@github.local",
		}
	}
	for _, l := range pr.Labels {
		out.Labels = append(out.Labels, l.Name)
	}
	return out
}

func determinePriority(pr *apiPR) models.Priority {
	var labels []string
	for _, l := range pr.Labels {
		labels = append(labels, strings.ToLower(l.Name))
	}
	switch {
	case anyContains(labels, "urgent", "critical", "hotfix"):
		return models.PriorityUrgent
	case anyContains(labels, "high"):
		return models.PriorityHigh
	case anyContains(labels, "low"):
		return models.PriorityLow
	}
	return models.PriorityMedium
}

func determineStatus(pr *apiPR) models.Status {
	if pr.Draft {
		return models.StatusWaiting
	}
	if len(pr.Assignees) > 0 {
		return models.StatusAssigned
	}
	if pr.Comments > 0 {
		return models.StatusCommented
	}
	return models.StatusWaiting
}

func anyContains(labels []string, subs ...string) bool {
	for _, l := range labels {
		for _, s := range subs {
			if strings.Contains(l, s) {
				return true
			}
		}
	}
	return false
}
