// Package jira resolves tracker ticket keys referenced by pull requests.
package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pr-autopilot/internal/config"
)

// Ticket is the subset of a tracker issue the engine cares about.
type Ticket struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Assignee string `json:"assignee,omitempty"`
	URL      string `json:"url"`
}

// Client represents a Jira API client
type Client struct {
	Config  *config.Config
	Client  *http.Client
	BaseURL string // overridable for tests
}

// NewClient creates a new Jira client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		Config:  cfg,
		Client:  &http.Client{Timeout: 15 * time.Second},
		BaseURL: cfg.Jira.BaseURL,
	}
}

// Configured reports whether credentials are present. Callers treat an
// unconfigured client as a configuration warning and skip ticket
// enrichment, not as an error.
func (c *Client) Configured() bool {
	return c.BaseURL != "" && c.Config.Jira.Email != "" && c.Config.Jira.APIToken != ""
}

// GetTicket fetches one issue by key.
func (c *Client) GetTicket(ctx context.Context, key string) (*Ticket, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("jira is not configured")
	}

	url := fmt.Sprintf("%s/rest/api/3/issue/%s", c.BaseURL, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Basic "+c.basicAuth())
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Jira API error: %s (key: %s)", resp.Status, key)
	}

	var issue struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Status  struct {
				Name string `json:"name"`
			} `json:"status"`
			Priority *struct {
				Name string `json:"name"`
			} `json:"priority"`
			Assignee *struct {
				DisplayName string `json:"displayName"`
			} `json:"assignee"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("error parsing Jira issue: %w", err)
	}

	t := &Ticket{
		Key:      issue.Key,
		Summary:  issue.Fields.Summary,
		Status:   issue.Fields.Status.Name,
		Priority: "Medium",
		URL:      c.BrowseURL(issue.Key),
	}
	if issue.Fields.Priority != nil {
		t.Priority = issue.Fields.Priority.Name
	}
	if issue.Fields.Assignee != nil {
		t.Assignee = issue.Fields.Assignee.DisplayName
	}
	return t, nil
}

// GetTickets fetches several issues, dropping any that fail to resolve.
func (c *Client) GetTickets(ctx context.Context, keys []string) []Ticket {
	var tickets []Ticket
	for _, key := range keys {
		t, err := c.GetTicket(ctx, key)
		if err != nil {
			continue
		}
		tickets = append(tickets, *t)
	}
	return tickets
}

// BrowseURL returns the human-facing URL for a ticket key.
func (c *Client) BrowseURL(key string) string {
	if c.BaseURL == "" {
		return ""
	}
	return c.BaseURL + "/browse/" + key
}

func (c *Client) basicAuth() string {
	auth := c.Config.Jira.Email + ":" + c.Config.Jira.APIToken
	return base64.StdEncoding.EncodeToString([]byte(auth))
}
