// Package gitlab fetches the raw merge request data the report is built from.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabProvider is the data source backed by a GitLab instance. List
// endpoints go through GitLabHTTPClient so payloads stay raw JSON; the
// official client is only used for user lookups.
type GitLabProvider struct {
	httpClient *GitLabHTTPClient
	client     *gitlab.Client

	fastModeWeeks int
	now           func() time.Time
}

// Option tweaks a GitLabProvider.
type Option func(*GitLabProvider)

// WithFastMode limits merge request listing to those created in the last
// weeks weeks.
func WithFastMode(weeks int) Option {
	return func(p *GitLabProvider) { p.fastModeWeeks = weeks }
}

// WithClock overrides the time source used for the fast mode cutoff.
func WithClock(now func() time.Time) Option {
	return func(p *GitLabProvider) { p.now = now }
}

// New creates a new GitLab provider
func New(config GitLabConfig, opts ...Option) (*GitLabProvider, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("GitLab API URL is required")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("GitLab token is required")
	}

	httpClient := NewHTTPClient(config)
	// Share the pooled transport with the official client
	client := gitlab.NewClient(httpClient.client, config.Token)
	if err := client.SetBaseURL(httpClient.BaseURL()); err != nil {
		return nil, fmt.Errorf("failed to set GitLab base URL: %w", err)
	}

	p := &GitLabProvider{
		httpClient: httpClient,
		client:     client,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ListOpenMergeRequests returns the raw metadata of every open merge request
// in the project, across all pages.
func (p *GitLabProvider) ListOpenMergeRequests(ctx context.Context, projectID int) ([]json.RawMessage, error) {
	cutoff := CreatedAfter(p.now(), p.fastModeWeeks)
	items, err := p.httpClient.getAllPages(ctx, mergeRequestsURL(p.httpClient.BaseURL(), projectID, cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to list merge requests of project %d: %w", projectID, err)
	}
	return items, nil
}

// Discussions returns the raw discussions of a merge request as one array.
func (p *GitLabProvider) Discussions(ctx context.Context, projectID, iid int) (json.RawMessage, error) {
	raw, err := p.httpClient.getList(ctx, discussionsURL(p.httpClient.BaseURL(), projectID, iid))
	if err != nil {
		return nil, fmt.Errorf("failed to get discussions of !%d: %w", iid, err)
	}
	return raw, nil
}

// AwardEmoji returns the raw award emoji of a merge request as one array.
func (p *GitLabProvider) AwardEmoji(ctx context.Context, projectID, iid int) (json.RawMessage, error) {
	raw, err := p.httpClient.getList(ctx, awardEmojiURL(p.httpClient.BaseURL(), projectID, iid))
	if err != nil {
		return nil, fmt.Errorf("failed to get award emoji of !%d: %w", iid, err)
	}
	return raw, nil
}

// CurrentUsername returns the username the token belongs to. The request
// itself can't be cancelled, only skipped when ctx is already done.
func (p *GitLabProvider) CurrentUsername(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	user, _, err := p.client.Users.CurrentUser()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return user.Username, nil
}
