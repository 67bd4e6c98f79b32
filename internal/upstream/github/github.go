// Package github reads repository deployments from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/splax/lumia/internal/domain"
	"github.com/splax/lumia/internal/upstream"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

// Client lists deployments of one repository.
type Client struct {
	api   *upstream.Client
	owner string
	repo  string
}

// New constructs a Client for owner/repo.
func New(api *upstream.Client, owner, repo string) *Client {
	return &Client{api: api, owner: strings.TrimSpace(owner), repo: strings.TrimSpace(repo)}
}

type deployment struct {
	ID          json.Number `json:"id"`
	State       string      `json:"state"`
	Environment string      `json:"environment"`
	CreatedAt   string      `json:"created_at"`
	Description string      `json:"description"`
}

// Deployments returns at most domain.MaxDeployments records in upstream order.
func (c *Client) Deployments(ctx context.Context) ([]domain.DeploymentRecord, error) {
	if c.owner == "" || c.repo == "" {
		return nil, fmt.Errorf("github deployments: owner and repo: %w", upstream.ErrNotConfigured)
	}
	path := fmt.Sprintf("/repos/%s/%s/deployments", url.PathEscape(c.owner), url.PathEscape(c.repo))
	query := url.Values{"per_page": {fmt.Sprint(domain.MaxDeployments)}}

	var payload []deployment
	if err := c.api.Get(ctx, path, query, &payload); err != nil {
		return nil, fmt.Errorf("github deployments: %w", err)
	}
	if len(payload) > domain.MaxDeployments {
		payload = payload[:domain.MaxDeployments]
	}
	records := make([]domain.DeploymentRecord, 0, len(payload))
	for _, d := range payload {
		records = append(records, domain.DeploymentRecord{
			ID:          d.ID.String(),
			Status:      domain.ParseDeploymentStatus(d.State),
			Environment: d.Environment,
			CreatedAt:   d.CreatedAt,
			Description: d.Description,
		})
	}
	return records, nil
}
