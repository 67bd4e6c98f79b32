// Package vercel reads firewall statistics, the latest deployment and
// deployment build logs from the Vercel REST API.
package vercel

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/lumia/internal/upstream"
)

// DefaultAPIURL is the public Vercel REST endpoint.
const DefaultAPIURL = "https://api.vercel.com"

// Client queries one Vercel project.
type Client struct {
	api          *upstream.Client
	projectID    string
	teamID       string
	deploymentID string
	newID        func() string
}

// Option customises client instantiation.
type Option func(*Client)

// WithDeploymentID pins the deployment whose logs are read. Without it the
// latest deployment of the project is used.
func WithDeploymentID(id string) Option {
	return func(c *Client) {
		c.deploymentID = strings.TrimSpace(id)
	}
}

// WithIDGenerator overrides how ids are generated for log entries that lack one.
func WithIDGenerator(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New constructs a Client for the given project and optional team.
func New(api *upstream.Client, projectID, teamID string, opts ...Option) *Client {
	c := &Client{
		api:       api,
		projectID: strings.TrimSpace(projectID),
		teamID:    strings.TrimSpace(teamID),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) scope() (url.Values, error) {
	if c.projectID == "" {
		return nil, fmt.Errorf("project id: %w", upstream.ErrNotConfigured)
	}
	query := url.Values{"projectId": {c.projectID}}
	if c.teamID != "" {
		query.Set("teamId", c.teamID)
	}
	return query, nil
}

func millisToISO(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
