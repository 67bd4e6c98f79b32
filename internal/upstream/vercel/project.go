package vercel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/splax/lumia/internal/domain"
)

type deploymentList struct {
	Deployments []deployment `json:"deployments"`
}

type deployment struct {
	UID        string `json:"uid"`
	URL        string `json:"url"`
	State      string `json:"state"`
	ReadyState string `json:"readyState"`
	Target     string `json:"target"`
	Created    int64  `json:"created"`
	BuildingAt int64  `json:"buildingAt"`
	Ready      int64  `json:"ready"`
	Creator    struct {
		Username string `json:"username"`
	} `json:"creator"`
	Meta map[string]string `json:"meta"`
}

func (c *Client) latestDeployment(ctx context.Context) (*deployment, error) {
	query, err := c.scope()
	if err != nil {
		return nil, err
	}
	query.Set("limit", "1")
	var list deploymentList
	if err := c.api.Get(ctx, "/v6/deployments", query, &list); err != nil {
		return nil, err
	}
	if len(list.Deployments) == 0 {
		return nil, nil
	}
	return &list.Deployments[0], nil
}

// ProjectStatus reads the latest deployment of the project and returns it as
// a partial status update. A project without deployments yields an empty
// update.
func (c *Client) ProjectStatus(ctx context.Context) (domain.ProjectStatusUpdate, error) {
	latest, err := c.latestDeployment(ctx)
	if err != nil {
		return domain.ProjectStatusUpdate{}, fmt.Errorf("vercel project status: %w", err)
	}
	if latest == nil {
		return domain.ProjectStatusUpdate{}, nil
	}
	state := latest.State
	if state == "" {
		state = latest.ReadyState
	}
	environment := latest.Target
	if environment == "" {
		environment = "preview"
	}
	update := domain.ProjectStatusUpdate{
		Deployment: &domain.ProjectDeployment{
			Status:      strings.ToUpper(state),
			Environment: environment,
			Creator:     latest.Creator.Username,
			CreatedAt:   millisToISO(latest.Created),
			URL:         deploymentURL(latest.URL),
		},
		BuildTime: buildTime(latest.BuildingAt, latest.Ready),
		Framework: latest.Meta["framework"],
	}
	return update, nil
}

func deploymentURL(host string) string {
	host = strings.TrimSpace(host)
	if host == "" || strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

func buildTime(buildingAt, ready int64) string {
	if buildingAt <= 0 || ready < buildingAt {
		return ""
	}
	return (time.Duration(ready-buildingAt) * time.Millisecond).Round(time.Second).String()
}
