package domain

import "strings"

// DeploymentStatus is the normalized outcome of a source-control deployment.
type DeploymentStatus string

const (
	DeploymentSuccess DeploymentStatus = "success"
	DeploymentPending DeploymentStatus = "pending"
	DeploymentFailure DeploymentStatus = "failure"
	DeploymentOther   DeploymentStatus = "other"
)

// MaxDeployments caps the deployments slice.
const MaxDeployments = 5

// DeploymentRecord is one entry of the recent deployments list.
type DeploymentRecord struct {
	ID          string           `json:"id"`
	Status      DeploymentStatus `json:"status"`
	Environment string           `json:"environment"`
	CreatedAt   string           `json:"created_at"`
	Description string           `json:"description"`
}

// ParseDeploymentStatus maps an upstream state onto the four display statuses.
// An empty state means no status was reported yet and counts as pending.
func ParseDeploymentStatus(state string) DeploymentStatus {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "success", "active", "ready":
		return DeploymentSuccess
	case "", "pending", "queued", "in_progress", "building":
		return DeploymentPending
	case "failure", "error":
		return DeploymentFailure
	default:
		return DeploymentOther
	}
}
