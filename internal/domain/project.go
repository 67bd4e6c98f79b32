package domain

// ProjectDeployment describes the latest hosted deployment.
type ProjectDeployment struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Creator     string `json:"creator"`
	CreatedAt   string `json:"createdAt"`
	URL         string `json:"url"`
}

// DomainStatus reports the project's domain verification.
type DomainStatus struct {
	Status string `json:"status"`
}

// SSLStatus reports certificate validity.
type SSLStatus struct {
	Valid bool `json:"valid"`
}

// ProjectStatus is the hosted project's status card.
type ProjectStatus struct {
	Deployment ProjectDeployment `json:"deployment"`
	BuildTime  string            `json:"buildTime"`
	Framework  string            `json:"framework"`
	Domain     DomainStatus      `json:"domain"`
	SSL        SSLStatus         `json:"ssl"`
}

// ProjectStatusUpdate is a partial project status taken from one upstream response.
// Nil pointers mean the response did not carry that part.
type ProjectStatusUpdate struct {
	Deployment *ProjectDeployment
	BuildTime  string
	Framework  string
	Domain     *DomainStatus
	SSL        *SSLStatus
}

// MergeProjectStatus applies an update on top of the previous status.
//
// Precedence, field by field:
//   - Deployment is replaced as a whole when present; no nested field of the
//     previous deployment survives a newer one.
//   - BuildTime and Framework take the update when non-empty.
//   - Domain and SSL keep the previous value unless the update carries them.
func MergeProjectStatus(prev ProjectStatus, update ProjectStatusUpdate) ProjectStatus {
	next := prev
	if update.Deployment != nil {
		next.Deployment = *update.Deployment
	}
	if update.BuildTime != "" {
		next.BuildTime = update.BuildTime
	}
	if update.Framework != "" {
		next.Framework = update.Framework
	}
	if update.Domain != nil {
		next.Domain = *update.Domain
	}
	if update.SSL != nil {
		next.SSL = *update.SSL
	}
	return next
}
