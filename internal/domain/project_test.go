package domain

import "testing"

func TestMergeProjectStatusReplacesDeploymentWholesale(t *testing.T) {
	prev := ProjectStatus{
		Deployment: ProjectDeployment{
			Status:      "READY",
			Environment: "production",
			Creator:     "alice",
			CreatedAt:   "2025-01-01T00:00:00Z",
			URL:         "old.vercel.app",
		},
		BuildTime: "41s",
		Framework: "Next.js",
		Domain:    DomainStatus{Status: "Valid"},
		SSL:       SSLStatus{Valid: true},
	}
	update := ProjectStatusUpdate{
		Deployment: &ProjectDeployment{Status: "BUILDING", Environment: "preview"},
	}

	got := MergeProjectStatus(prev, update)

	if got.Deployment.Creator != "" || got.Deployment.URL != "" {
		t.Fatalf("expected stale nested deployment fields to be dropped, got %+v", got.Deployment)
	}
	if got.Deployment.Status != "BUILDING" || got.Deployment.Environment != "preview" {
		t.Fatalf("unexpected deployment %+v", got.Deployment)
	}
	if got.BuildTime != "41s" || got.Framework != "Next.js" {
		t.Fatalf("expected empty scalars to keep previous values, got %q %q", got.BuildTime, got.Framework)
	}
	if got.Domain.Status != "Valid" || !got.SSL.Valid {
		t.Fatalf("expected domain and ssl to survive, got %+v %+v", got.Domain, got.SSL)
	}
}

func TestMergeProjectStatusKeepsDeploymentWhenAbsent(t *testing.T) {
	prev := ProjectStatus{Deployment: ProjectDeployment{Status: "READY", URL: "a.vercel.app"}}
	got := MergeProjectStatus(prev, ProjectStatusUpdate{BuildTime: "12s", SSL: &SSLStatus{Valid: false}})

	if got.Deployment != prev.Deployment {
		t.Fatalf("expected deployment untouched, got %+v", got.Deployment)
	}
	if got.BuildTime != "12s" {
		t.Fatalf("expected build time 12s, got %q", got.BuildTime)
	}
	if got.SSL.Valid {
		t.Fatalf("expected explicit ssl update to apply")
	}
}

func TestParseDeploymentStatus(t *testing.T) {
	cases := map[string]DeploymentStatus{
		"success":     DeploymentSuccess,
		"READY":       DeploymentSuccess,
		"":            DeploymentPending,
		"in_progress": DeploymentPending,
		"failure":     DeploymentFailure,
		"error":       DeploymentFailure,
		"inactive":    DeploymentOther,
	}
	for in, want := range cases {
		if got := ParseDeploymentStatus(in); got != want {
			t.Fatalf("ParseDeploymentStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseLogType(t *testing.T) {
	if ParseLogType("stderr") != LogError {
		t.Fatalf("expected stderr to map to error")
	}
	if ParseLogType("WARN") != LogWarning {
		t.Fatalf("expected WARN to map to warning")
	}
	if ParseLogType("stdout") != LogInfo {
		t.Fatalf("expected stdout to map to info")
	}
}
