package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Refresh reporting modes.
const (
	RefreshReportAggregate = "aggregate"
	RefreshReportPerSource = "per_source"
)

// GitHubConfig locates the repository whose deployments are displayed.
type GitHubConfig struct {
	Token  string `koanf:"token"`
	APIURL string `koanf:"api_url"`
	Owner  string `koanf:"owner"`
	Repo   string `koanf:"repo"`
}

// VercelConfig locates the hosted project whose status, firewall and logs are displayed.
type VercelConfig struct {
	Token        string `koanf:"token"`
	APIURL       string `koanf:"api_url"`
	ProjectID    string `koanf:"project_id"`
	TeamID       string `koanf:"team_id"`
	DeploymentID string `koanf:"deployment_id"`
}

// PollingConfig holds per-slice poll intervals.
type PollingConfig struct {
	Deployments time.Duration `koanf:"deployments"`
	Firewall    time.Duration `koanf:"firewall"`
	Project     time.Duration `koanf:"project"`
	Logs        time.Duration `koanf:"logs"`
}

// DashboardConfig holds runtime configuration for the dashboard service.
type DashboardConfig struct {
	Environment        string        `koanf:"environment"`
	Addr               string        `koanf:"addr"`
	LogLevel           string        `koanf:"log_level"`
	GitHub             GitHubConfig  `koanf:"github"`
	Vercel             VercelConfig  `koanf:"vercel"`
	Polling            PollingConfig `koanf:"polling"`
	UpstreamTimeout    time.Duration `koanf:"upstream_timeout"`
	RefreshReporting   string        `koanf:"refresh_reporting"`
	RefreshRateLimit   int           `koanf:"refresh_rate_limit"`
	ToastHistory       int           `koanf:"toast_history"`
	RateLimitRedisAddr string        `koanf:"rate_limit_redis_addr"`
	RateLimitRedisPass string        `koanf:"rate_limit_redis_password"`
	RateLimitRedisDB   int           `koanf:"rate_limit_redis_db"`
}

// DefaultDashboardConfig returns the built-in configuration.
func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		Environment: "development",
		Addr:        ":3000",
		LogLevel:    "info",
		GitHub: GitHubConfig{
			APIURL: "https://api.github.com",
		},
		Vercel: VercelConfig{
			APIURL: "https://api.vercel.com",
		},
		Polling: PollingConfig{
			Deployments: 30 * time.Second,
			Firewall:    30 * time.Second,
			Project:     30 * time.Second,
			Logs:        5 * time.Minute,
		},
		UpstreamTimeout:  15 * time.Second,
		RefreshReporting: RefreshReportAggregate,
		RefreshRateLimit: 10,
		ToastHistory:     20,
	}
}

// LoadDashboardConfig layers defaults, an optional JSON file named by
// DASHBOARD_CONFIG_FILE, and environment variables, in that order.
func LoadDashboardConfig() (DashboardConfig, error) {
	cfg := DefaultDashboardConfig()
	if path := strings.TrimSpace(GetString("DASHBOARD_CONFIG_FILE", "")); path != "" {
		if err := loadDashboardFile(path, &cfg); err != nil {
			return DashboardConfig{}, err
		}
	}
	cfg = applyDashboardEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return DashboardConfig{}, err
	}
	return cfg, nil
}

func loadDashboardFile(path string, cfg *DashboardConfig) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return errors.Wrapf(err, "load config file %s", path)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func applyDashboardEnv(cfg DashboardConfig) DashboardConfig {
	cfg.Environment = GetString("APP_ENV", cfg.Environment)
	cfg.Addr = GetString("DASHBOARD_ADDR", cfg.Addr)
	cfg.LogLevel = GetString("LOG_LEVEL", cfg.LogLevel)

	cfg.GitHub.Token = GetString("GITHUB_TOKEN", cfg.GitHub.Token)
	cfg.GitHub.APIURL = GetString("GITHUB_API_URL", cfg.GitHub.APIURL)
	cfg.GitHub.Owner = GetString("GITHUB_OWNER", cfg.GitHub.Owner)
	cfg.GitHub.Repo = GetString("GITHUB_REPO", cfg.GitHub.Repo)

	cfg.Vercel.Token = GetString("VERCEL_TOKEN", cfg.Vercel.Token)
	cfg.Vercel.APIURL = GetString("VERCEL_API_URL", cfg.Vercel.APIURL)
	cfg.Vercel.ProjectID = GetString("VERCEL_PROJECT_ID", cfg.Vercel.ProjectID)
	cfg.Vercel.TeamID = GetString("VERCEL_TEAM_ID", cfg.Vercel.TeamID)
	cfg.Vercel.DeploymentID = GetString("VERCEL_DEPLOYMENT_ID", cfg.Vercel.DeploymentID)

	cfg.Polling.Deployments = GetSeconds("POLL_DEPLOYMENTS_SECONDS", cfg.Polling.Deployments)
	cfg.Polling.Firewall = GetSeconds("POLL_FIREWALL_SECONDS", cfg.Polling.Firewall)
	cfg.Polling.Project = GetSeconds("POLL_PROJECT_SECONDS", cfg.Polling.Project)
	cfg.Polling.Logs = GetSeconds("POLL_LOGS_SECONDS", cfg.Polling.Logs)
	cfg.UpstreamTimeout = GetSeconds("UPSTREAM_TIMEOUT_SECONDS", cfg.UpstreamTimeout)

	cfg.RefreshReporting = strings.ToLower(strings.TrimSpace(GetString("REFRESH_REPORTING", cfg.RefreshReporting)))
	cfg.RefreshRateLimit = GetInt("REFRESH_RATE_LIMIT", cfg.RefreshRateLimit)
	cfg.ToastHistory = GetInt("TOAST_HISTORY", cfg.ToastHistory)

	cfg.RateLimitRedisAddr = GetString("RATE_LIMIT_REDIS_ADDR", cfg.RateLimitRedisAddr)
	cfg.RateLimitRedisPass = GetString("RATE_LIMIT_REDIS_PASSWORD", cfg.RateLimitRedisPass)
	cfg.RateLimitRedisDB = GetInt("RATE_LIMIT_REDIS_DB", cfg.RateLimitRedisDB)
	return cfg
}

// Validate reports configuration values the service cannot run with.
func (c DashboardConfig) Validate() error {
	switch c.RefreshReporting {
	case RefreshReportAggregate, RefreshReportPerSource:
	default:
		return errors.Errorf("unsupported refresh reporting mode %q", c.RefreshReporting)
	}
	intervals := map[string]time.Duration{
		"deployments": c.Polling.Deployments,
		"firewall":    c.Polling.Firewall,
		"project":     c.Polling.Project,
		"logs":        c.Polling.Logs,
	}
	for name, every := range intervals {
		if every < time.Second {
			return errors.Errorf("poll interval for %s must be at least 1s, got %s", name, every)
		}
	}
	if c.UpstreamTimeout < 0 {
		return errors.Errorf("upstream timeout must not be negative, got %s", c.UpstreamTimeout)
	}
	return nil
}
