// Package dashboard owns the dashboard's in-memory state and the poll loops
// that keep it current.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/splax/lumia/internal/catalog"
	"github.com/splax/lumia/internal/domain"
	"github.com/splax/lumia/internal/scheduler"
	"github.com/splax/lumia/pkg/config"
)

// Source names a state slice and the poll task that feeds it.
type Source string

const (
	SourceDeployments Source = "deployments"
	SourceFirewall    Source = "firewall"
	SourceProject     Source = "project"
	SourceLogs        Source = "logs"
)

// Sources lists every polled slice in display order.
var Sources = []Source{SourceDeployments, SourceFirewall, SourceProject, SourceLogs}

const maxLogEntries = 500

// ErrStopped is returned by Start after the controller has been stopped.
var ErrStopped = errors.New("dashboard: controller stopped")

// DeploymentLister fetches recent source-control deployments.
type DeploymentLister interface {
	Deployments(ctx context.Context) ([]domain.DeploymentRecord, error)
}

// FirewallReader fetches firewall traffic counters.
type FirewallReader interface {
	FirewallStats(ctx context.Context) (domain.FirewallCounters, error)
}

// ProjectReader fetches the latest hosted deployment as a partial status.
type ProjectReader interface {
	ProjectStatus(ctx context.Context) (domain.ProjectStatusUpdate, error)
}

// LogReader fetches deployment build logs.
type LogReader interface {
	Logs(ctx context.Context) ([]domain.LogEntry, error)
}

// Upstreams groups the data sources of the four poll loops.
type Upstreams struct {
	Deployments DeploymentLister
	Firewall    FirewallReader
	Project     ProjectReader
	Logs        LogReader
}

// Notifier delivers transient notifications to viewers.
type Notifier interface {
	Publish(toast domain.Toast) domain.Toast
}

// Snapshot is a consistent copy of the dashboard state.
type Snapshot struct {
	Metrics     []domain.MetricSample     `json:"metrics"`
	Deployments []domain.DeploymentRecord `json:"deployments"`
	Firewall    domain.FirewallCounters   `json:"firewall"`
	Project     domain.ProjectStatus      `json:"project"`
	Logs        []domain.LogEntry         `json:"logs"`
	Refreshing  bool                      `json:"refreshing"`
	UpdatedAt   map[Source]time.Time      `json:"updated_at"`
}

type sequence struct {
	issued  uint64
	applied uint64
}

// Controller holds the dashboard state slices and drives their poll loops.
type Controller struct {
	upstreams Upstreams
	notifier  Notifier
	catalog   *catalog.Catalog
	logger    *slog.Logger
	metrics   *pollMetrics
	scheduler *scheduler.Scheduler

	intervals map[Source]time.Duration
	timeout   time.Duration
	reporting string

	mu          sync.RWMutex
	deployments []domain.DeploymentRecord
	firewall    domain.FirewallCounters
	project     domain.ProjectStatus
	logs        []domain.LogEntry
	updatedAt   map[Source]time.Time
	sequences   map[Source]*sequence
	refreshing  int
	stopped     bool

	now   func() time.Time
	newID func() string
}

// DefaultProjectStatus is shown until the first project poll succeeds.
func DefaultProjectStatus() domain.ProjectStatus {
	return domain.ProjectStatus{
		Deployment: domain.ProjectDeployment{
			Status:      "READY",
			Environment: "production",
			Creator:     "lumia",
		},
		Framework: "Next.js",
		Domain:    domain.DomainStatus{Status: "Valid"},
		SSL:       domain.SSLStatus{Valid: true},
	}
}

// New constructs a controller with every slice at its default.
func New(upstreams Upstreams, notifier Notifier, cat *catalog.Catalog, logger *slog.Logger, cfg config.DashboardConfig) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cat == nil {
		cat = catalog.Default()
	}
	defaults := config.DefaultDashboardConfig()
	intervals := map[Source]time.Duration{
		SourceDeployments: orDefault(cfg.Polling.Deployments, defaults.Polling.Deployments),
		SourceFirewall:    orDefault(cfg.Polling.Firewall, defaults.Polling.Firewall),
		SourceProject:     orDefault(cfg.Polling.Project, defaults.Polling.Project),
		SourceLogs:        orDefault(cfg.Polling.Logs, defaults.Polling.Logs),
	}
	reporting := cfg.RefreshReporting
	if reporting != config.RefreshReportPerSource {
		reporting = config.RefreshReportAggregate
	}
	sequences := make(map[Source]*sequence, len(Sources))
	for _, src := range Sources {
		sequences[src] = &sequence{}
	}
	c := &Controller{
		upstreams:   upstreams,
		notifier:    notifier,
		catalog:     cat,
		logger:      logger.With("component", "dashboard"),
		metrics:     newMetrics(),
		intervals:   intervals,
		timeout:     cfg.UpstreamTimeout,
		reporting:   reporting,
		deployments: []domain.DeploymentRecord{},
		project:     DefaultProjectStatus(),
		logs:        []domain.LogEntry{},
		updatedAt:   make(map[Source]time.Time, len(Sources)),
		sequences:   sequences,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	c.scheduler = scheduler.New(logger)
	return c
}

func orDefault(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

// Start registers the four poll loops and runs each once immediately.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.RLock()
	stopped := c.stopped
	c.mu.RUnlock()
	if stopped {
		return ErrStopped
	}
	for _, src := range Sources {
		src := src
		task := scheduler.Task{
			Name:  string(src),
			Every: c.intervals[src],
			Run:   func(ctx context.Context) { _ = c.poll(ctx, src) },
		}
		if err := c.scheduler.Add(task); err != nil {
			return err
		}
	}
	if err := c.scheduler.Start(ctx); err != nil {
		return err
	}
	c.logger.Info("dashboard polling started",
		"deployments", c.intervals[SourceDeployments],
		"firewall", c.intervals[SourceFirewall],
		"project", c.intervals[SourceProject],
		"logs", c.intervals[SourceLogs],
	)
	return nil
}

// Stop halts every poll loop, aborts in-flight requests and waits for them to
// return. Responses arriving after Stop are discarded.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	return c.scheduler.Stop(ctx)
}

// Tasks reports the poll loops and their next activation.
func (c *Controller) Tasks() []scheduler.TaskInfo {
	return c.scheduler.Tasks()
}

// Refreshing reports whether any manual refresh is in flight.
func (c *Controller) Refreshing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshing > 0
}

// Metrics returns the metric cards.
func (c *Controller) Metrics() []domain.MetricSample {
	return c.catalog.Metrics()
}

// Detail returns the detail dialog content for a metric id. Unknown ids get
// placeholder content.
func (c *Controller) Detail(id string) domain.MetricDetail {
	return c.catalog.Detail(id)
}

// Catalog exposes the static dashboard content.
func (c *Controller) Catalog() *catalog.Catalog {
	return c.catalog
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	updated := make(map[Source]time.Time, len(c.updatedAt))
	for k, v := range c.updatedAt {
		updated[k] = v
	}
	return Snapshot{
		Metrics:     c.catalog.Metrics(),
		Deployments: append([]domain.DeploymentRecord{}, c.deployments...),
		Firewall:    c.firewall,
		Project:     c.project,
		Logs:        append([]domain.LogEntry{}, c.logs...),
		Refreshing:  c.refreshing > 0,
		UpdatedAt:   updated,
	}
}

// Deployments returns the recent deployments slice.
func (c *Controller) Deployments() []domain.DeploymentRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.DeploymentRecord{}, c.deployments...)
}

// Firewall returns the firewall counters.
func (c *Controller) Firewall() domain.FirewallCounters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.firewall
}

// Project returns the project status.
func (c *Controller) Project() domain.ProjectStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.project
}

// Logs returns the deployment log entries.
func (c *Controller) Logs() []domain.LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.LogEntry{}, c.logs...)
}

func (c *Controller) notify(toast domain.Toast) {
	if c.notifier == nil {
		return
	}
	c.notifier.Publish(toast)
}
