package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/splax/lumia/internal/domain"
)

var errNoUpstream = errors.New("upstream not configured")

// poll fetches one slice and applies the outcome. The returned error is the
// fetch error, reported even when the outcome was discarded.
func (c *Controller) poll(parent context.Context, src Source) error {
	seq := c.issue(src)
	ctx := parent
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.timeout)
		defer cancel()
	}

	start := c.now()
	var (
		apply func()
		err   error
	)
	switch src {
	case SourceDeployments:
		apply, err = c.fetchDeployments(ctx)
	case SourceFirewall:
		apply, err = c.fetchFirewall(ctx)
	case SourceProject:
		apply, err = c.fetchProject(ctx)
	case SourceLogs:
		apply, err = c.fetchLogs(ctx)
	default:
		return fmt.Errorf("unknown source %q", src)
	}
	elapsed := c.now().Sub(start)

	if err != nil {
		c.metrics.observePoll(src, "failure", elapsed)
		c.handleFailure(src, seq, err)
		return err
	}
	c.metrics.observePoll(src, "success", elapsed)
	c.handleSuccess(src, seq, apply)
	return nil
}

func (c *Controller) issue(src Source) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sequences[src]
	s.issued++
	return s.issued
}

// fetch helpers return a closure applying the response; it runs under c.mu.

func (c *Controller) fetchDeployments(ctx context.Context) (func(), error) {
	if c.upstreams.Deployments == nil {
		return nil, errNoUpstream
	}
	records, err := c.upstreams.Deployments.Deployments(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > domain.MaxDeployments {
		records = records[:domain.MaxDeployments]
	}
	records = append([]domain.DeploymentRecord{}, records...)
	return func() { c.deployments = records }, nil
}

func (c *Controller) fetchFirewall(ctx context.Context) (func(), error) {
	if c.upstreams.Firewall == nil {
		return nil, errNoUpstream
	}
	counters, err := c.upstreams.Firewall.FirewallStats(ctx)
	if err != nil {
		return nil, err
	}
	return func() { c.firewall = counters }, nil
}

func (c *Controller) fetchProject(ctx context.Context) (func(), error) {
	if c.upstreams.Project == nil {
		return nil, errNoUpstream
	}
	update, err := c.upstreams.Project.ProjectStatus(ctx)
	if err != nil {
		return nil, err
	}
	return func() { c.project = domain.MergeProjectStatus(c.project, update) }, nil
}

func (c *Controller) fetchLogs(ctx context.Context) (func(), error) {
	if c.upstreams.Logs == nil {
		return nil, errNoUpstream
	}
	entries, err := c.upstreams.Logs.Logs(ctx)
	if err != nil {
		return nil, err
	}
	entries = append([]domain.LogEntry{}, entries...)
	return func() { c.logs = entries }, nil
}

func (c *Controller) handleSuccess(src Source, seq uint64, apply func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		c.logger.Debug("dropping response after stop", "source", src)
		return
	}
	s := c.sequences[src]
	if seq < s.applied {
		c.logger.Debug("dropping stale response", "source", src, "seq", seq, "applied", s.applied)
		c.metrics.observeStale(src)
		return
	}
	s.applied = seq
	apply()
	c.updatedAt[src] = c.now().UTC()
}

func (c *Controller) handleFailure(src Source, seq uint64, err error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.logger.Debug("dropping failure after stop", "source", src, "error", err)
		return
	}
	if src == SourceLogs {
		// Every failed fetch is recorded, including one that settles after
		// a newer success. applied never moves backwards.
		s := c.sequences[src]
		if seq > s.applied {
			s.applied = seq
		}
		c.logs = appendLog(c.logs, domain.LogEntry{
			ID:        c.newID(),
			Timestamp: c.now().UTC().Format(time.RFC3339),
			Message:   "Failed to fetch deployment logs: " + err.Error(),
			Type:      domain.LogError,
		})
	}
	c.mu.Unlock()

	c.logger.Warn("poll failed", "source", src, "error", err)
	switch src {
	case SourceDeployments:
		c.notify(domain.Toast{
			Title:       "Error fetching deployments",
			Description: "Could not load deployments from GitHub.",
			Variant:     domain.ToastDestructive,
			Source:      string(src),
		})
	case SourceFirewall:
		c.notify(domain.Toast{
			Title:       "Error fetching firewall stats",
			Description: "Could not load firewall statistics from Vercel.",
			Variant:     domain.ToastDestructive,
			Source:      string(src),
		})
	}
}

func appendLog(logs []domain.LogEntry, entry domain.LogEntry) []domain.LogEntry {
	next := make([]domain.LogEntry, 0, len(logs)+1)
	next = append(next, logs...)
	next = append(next, entry)
	if len(next) > maxLogEntries {
		next = next[len(next)-maxLogEntries:]
	}
	return next
}
