package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/splax/lumia/internal/domain"
	"github.com/splax/lumia/pkg/config"
)

const (
	refreshedTitle       = "Dashboard refreshed"
	refreshedDescription = "All metrics have been updated with the latest data."
	incompleteTitle      = "Refresh incomplete"
)

// SourceOutcome is the result of one fetch of a manual refresh.
type SourceOutcome struct {
	Source Source `json:"source"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// RefreshResult summarises a manual refresh.
type RefreshResult struct {
	Outcomes []SourceOutcome `json:"outcomes"`
	Toast    domain.Toast    `json:"toast"`
	// Err combines the failed fetches; nil when every source succeeded.
	Err error `json:"-"`
}

// Failed lists the sources whose fetch failed.
func (r RefreshResult) Failed() []Source {
	var failed []Source
	for _, o := range r.Outcomes {
		if !o.OK {
			failed = append(failed, o.Source)
		}
	}
	return failed
}

// Refresh re-runs every fetch concurrently, waits for all of them to settle
// and publishes one notification. Concurrent refreshes run side by side.
func (c *Controller) Refresh(ctx context.Context) RefreshResult {
	c.mu.Lock()
	c.refreshing++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.refreshing--
		c.mu.Unlock()
	}()

	outcomes := make([]SourceOutcome, len(Sources))
	var (
		g     errgroup.Group
		errMu sync.Mutex
		errs  error
	)
	for i, src := range Sources {
		i, src := i, src
		g.Go(func() error {
			err := c.poll(ctx, src)
			outcomes[i] = SourceOutcome{Source: src, OK: err == nil}
			if err != nil {
				outcomes[i].Error = err.Error()
				errMu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", src, err))
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	result := RefreshResult{Outcomes: outcomes, Err: errs}
	result.Toast = c.refreshToast(result)
	c.metrics.observeRefresh(errs == nil)
	if errs != nil {
		c.logger.Warn("refresh completed with failures", "failed", len(multierr.Errors(errs)), "error", errs)
	} else {
		c.logger.Info("refresh completed")
	}
	if c.notifier != nil {
		result.Toast = c.notifier.Publish(result.Toast)
	}
	return result
}

func (c *Controller) refreshToast(result RefreshResult) domain.Toast {
	failed := result.Failed()
	if c.reporting == config.RefreshReportAggregate || len(failed) == 0 {
		return domain.Toast{
			Title:       refreshedTitle,
			Description: refreshedDescription,
			Variant:     domain.ToastDefault,
			Source:      "refresh",
		}
	}
	names := make([]string, 0, len(failed))
	for _, src := range failed {
		names = append(names, string(src))
	}
	return domain.Toast{
		Title:       incompleteTitle,
		Description: "Could not update: " + strings.Join(names, ", ") + ".",
		Variant:     domain.ToastDestructive,
		Source:      "refresh",
	}
}
