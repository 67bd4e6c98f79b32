package vercel

import (
	"context"
	"fmt"

	"github.com/splax/lumia/internal/domain"
)

type firewallStats struct {
	AllTraffic  int64 `json:"allTraffic"`
	Allowed     int64 `json:"allowed"`
	Denied      int64 `json:"denied"`
	Challenged  int64 `json:"challenged"`
	Logged      int64 `json:"logged"`
	RateLimited int64 `json:"rateLimited"`
}

// FirewallStats returns the project's firewall counters. Counters missing
// from the response are zero; negative counters are clamped to zero.
func (c *Client) FirewallStats(ctx context.Context) (domain.FirewallCounters, error) {
	query, err := c.scope()
	if err != nil {
		return domain.FirewallCounters{}, fmt.Errorf("vercel firewall: %w", err)
	}
	var stats firewallStats
	if err := c.api.Get(ctx, "/v1/security/firewall/stats", query, &stats); err != nil {
		return domain.FirewallCounters{}, fmt.Errorf("vercel firewall: %w", err)
	}
	return domain.FirewallCounters{
		AllTraffic:  clamp(stats.AllTraffic),
		Allowed:     clamp(stats.Allowed),
		Denied:      clamp(stats.Denied),
		Challenged:  clamp(stats.Challenged),
		Logged:      clamp(stats.Logged),
		RateLimited: clamp(stats.RateLimited),
	}, nil
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
