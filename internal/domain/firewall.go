package domain

// FirewallCounters are traffic totals reported by the hosting firewall.
type FirewallCounters struct {
	AllTraffic  int64 `json:"allTraffic"`
	Allowed     int64 `json:"allowed"`
	Denied      int64 `json:"denied"`
	Challenged  int64 `json:"challenged"`
	Logged      int64 `json:"logged"`
	RateLimited int64 `json:"rateLimited"`
}
