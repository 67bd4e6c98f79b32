package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/splax/lumia/internal/domain"
)

// Client provides typed access to the dashboard API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided dashboard base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:3000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid dashboard base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the dashboard.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// Snapshot mirrors the dashboard state slices.
type Snapshot struct {
	Metrics     []domain.MetricSample     `json:"metrics"`
	Deployments []domain.DeploymentRecord `json:"deployments"`
	Firewall    domain.FirewallCounters   `json:"firewall"`
	Project     domain.ProjectStatus      `json:"project"`
	Logs        []domain.LogEntry         `json:"logs"`
	Refreshing  bool                      `json:"refreshing"`
	UpdatedAt   map[string]time.Time      `json:"updated_at"`
}

// DashboardView is the full dashboard payload.
type DashboardView struct {
	Dashboard Snapshot              `json:"dashboard"`
	Panels    []domain.Panel        `json:"panels"`
	Models    []domain.ModelSummary `json:"models"`
	Toasts    []domain.Toast        `json:"toasts"`
}

// Dashboard fetches the current dashboard state.
func (c *Client) Dashboard(ctx context.Context) (DashboardView, error) {
	var view DashboardView
	if err := c.do(ctx, http.MethodGet, "/api/dashboard", &view); err != nil {
		return DashboardView{}, err
	}
	return view, nil
}

// SourceOutcome reports one fetch of a refresh.
type SourceOutcome struct {
	Source string `json:"source"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// RefreshResponse is returned by a manual refresh.
type RefreshResponse struct {
	Outcomes   []SourceOutcome `json:"outcomes"`
	Toast      domain.Toast    `json:"toast"`
	Refreshing bool            `json:"refreshing"`
}

// Refresh triggers a manual refresh and waits for it to settle.
func (c *Client) Refresh(ctx context.Context) (RefreshResponse, error) {
	var resp RefreshResponse
	if err := c.do(ctx, http.MethodPost, "/api/refresh", &resp); err != nil {
		return RefreshResponse{}, err
	}
	return resp, nil
}

// MetricResponse is the detail dialog of one metric.
type MetricResponse struct {
	Metric *domain.MetricSample `json:"metric,omitempty"`
	Detail domain.MetricDetail  `json:"detail"`
}

// Metric fetches the detail content for a metric id.
func (c *Client) Metric(ctx context.Context, id string) (MetricResponse, error) {
	var resp MetricResponse
	if err := c.do(ctx, http.MethodGet, "/api/metrics/"+url.PathEscape(id), &resp); err != nil {
		return MetricResponse{}, err
	}
	return resp, nil
}

// WatchToasts streams toasts to fn until ctx is done or the connection drops.
func (c *Client) WatchToasts(ctx context.Context, fn func(domain.Toast)) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws/toasts"
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial toast stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read toast stream: %w", err)
		}
		var toast domain.Toast
		if err := json.Unmarshal(payload, &toast); err != nil {
			continue
		}
		fn(toast)
	}
}
