package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/splax/lumia/internal/dashboard"
	"github.com/splax/lumia/internal/domain"
	"github.com/splax/lumia/internal/notify"
	"github.com/splax/lumia/internal/ws"
	"github.com/splax/lumia/pkg/config"
)

type upstreamStub struct {
	deployments    []domain.DeploymentRecord
	deploymentsErr error
}

func (s *upstreamStub) Deployments(context.Context) ([]domain.DeploymentRecord, error) {
	return s.deployments, s.deploymentsErr
}

func (s *upstreamStub) FirewallStats(context.Context) (domain.FirewallCounters, error) {
	return domain.FirewallCounters{AllTraffic: 1500, Allowed: 1200, Denied: 300}, nil
}

func (s *upstreamStub) ProjectStatus(context.Context) (domain.ProjectStatusUpdate, error) {
	return domain.ProjectStatusUpdate{}, nil
}

func (s *upstreamStub) Logs(context.Context) ([]domain.LogEntry, error) {
	return []domain.LogEntry{{ID: "1", Message: "Build completed", Type: domain.LogInfo}}, nil
}

type testEnv struct {
	router *Router
	dash   *dashboard.Controller
	toasts *notify.Service
	hub    *ws.Hub
}

func newTestEnv(t *testing.T, stub *upstreamStub, opts ...Option) testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := ws.NewHub()
	t.Cleanup(hub.Close)
	toasts := notify.New(hub, 10, logger)
	up := dashboard.Upstreams{Deployments: stub, Firewall: stub, Project: stub, Logs: stub}
	dash := dashboard.New(up, toasts, nil, logger, config.DefaultDashboardConfig())
	router, err := NewRouter(logger, dash, toasts, opts...)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	t.Cleanup(router.Close)
	return testEnv{router: router, dash: dash, toasts: toasts, hub: hub}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestDashboardSnapshotDefaults(t *testing.T) {
	env := newTestEnv(t, &upstreamStub{})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	snapshot, ok := body["dashboard"].(map[string]any)
	if !ok {
		t.Fatalf("missing dashboard payload: %v", body)
	}
	if metrics, ok := snapshot["metrics"].([]any); !ok || len(metrics) != 5 {
		t.Fatalf("expected five metrics, got %v", snapshot["metrics"])
	}
	if deployments, ok := snapshot["deployments"].([]any); !ok || len(deployments) != 0 {
		t.Fatalf("expected empty deployments list, got %v", snapshot["deployments"])
	}
	project := snapshot["project"].(map[string]any)
	if project["framework"] != "Next.js" {
		t.Fatalf("unexpected project %v", project)
	}
	if panels, ok := body["panels"].([]any); !ok || len(panels) != 2 {
		t.Fatalf("expected two panels, got %v", body["panels"])
	}
}

func TestMetricDetailUnknownIDReturnsPlaceholder(t *testing.T) {
	env := newTestEnv(t, &upstreamStub{})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/not-a-metric", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	detail := body["detail"].(map[string]any)
	if detail["name"] != "Metric" || detail["chart"] != "Detailed Chart" {
		t.Fatalf("unexpected placeholder %v", detail)
	}
	if stats, ok := detail["statistics"].([]any); !ok || len(stats) != 0 {
		t.Fatalf("expected empty statistics, got %v", detail["statistics"])
	}
	if _, ok := body["metric"]; ok {
		t.Fatal("expected no metric card for unknown id")
	}
}

func TestMetricDetailKnownID(t *testing.T) {
	env := newTestEnv(t, &upstreamStub{})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/latency", nil))
	body := decodeBody(t, rec)
	metric, ok := body["metric"].(map[string]any)
	if !ok || metric["title"] != "Latency" {
		t.Fatalf("unexpected metric %v", body["metric"])
	}
	detail := body["detail"].(map[string]any)
	if stats := detail["statistics"].([]any); len(stats) != 6 {
		t.Fatalf("expected six statistics, got %d", len(stats))
	}
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t, &upstreamStub{deploymentsErr: errors.New("github down")})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	toast := body["toast"].(map[string]any)
	if toast["title"] != "Dashboard refreshed" {
		t.Fatalf("unexpected toast %v", toast)
	}
	outcomes := body["outcomes"].([]any)
	if len(outcomes) != 4 {
		t.Fatalf("expected four outcomes, got %d", len(outcomes))
	}
	if first := outcomes[0].(map[string]any); first["source"] != "deployments" || first["ok"] != false {
		t.Fatalf("expected deployments failure, got %v", first)
	}
	if env.dash.Firewall().AllTraffic != 1500 {
		t.Fatalf("expected firewall refreshed, got %+v", env.dash.Firewall())
	}

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/refresh", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestToastLookup(t *testing.T) {
	env := newTestEnv(t, &upstreamStub{})
	published := env.toasts.Publish(domain.Toast{Title: "Dashboard refreshed"})

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/toasts/"+published.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	toast := decodeBody(t, rec)["toast"].(map[string]any)
	if toast["id"] != published.ID || toast["title"] != "Dashboard refreshed" {
		t.Fatalf("unexpected toast %v", toast)
	}

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/toasts/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRefreshRateLimited(t *testing.T) {
	env := newTestEnv(t, &upstreamStub{}, WithRefreshLimit(1))
	first := httptest.NewRecorder()
	env.router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}
	if first.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected remaining header %q", first.Header().Get("X-RateLimit-Remaining"))
	}
	second := httptest.NewRecorder()
	env.router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
}

func TestRefreshFormRedirectsWithFlash(t *testing.T) {
	env := newTestEnv(t, &upstreamStub{})
	form := url.Values{"tab": {"firewall"}}
	req := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if location.Query().Get("tab") != "firewall" {
		t.Fatalf("expected redirect to firewall tab, got %s", location)
	}
	if !strings.HasPrefix(location.Query().Get("flash"), "Dashboard refreshed") {
		t.Fatalf("unexpected flash %q", location.Query().Get("flash"))
	}
}

func TestHomeRendersTabsAndDialog(t *testing.T) {
	env := newTestEnv(t, &upstreamStub{deployments: []domain.DeploymentRecord{{ID: "42", Status: domain.DeploymentFailure, Environment: "production"}}})
	env.dash.Refresh(context.Background())

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?tab=deployments&metric=unknown&flash=hello", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	html := rec.Body.String()
	for _, want := range []string{"Lumia AI Dashboard", "Latency", "CPU: 76%", "Detailed Chart", "hello", `class="failed"`, "Next.js"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?tab=firewall", nil))
	if !strings.Contains(rec.Body.String(), "1,500") {
		t.Fatal("expected formatted firewall counters")
	}

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, &upstreamStub{})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func waitForSubscribers(t *testing.T, hub *ws.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(notify.TopicToasts) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d subscribers", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestToastsStreamOverSSE(t *testing.T) {
	env := newTestEnv(t, &upstreamStub{})
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	waitForSubscribers(t, env.hub, 1)
	env.toasts.Publish(domain.Toast{Title: "Error fetching deployments", Variant: domain.ToastDestructive})

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	if event != "toast" {
		t.Fatalf("expected toast event, got %q", event)
	}
	var toast map[string]any
	if err := json.Unmarshal([]byte(data), &toast); err != nil {
		t.Fatalf("decode toast: %v", err)
	}
	if toast["title"] != "Error fetching deployments" || toast["variant"] != "destructive" {
		t.Fatalf("unexpected toast %v", toast)
	}
}

func TestToastsStreamOverWebsocket(t *testing.T) {
	env := newTestEnv(t, &upstreamStub{})
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/toasts"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForSubscribers(t, env.hub, 1)
	env.dash.Refresh(context.Background())

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var toast map[string]any
	if err := json.Unmarshal(payload, &toast); err != nil {
		t.Fatalf("decode toast: %v", err)
	}
	if toast["title"] != "Dashboard refreshed" {
		t.Fatalf("unexpected toast %v", toast)
	}
}

func TestMemoryRateLimiterWindows(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newMemoryRateLimiter(func() time.Time { return now })
	defer rl.Close()

	if d := rl.Allow("k", 2, time.Minute); !d.allowed || d.count != 1 {
		t.Fatalf("unexpected first decision %+v", d)
	}
	if d := rl.Allow("k", 2, time.Minute); !d.allowed || d.count != 2 {
		t.Fatalf("unexpected second decision %+v", d)
	}
	if d := rl.Allow("k", 2, time.Minute); d.allowed {
		t.Fatalf("expected third request denied %+v", d)
	}
	now = now.Add(time.Minute)
	if d := rl.Allow("k", 2, time.Minute); !d.allowed || d.count != 1 {
		t.Fatalf("expected new window, got %+v", d)
	}
	rl.sweep(now.Add(2 * time.Minute))
	if len(rl.windows) != 0 {
		t.Fatalf("expected expired windows swept, got %d", len(rl.windows))
	}
}

func TestPercentOf(t *testing.T) {
	cases := []struct {
		part, total int64
		want        int
	}{
		{part: 1200, total: 1500, want: 80},
		{part: 0, total: 1500, want: 0},
		{part: 5, total: 0, want: 0},
		{part: 2000, total: 1500, want: 100},
		{part: math.MaxInt64 / 2, total: math.MaxInt64, want: 50},
		{part: 1 << 62, total: 1 << 62, want: 100},
	}
	for _, tc := range cases {
		if got := percentOf(tc.part, tc.total); got != tc.want {
			t.Fatalf("percentOf(%d, %d) = %d, want %d", tc.part, tc.total, got, tc.want)
		}
	}
}

func TestFormatCount(t *testing.T) {
	cases := map[int64]string{0: "0", 999: "999", 1000: "1,000", 1240: "1,240", 1234567: "1,234,567", -4500: "-4,500"}
	for in, want := range cases {
		if got := formatCount(in); got != want {
			t.Fatalf("formatCount(%d) = %q, want %q", in, got, want)
		}
	}
}
