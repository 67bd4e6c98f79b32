package httpx

import (
	"bufio"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/lumia/internal/dashboard"
	"github.com/splax/lumia/internal/notify"
	"github.com/splax/lumia/internal/ws"
)

// Router wires HTTP endpoints to the dashboard controller.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	dash         *dashboard.Controller
	toasts       *notify.Service
	upgrader     websocket.Upgrader
	limiter      RateLimiter
	refreshLimit int
	heartbeat    time.Duration
	templates    *template.Template

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	streamClients      *prometheus.GaugeVec
}

const (
	rateWindowRefresh   = time.Minute
	defaultRefreshLimit = 10
	streamHeartbeat     = 15 * time.Second
	streamWriteWait     = 10 * time.Second
)

// Option customises router construction.
type Option func(*Router)

// WithRateLimiter overrides the in-memory refresh limiter.
func WithRateLimiter(l RateLimiter) Option {
	return func(r *Router) {
		if l != nil {
			r.limiter = l
		}
	}
}

// WithRefreshLimit sets how many refreshes a client may trigger per minute.
// Zero or less disables the limit.
func WithRefreshLimit(n int) Option {
	return func(r *Router) {
		r.refreshLimit = n
	}
}

// WithHeartbeat sets the keep-alive interval of toast streams.
func WithHeartbeat(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.heartbeat = d
		}
	}
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, dash *dashboard.Controller, toasts *notify.Service, opts ...Option) (*Router, error) {
	if dash == nil || toasts == nil {
		return nil, errors.New("httpx: dashboard controller and toast service are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger.With("component", "http"),
		dash:   dash,
		toasts: toasts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		refreshLimit: defaultRefreshLimit,
		heartbeat:    streamHeartbeat,
		templates:    templates,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r, nil
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/", r.audit("/", r.handleHome))
	r.mux.HandleFunc("/refresh", r.audit("/refresh", r.withRateLimit("/refresh", r.refreshLimit, rateWindowRefresh, r.handleRefreshForm)))
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/api/dashboard", r.audit("/api/dashboard", r.handleDashboard))
	r.mux.HandleFunc("/api/metrics", r.audit("/api/metrics", r.handleMetrics))
	r.mux.HandleFunc("/api/metrics/", r.audit("/api/metrics/{id}", r.handleMetricDetail))
	r.mux.HandleFunc("/api/deployments", r.audit("/api/deployments", r.handleDeployments))
	r.mux.HandleFunc("/api/firewall", r.audit("/api/firewall", r.handleFirewall))
	r.mux.HandleFunc("/api/project", r.audit("/api/project", r.handleProject))
	r.mux.HandleFunc("/api/logs", r.audit("/api/logs", r.handleLogs))
	r.mux.HandleFunc("/api/toasts", r.audit("/api/toasts", r.handleToasts))
	r.mux.HandleFunc("/api/toasts/", r.audit("/api/toasts/{id}", r.handleToast))
	r.mux.HandleFunc("/api/refresh", r.audit("/api/refresh", r.withRateLimit("/api/refresh", r.refreshLimit, rateWindowRefresh, r.handleRefresh)))
	r.mux.HandleFunc("/ws/toasts", r.audit("/ws/toasts", r.handleToastsWS))
	r.mux.HandleFunc("/events", r.audit("/events", r.handleToastsSSE))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	tasks := r.dash.Tasks()
	components := make(map[string]any, len(tasks))
	for _, task := range tasks {
		entry := map[string]any{"every_seconds": int(task.Every / time.Second)}
		if !task.Next.IsZero() {
			entry["next"] = task.Next.UTC().Format(time.RFC3339)
		}
		components[task.Name] = entry
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"refreshing": r.dash.Refreshing(),
		"polls":      components,
	})
}

func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	cat := r.dash.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"dashboard": r.dash.Snapshot(),
		"panels":    cat.Panels(),
		"models":    cat.Models(),
		"toasts":    r.toasts.Recent(),
	})
}

func (r *Router) handleMetrics(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": r.dash.Metrics()})
}

// handleMetricDetail serves the detail dialog content. Unknown ids get
// placeholder content rather than an error.
func (r *Router) handleMetricDetail(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimPrefix(req.URL.Path, "/api/metrics/"), "/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	payload := map[string]any{"detail": r.dash.Detail(id)}
	if metric, ok := r.dash.Catalog().Metric(id); ok {
		payload["metric"] = metric
	}
	writeJSON(w, http.StatusOK, payload)
}

func (r *Router) handleDeployments(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deployments": r.dash.Deployments()})
}

func (r *Router) handleFirewall(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"firewall": r.dash.Firewall()})
}

func (r *Router) handleProject(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": r.dash.Project()})
}

func (r *Router) handleLogs(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": r.dash.Logs()})
}

func (r *Router) handleToasts(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"toasts": r.toasts.Recent()})
}

func (r *Router) handleToast(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimPrefix(req.URL.Path, "/api/toasts/"), "/")
	toast, ok := r.toasts.Lookup(id)
	if !ok {
		r.notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"toast": toast})
}

func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	// The batch outlives a client that disconnects mid-refresh.
	result := r.dash.Refresh(context.WithoutCancel(req.Context()))
	writeJSON(w, http.StatusOK, map[string]any{
		"outcomes":   result.Outcomes,
		"toast":      result.Toast,
		"refreshing": r.dash.Refreshing(),
	})
}

func (r *Router) handleToastsWS(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	hub := r.toasts.Hub()
	hub.Register(notify.TopicToasts, client)
	r.trackStream("websocket", 1)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := client.Ping(); err != nil {
					return
				}
			}
		}
	}()
	go func() {
		defer func() {
			close(done)
			hub.Unregister(notify.TopicToasts, client)
			client.Close()
			r.trackStream("websocket", -1)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleToastsSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, "toast", r.logger)
	client.SetWriteTimeout(streamWriteWait, http.NewResponseController(w).SetWriteDeadline)
	hub := r.toasts.Hub()
	hub.Register(notify.TopicToasts, client)
	r.trackStream("sse", 1)
	defer func() {
		client.Close()
		hub.Unregister(notify.TopicToasts, client)
		r.trackStream("sse", -1)
	}()

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			if time.Since(client.LastActivity()) < r.heartbeat {
				continue
			}
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
			"ip", clientIP(req),
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		if sr.status == 0 {
			sr.status = http.StatusSwitchingProtocols
		}
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
