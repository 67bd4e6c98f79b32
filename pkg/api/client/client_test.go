package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/splax/lumia/internal/domain"
)

func TestRefreshDecodesOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/refresh" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"outcomes":[{"source":"deployments","ok":false,"error":"boom"},{"source":"firewall","ok":true}],"toast":{"id":"t1","title":"Dashboard refreshed","variant":"default"},"refreshing":false}`))
	}))
	defer srv.Close()

	cli, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := cli.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(resp.Outcomes) != 2 || resp.Outcomes[0].OK || resp.Outcomes[0].Error != "boom" {
		t.Fatalf("unexpected outcomes %+v", resp.Outcomes)
	}
	if resp.Toast.Title != "Dashboard refreshed" {
		t.Fatalf("unexpected toast %+v", resp.Toast)
	}
}

func TestErrorResponsesBecomeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	_, err := cli.Refresh(context.Background())
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || apiErr.Message != "rate limit exceeded" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestMetricEscapesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/metrics/a%20b" {
			t.Errorf("unexpected path %q", r.URL.EscapedPath())
		}
		_, _ = w.Write([]byte(`{"detail":{"id":"a b","name":"Metric","chart":"Detailed Chart","statistics":[]}}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	resp, err := cli.Metric(context.Background(), "a b")
	if err != nil {
		t.Fatalf("metric: %v", err)
	}
	if resp.Metric != nil || resp.Detail.Name != "Metric" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestNewDefaultsScheme(t *testing.T) {
	cli, err := New("localhost:3000/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cli.baseURL != "http://localhost:3000" {
		t.Fatalf("unexpected base url %q", cli.baseURL)
	}
}

func TestWatchToastsDeliversUntilCancelled(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"1","title":"Error fetching deployments","variant":"destructive"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	received := make(chan domain.Toast, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- cli.WatchToasts(ctx, func(t domain.Toast) {
			received <- t
			cancel()
		})
	}()

	select {
	case toast := <-received:
		if toast.Variant != domain.ToastDestructive {
			t.Fatalf("unexpected toast %+v", toast)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected a toast")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("expected clean exit on cancel, got %v", err)
	}
}
