// Package notify publishes transient toasts to connected viewers and keeps a
// short history for viewers that connect later.
package notify

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/splax/lumia/internal/domain"
	"github.com/splax/lumia/internal/ws"
)

// TopicToasts is the hub topic toast payloads are broadcast on.
const TopicToasts = "toasts"

const defaultHistory = 20

// Service stamps, records and broadcasts toasts.
type Service struct {
	hub    *ws.Hub
	logger *slog.Logger
	limit  int

	mu      sync.RWMutex
	history []domain.Toast

	now   func() time.Time
	newID func() string
}

// New constructs a toast service keeping at most history recent toasts.
func New(hub *ws.Hub, history int, logger *slog.Logger) *Service {
	if history <= 0 {
		history = defaultHistory
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		hub:    hub,
		logger: logger.With("component", "notify"),
		limit:  history,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Publish assigns an id and timestamp when missing, records the toast and
// broadcasts it.
func (s *Service) Publish(toast domain.Toast) domain.Toast {
	if strings.TrimSpace(toast.ID) == "" {
		toast.ID = s.newID()
	}
	if toast.CreatedAt.IsZero() {
		toast.CreatedAt = s.now()
	}
	toast.CreatedAt = toast.CreatedAt.UTC()
	if toast.Variant == "" {
		toast.Variant = domain.ToastDefault
	}

	s.mu.Lock()
	s.history = append(s.history, toast)
	if len(s.history) > s.limit {
		s.history = append([]domain.Toast(nil), s.history[len(s.history)-s.limit:]...)
	}
	s.mu.Unlock()

	s.logger.Info("toast published", "id", toast.ID, "title", toast.Title, "variant", toast.Variant, "source", toast.Source)
	s.broadcast(toast)
	return toast
}

// Recent returns recorded toasts, newest last.
func (s *Service) Recent() []domain.Toast {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Toast{}, s.history...)
}

// Lookup returns a recorded toast by id.
func (s *Service) Lookup(id string) (domain.Toast, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.history {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Toast{}, false
}

// Hub returns the websocket hub (useful for HTTP handlers).
func (s *Service) Hub() *ws.Hub {
	return s.hub
}

func (s *Service) broadcast(toast domain.Toast) {
	if s.hub == nil {
		return
	}
	data, err := MarshalToast(toast)
	if err != nil {
		s.logger.Warn("failed to marshal toast payload", "error", err)
		return
	}
	s.hub.Broadcast(TopicToasts, data)
}

// MarshalToast formats a toast for streaming payloads.
func MarshalToast(toast domain.Toast) ([]byte, error) {
	payload := map[string]any{
		"id":          toast.ID,
		"title":       toast.Title,
		"description": toast.Description,
		"variant":     toast.Variant,
		"source":      toast.Source,
		"created_at":  toast.CreatedAt.Format(time.RFC3339Nano),
	}
	return json.Marshal(payload)
}
