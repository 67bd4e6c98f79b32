package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/splax/lumia/internal/domain"
)

type logEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Level   string `json:"level"`
	Created int64  `json:"created"`
	Date    int64  `json:"date"`
	Text    string `json:"text"`
	Payload struct {
		ID   string `json:"id"`
		Text string `json:"text"`
		Date int64  `json:"date"`
	} `json:"payload"`
}

// logEvents accepts either a bare array of events or {"logs": [...]}.
type logEvents []logEvent

func (l *logEvents) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []logEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return err
		}
		*l = events
		return nil
	}
	var wrapped struct {
		Logs []logEvent `json:"logs"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Logs
	return nil
}

// Logs returns the build log of the configured deployment, or of the latest
// deployment when none is configured.
func (c *Client) Logs(ctx context.Context) ([]domain.LogEntry, error) {
	id := c.deploymentID
	if id == "" {
		latest, err := c.latestDeployment(ctx)
		if err != nil {
			return nil, fmt.Errorf("vercel logs: resolve deployment: %w", err)
		}
		if latest == nil || latest.UID == "" {
			return []domain.LogEntry{}, nil
		}
		id = latest.UID
	}
	var query url.Values
	if c.teamID != "" {
		query = url.Values{"teamId": {c.teamID}}
	}
	var events logEvents
	path := "/v3/deployments/" + url.PathEscape(id) + "/events"
	if err := c.api.Get(ctx, path, query, &events); err != nil {
		return nil, fmt.Errorf("vercel logs: %w", err)
	}
	entries := make([]domain.LogEntry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, c.normalize(ev))
	}
	return entries, nil
}

func (c *Client) normalize(ev logEvent) domain.LogEntry {
	id := firstNonEmpty(ev.ID, ev.Payload.ID)
	if id == "" {
		id = c.newID()
	}
	created := ev.Created
	if created == 0 {
		created = ev.Date
	}
	if created == 0 {
		created = ev.Payload.Date
	}
	level := ev.Level
	if level == "" {
		level = ev.Type
	}
	return domain.LogEntry{
		ID:        id,
		Timestamp: millisToISO(created),
		Message:   firstNonEmpty(ev.Text, ev.Payload.Text),
		Type:      domain.ParseLogType(level),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
