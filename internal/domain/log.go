package domain

import "strings"

// LogType classifies a deployment log line.
type LogType string

const (
	LogInfo    LogType = "info"
	LogWarning LogType = "warning"
	LogError   LogType = "error"
)

// LogEntry is one line of the deployment logs tab.
type LogEntry struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Message   string  `json:"message"`
	Type      LogType `json:"type"`
}

// ParseLogType maps upstream levels and stream names to a LogType.
func ParseLogType(value string) LogType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error", "stderr", "fatal", "command-error":
		return LogError
	case "warning", "warn":
		return LogWarning
	default:
		return LogInfo
	}
}
